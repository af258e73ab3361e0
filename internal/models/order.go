package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

// remember to add new statuses to validOrderStatuses
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var validOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:   {},
	OrderStatusCompleted: {},
	OrderStatusFailed:    {},
	OrderStatusRefunded:  {},
}

func ToOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := validOrderStatuses[status]; ok {
		return status, nil
	}
	return "", errors.New("invalid order status")
}

// OrderItem is one purchased line. Items are written with the order and never
// change afterwards.
type OrderItem struct {
	ID        primitive.ObjectID `bson:"id" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

type Order struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID          primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	CustomerID        primitive.ObjectID `bson:"customerId" json:"customerId"`
	Email             string             `bson:"email" json:"email"`
	Items             []OrderItem        `bson:"items" json:"items"`
	Currency          string             `bson:"currency" json:"currency"`
	Subtotal          float64            `bson:"subtotal" json:"subtotal"`
	Discount          float64            `bson:"discount" json:"discount"`
	Total             float64            `bson:"total" json:"total"`
	CouponCode        string             `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	CartID            string             `bson:"cartId,omitempty" json:"cartId,omitempty"`
	Status            OrderStatus        `bson:"status" json:"status"`
	ConfirmationToken string             `bson:"confirmationToken" json:"-"`
	PaymentID         string             `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

func (o Order) ItemByID(id primitive.ObjectID) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == id {
			return item, true
		}
	}
	return OrderItem{}, false
}
