package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartProduct struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	ImageURL string  `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

// AbandonedCart is a tracked checkout intent. EmailsSent is the index of the
// next sequence step to send.
type AbandonedCart struct {
	ID            string             `bson:"_id" json:"id"`
	SellerID      primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Email         string             `bson:"email" json:"email"`
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	Product       CartProduct        `bson:"product" json:"product"`
	CheckoutURL   string             `bson:"checkoutUrl" json:"checkoutUrl"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
	EmailsSent    int                `bson:"emailsSent" json:"emailsSent"`
	LastEmailSent *time.Time         `bson:"lastEmailSent,omitempty" json:"lastEmailSent,omitempty"`
	Recovered     bool               `bson:"recovered" json:"recovered"`
	RecoveredAt   *time.Time         `bson:"recoveredAt,omitempty" json:"recoveredAt,omitempty"`
}

type CartStats struct {
	Total        int     `json:"total"`
	Active       int     `json:"active"`
	Recovered    int     `json:"recovered"`
	EmailsSent   int     `json:"emailsSent"`
	RecoveryRate float64 `json:"recoveryRate"`
}
