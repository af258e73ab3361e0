package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateCartAbandonment   = "cart_abandonment"
)

// EmailTemplate overrides the built-in body for one kind of email. Body is
// an html/template source.
type EmailTemplate struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID  primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Name      string             `bson:"name" json:"name"`
	Kind      string             `bson:"kind" json:"kind"`
	Subject   string             `bson:"subject" json:"subject"`
	Body      string             `bson:"body" json:"body"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
