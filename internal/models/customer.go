package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Customer is a buyer that belongs to exactly one seller.
type Customer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID  primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Email     string             `bson:"email" json:"email"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
