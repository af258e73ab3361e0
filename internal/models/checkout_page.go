package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Block is one element of the visual page editor. Props are opaque to the
// server.
type Block struct {
	ID    string                 `bson:"id" json:"id" binding:"required"`
	Type  string                 `bson:"type" json:"type" binding:"required"`
	Props map[string]interface{} `bson:"props" json:"props"`
}

type CheckoutPage struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	SellerID    primitive.ObjectID   `bson:"sellerId" json:"sellerId"`
	Slug        string               `bson:"slug" json:"slug"`
	Title       string               `bson:"title" json:"title"`
	Kind        string               `bson:"kind" json:"kind"`
	ProductIDs  []primitive.ObjectID `bson:"productIds" json:"productIds"`
	Blocks      []Block              `bson:"blocks" json:"blocks"`
	IsPublished bool                 `bson:"isPublished" json:"isPublished"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}
