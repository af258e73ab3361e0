package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan is a platform-wide subscription plan managed by the super-admin.
type Plan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Price       float64            `bson:"price" json:"price"`
	Interval    string             `bson:"interval" json:"interval"`
	MaxProducts int                `bson:"maxProducts" json:"maxProducts"`
	Features    StringList         `bson:"features" json:"features"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type PaymentGateway struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Provider    string             `bson:"provider" json:"provider"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	PublicKey   string             `bson:"publicKey" json:"publicKey"`
	SecretKey   string             `bson:"secretKey" json:"-"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
