package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon is a discount code scoped to one seller. Its invariants are checked
// when the code is validated, not by the store.
type Coupon struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID      primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Code          string             `bson:"code" json:"code"`
	DiscountType  string             `bson:"discountType" json:"discountType"`
	DiscountValue float64            `bson:"discountValue" json:"discountValue"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	UsageLimit    *int               `bson:"usageLimit" json:"usageLimit"`
	UsedCount     int                `bson:"usedCount" json:"usedCount"`
	ExpiresAt     *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
