package models

import "time"

// DefaultSequenceKey names the sequence used by sellers without their own.
const DefaultSequenceKey = "default"

type SequenceStep struct {
	DelayMinutes    int     `bson:"delayMinutes" json:"delayMinutes" binding:"min=0"`
	Subject         string  `bson:"subject" json:"subject" binding:"required"`
	CouponCode      string  `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	DiscountPercent float64 `bson:"discountPercent,omitempty" json:"discountPercent,omitempty"`
}

// EmailSequence is keyed by seller id hex, or DefaultSequenceKey.
type EmailSequence struct {
	Key       string         `bson:"_id" json:"key"`
	Steps     []SequenceStep `bson:"steps" json:"steps"`
	UpdatedAt time.Time      `bson:"updatedAt" json:"updatedAt"`
}
