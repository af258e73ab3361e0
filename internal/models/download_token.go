package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DownloadToken gates access to the files of one purchased order item.
// Tokens are never deleted; the record doubles as an audit trail.
type DownloadToken struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID            primitive.ObjectID `bson:"orderId" json:"orderId"`
	OrderItemID        primitive.ObjectID `bson:"orderItemId" json:"orderItemId"`
	CustomerID         primitive.ObjectID `bson:"customerId" json:"customerId"`
	ProductID          primitive.ObjectID `bson:"productId" json:"productId"`
	Token              string             `bson:"token" json:"token"`
	DownloadsRemaining *int               `bson:"downloadsRemaining" json:"downloadsRemaining"`
	ExpiresAt          time.Time          `bson:"expiresAt" json:"expiresAt"`
	LastDownloadAt     *time.Time         `bson:"lastDownloadAt,omitempty" json:"lastDownloadAt,omitempty"`
	IPAddress          string             `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
}

func (t DownloadToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Exhausted reports whether a finite token has no downloads left.
func (t DownloadToken) Exhausted() bool {
	return t.DownloadsRemaining != nil && *t.DownloadsRemaining <= 0
}
