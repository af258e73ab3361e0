package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultDownloadExpiryDays applies when a product does not configure its own
// download window.
const DefaultDownloadExpiryDays = 30

type ProductFile struct {
	ID          primitive.ObjectID `bson:"id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	FileURL     string             `bson:"fileUrl" json:"fileUrl"`
	FileSize    int64              `bson:"fileSize" json:"fileSize"`
	ContentType string             `bson:"contentType,omitempty" json:"contentType,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

type Product struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID           primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	Price              float64            `bson:"price" json:"price"`
	Currency           string             `bson:"currency" json:"currency"`
	ImagePath          string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Tags               StringList         `bson:"tags" json:"tags"`
	DownloadLimit      *int               `bson:"downloadLimit" json:"downloadLimit"`
	DownloadExpiryDays int                `bson:"downloadExpiryDays" json:"downloadExpiryDays"`
	Files              []ProductFile      `bson:"files" json:"files"`
	IsActive           bool               `bson:"isActive" json:"isActive"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DownloadWindow is how long a freshly issued download token stays valid.
func (p Product) DownloadWindow() time.Duration {
	days := p.DownloadExpiryDays
	if days <= 0 {
		days = DefaultDownloadExpiryDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// FileByID returns the file with the given id, if the product has it.
func (p Product) FileByID(id primitive.ObjectID) (ProductFile, bool) {
	for _, f := range p.Files {
		if f.ID == id {
			return f, true
		}
	}
	return ProductFile{}, false
}
