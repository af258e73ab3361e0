package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesCommaSeparatedString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"features": "unlimited products, custom domain,,unlimited products"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var plan Plan
	if err := bson.Unmarshal(raw, &plan); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(plan.Features) != 2 || plan.Features[0] != "unlimited products" || plan.Features[1] != "custom domain" {
		t.Fatalf("unexpected features: %#v", plan.Features)
	}
}

func TestStringListDecodesArray(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": []string{"ebook", " course "}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var product Product
	if err := bson.Unmarshal(raw, &product); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(product.Tags) != 2 || product.Tags[1] != "course" {
		t.Fatalf("unexpected tags: %#v", product.Tags)
	}
}

func TestDownloadWindowDefaultsToThirtyDays(t *testing.T) {
	var p Product
	if got := p.DownloadWindow().Hours(); got != 30*24 {
		t.Fatalf("expected 720h default window, got %v", got)
	}
	p.DownloadExpiryDays = 1
	if got := p.DownloadWindow().Hours(); got != 24 {
		t.Fatalf("expected 24h window, got %v", got)
	}
}
