package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{"users", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}}},
		{"customers", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetName("seller_email_unique").SetUnique(true),
		}}},
		{"products", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("seller_created"),
		}}},
		{"orders", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "confirmationToken", Value: 1}},
				Options: options.Index().SetName("confirmation_token_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("seller_created"),
			},
			{
				Keys:    bson.D{{Key: "paymentId", Value: 1}},
				Options: options.Index().SetName("payment_id").SetSparse(true),
			},
		}},
		// one token per order item; the unique index is what makes token
		// creation idempotent under concurrent requests
		{"download_tokens", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetName("token_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "orderItemId", Value: 1}},
				Options: options.Index().SetName("order_item_unique").SetUnique(true),
			},
		}},
		{"coupons", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "code", Value: 1}},
			Options: options.Index().SetName("seller_code_unique").SetUnique(true),
		}}},
		{"abandoned_carts", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "recovered", Value: 1}, {Key: "createdAt", Value: 1}},
				Options: options.Index().SetName("due_scan"),
			},
			{
				Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("seller_created"),
			},
		}},
		{"checkout_pages", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("slug_unique").SetUnique(true),
		}}},
		{"refresh_tokens", []mongo.IndexModel{{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("token_hash_unique").SetUnique(true),
		}}},
	}
}

// EnsureIndexes creates every index the stores rely on. It stops at the first
// failure so a broken uniqueness guarantee is not silently ignored.
func EnsureIndexes(db *mongo.Database) error {
	for _, plan := range indexPlan() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		names, err := db.Collection(plan.collection).Indexes().CreateMany(ctx, plan.models)
		cancel()
		if err != nil {
			log.Printf("EnsureIndexes: %s index error: %v", plan.collection, err)
			return err
		}
		log.Printf("EnsureIndexes: %s indexes ready: %v", plan.collection, names)
	}
	return nil
}
