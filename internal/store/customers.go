package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type customerRepository struct {
	coll *mongo.Collection
}

func NewCustomers(db *mongo.Database) port.CustomerRepository {
	return &customerRepository{coll: db.Collection("customers")}
}

func (r *customerRepository) UpsertCustomer(ctx context.Context, sellerID primitive.ObjectID, email, name string) (models.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.Customer{}, errors.New("email is empty")
	}

	now := time.Now().UTC()
	filter := bson.M{"sellerId": sellerID, "email": email}
	set := bson.M{"updatedAt": now}
	if name = strings.TrimSpace(name); name != "" {
		set["name"] = name
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	upsertCtx, cancel := withTimeout(ctx)
	defer cancel()

	var customer models.Customer
	err := r.coll.FindOneAndUpdate(upsertCtx, filter, update, opts).Decode(&customer)
	if mongo.IsDuplicateKeyError(err) {
		// a concurrent upsert created the row first
		customer, err = findOne[models.Customer](ctx, r.coll, filter)
	}
	if err != nil {
		return customer, fmt.Errorf("customers.FindOneAndUpdate: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) ListCustomers(ctx context.Context, sellerID primitive.ObjectID) ([]models.Customer, error) {
	customers, err := findMany[models.Customer](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("customers.Find: %w", err)
	}
	return customers, nil
}
