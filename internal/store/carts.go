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

type cartRepository struct {
	coll *mongo.Collection
}

func NewCarts(db *mongo.Database) port.CartRepository {
	return &cartRepository{coll: db.Collection("abandoned_carts")}
}

func (r *cartRepository) TrackCart(ctx context.Context, cart models.AbandonedCart, now time.Time) (models.AbandonedCart, error) {
	set := bson.M{
		"product":     cart.Product,
		"checkoutUrl": cart.CheckoutURL,
		"updatedAt":   now,
	}
	// a later snapshot without contact details keeps the known ones
	if email := strings.TrimSpace(cart.Email); email != "" {
		set["email"] = email
	}
	if name := strings.TrimSpace(cart.Name); name != "" {
		set["name"] = name
	}

	setOnInsert := bson.M{
		"sellerId":   cart.SellerID,
		"createdAt":  now,
		"emailsSent": 0,
		"recovered":  false,
	}
	if _, ok := set["email"]; !ok {
		setOnInsert["email"] = ""
	}

	update := bson.M{"$set": set, "$setOnInsert": setOnInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	upsertCtx, cancel := withTimeout(ctx)
	defer cancel()

	// a cart id taken by another seller misses the filter and collides on _id
	filter := bson.M{"_id": cart.ID, "sellerId": cart.SellerID}
	var stored models.AbandonedCart
	err := r.coll.FindOneAndUpdate(upsertCtx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		err = r.coll.FindOneAndUpdate(upsertCtx, filter, update, opts.SetUpsert(false)).Decode(&stored)
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = ErrConflict
		}
	}
	if err != nil {
		return stored, fmt.Errorf("abandoned_carts.FindOneAndUpdate: %w", err)
	}
	return stored, nil
}

func (r *cartRepository) MarkCartRecovered(ctx context.Context, id string, now time.Time) error {
	update := bson.M{"$set": bson.M{
		"recovered":   true,
		"recoveredAt": now,
		"updatedAt":   now,
	}}
	err := updateOne(ctx, r.coll, bson.M{"_id": id, "recovered": false}, update)
	if errors.Is(err, ErrNotFound) {
		// already recovered carts keep their first recoveredAt
		if _, getErr := r.GetCart(ctx, id); getErr != nil {
			return getErr
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("abandoned_carts.UpdateOne: %w", err)
	}
	return nil
}

func (r *cartRepository) GetCart(ctx context.Context, id string) (models.AbandonedCart, error) {
	cart, err := findOne[models.AbandonedCart](ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return cart, fmt.Errorf("abandoned_carts.FindOne: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) ListCarts(ctx context.Context, sellerID primitive.ObjectID) ([]models.AbandonedCart, error) {
	carts, err := findMany[models.AbandonedCart](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("abandoned_carts.Find: %w", err)
	}
	return carts, nil
}

func (r *cartRepository) ListPendingCarts(ctx context.Context, createdBefore time.Time) ([]models.AbandonedCart, error) {
	filter := bson.M{
		"recovered": false,
		"email":     bson.M{"$ne": ""},
		"createdAt": bson.M{"$lte": createdBefore},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	carts, err := findMany[models.AbandonedCart](ctx, r.coll, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("abandoned_carts.Find: %w", err)
	}
	return carts, nil
}

func (r *cartRepository) ClaimCartStep(ctx context.Context, id string, expectedSent int, lastSentBefore, now time.Time) (bool, error) {
	filter := bson.M{
		"_id":        id,
		"recovered":  false,
		"emailsSent": expectedSent,
		"$or": bson.A{
			bson.M{"lastEmailSent": nil},
			bson.M{"lastEmailSent": bson.M{"$lte": lastSentBefore}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"emailsSent": 1},
		"$set": bson.M{"lastEmailSent": now},
	}

	err := updateOne(ctx, r.coll, filter, update)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("abandoned_carts.UpdateOne: %w", err)
	}
	return true, nil
}
