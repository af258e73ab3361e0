package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type downloadTokenRepository struct {
	coll *mongo.Collection
}

func NewDownloadTokens(db *mongo.Database) port.DownloadTokenRepository {
	return &downloadTokenRepository{coll: db.Collection("download_tokens")}
}

func (r *downloadTokenRepository) EnsureToken(ctx context.Context, token models.DownloadToken) (models.DownloadToken, error) {
	filter := bson.M{"orderItemId": token.OrderItemID}
	update := bson.M{"$setOnInsert": bson.M{
		"orderId":            token.OrderID,
		"customerId":         token.CustomerID,
		"productId":          token.ProductID,
		"token":              token.Token,
		"downloadsRemaining": token.DownloadsRemaining,
		"expiresAt":          token.ExpiresAt,
		"createdAt":          token.CreatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	upsertCtx, cancel := withTimeout(ctx)
	defer cancel()

	var stored models.DownloadToken
	err := r.coll.FindOneAndUpdate(upsertCtx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// lost the race against a concurrent issue for the same item
		stored, err = findOne[models.DownloadToken](ctx, r.coll, filter)
	}
	if err != nil {
		return stored, fmt.Errorf("download_tokens.FindOneAndUpdate: %w", err)
	}
	return stored, nil
}

func (r *downloadTokenRepository) GetToken(ctx context.Context, token string) (models.DownloadToken, error) {
	stored, err := findOne[models.DownloadToken](ctx, r.coll, bson.M{"token": token})
	if err != nil {
		return stored, fmt.Errorf("download_tokens.FindOne: %w", err)
	}
	return stored, nil
}

func (r *downloadTokenRepository) ListOrderTokens(ctx context.Context, orderID primitive.ObjectID) ([]models.DownloadToken, error) {
	tokens, err := findMany[models.DownloadToken](ctx, r.coll, bson.M{"orderId": orderID})
	if err != nil {
		return nil, fmt.Errorf("download_tokens.Find: %w", err)
	}
	return tokens, nil
}

// ConsumeToken uses a pipeline update so finite and unlimited tokens are
// handled by the same conditional write.
func (r *downloadTokenRepository) ConsumeToken(ctx context.Context, token string, now time.Time, ip string) (models.DownloadToken, error) {
	filter := bson.M{
		"token":     token,
		"expiresAt": bson.M{"$gt": now},
		"$or": bson.A{
			bson.M{"downloadsRemaining": nil},
			bson.M{"downloadsRemaining": bson.M{"$gt": 0}},
		},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "downloadsRemaining", Value: bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{"$downloadsRemaining", nil}},
				bson.M{"$subtract": bson.A{"$downloadsRemaining", 1}},
				nil,
			}}},
			{Key: "lastDownloadAt", Value: now},
			{Key: "ipAddress", Value: bson.M{"$literal": ip}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var stored models.DownloadToken
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return stored, fmt.Errorf("download_tokens.FindOneAndUpdate: %w", ErrConflict)
	}
	if err != nil {
		return stored, fmt.Errorf("download_tokens.FindOneAndUpdate: %w", err)
	}
	return stored, nil
}
