package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type userRepository struct {
	users   *mongo.Collection
	refresh *mongo.Collection
}

func NewUsers(db *mongo.Database) port.UserRepository {
	return &userRepository{
		users:   db.Collection("users"),
		refresh: db.Collection("refresh_tokens"),
	}
}

func (r *userRepository) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	user, err := findOne[models.User](ctx, r.users, bson.M{"_id": id})
	if err != nil {
		return user, fmt.Errorf("users.FindOne: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := findOne[models.User](ctx, r.users, bson.M{"email": email})
	if err != nil {
		return user, fmt.Errorf("users.FindOne: %w", err)
	}
	return user, nil
}

func (r *userRepository) InsertUser(ctx context.Context, user models.User) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.users, user)
	if err != nil {
		return id, fmt.Errorf("users.InsertOne: %w", err)
	}
	return id, nil
}

func (r *userRepository) InsertRefreshToken(ctx context.Context, token models.RefreshToken) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.refresh, token)
	if err != nil {
		return id, fmt.Errorf("refresh_tokens.InsertOne: %w", err)
	}
	return id, nil
}

func (r *userRepository) GetActiveRefreshToken(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	token, err := findOne[models.RefreshToken](ctx, r.refresh, bson.M{
		"tokenHash": tokenHash,
		"revoked":   false,
	})
	if err != nil {
		return token, fmt.Errorf("refresh_tokens.FindOne: %w", err)
	}
	return token, nil
}

func (r *userRepository) RevokeRefreshToken(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	set := bson.M{"revoked": true}
	if replacedBy != nil {
		set["replacedByToken"] = *replacedBy
	}
	if err := updateOne(ctx, r.refresh, bson.M{"_id": id, "revoked": false}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("refresh_tokens.UpdateOne: %w", err)
	}
	return nil
}

func (r *userRepository) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	err := updateOne(ctx, r.refresh, bson.M{
		"tokenHash": tokenHash,
		"revoked":   false,
	}, bson.M{"$set": bson.M{"revoked": true}})
	if err != nil {
		return fmt.Errorf("refresh_tokens.UpdateOne: %w", err)
	}
	return nil
}
