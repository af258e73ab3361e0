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

type orderRepository struct {
	coll *mongo.Collection
}

func NewOrders(db *mongo.Database) port.OrderRepository {
	return &orderRepository{coll: db.Collection("orders")}
}

func (r *orderRepository) InsertOrder(ctx context.Context, order models.Order) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.coll, order)
	if err != nil {
		return id, fmt.Errorf("orders.InsertOne: %w", err)
	}
	return id, nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := findOne[models.Order](ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return order, fmt.Errorf("orders.FindOne: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetOrderByConfirmationToken(ctx context.Context, token string) (models.Order, error) {
	order, err := findOne[models.Order](ctx, r.coll, bson.M{"confirmationToken": token})
	if err != nil {
		return order, fmt.Errorf("orders.FindOne: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetOrderByPaymentID(ctx context.Context, paymentID string) (models.Order, error) {
	order, err := findOne[models.Order](ctx, r.coll, bson.M{"paymentId": paymentID})
	if err != nil {
		return order, fmt.Errorf("orders.FindOne: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetSellerOrder(ctx context.Context, sellerID, id primitive.ObjectID) (models.Order, error) {
	order, err := findOne[models.Order](ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID})
	if err != nil {
		return order, fmt.Errorf("orders.FindOne: %w", err)
	}
	return order, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	orders, err := findMany[models.Order](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("orders.Find: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) SetPaymentID(ctx context.Context, id primitive.ObjectID, paymentID string) error {
	update := bson.M{"$set": bson.M{"paymentId": paymentID, "updatedAt": time.Now().UTC()}}
	if err := updateOne(ctx, r.coll, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("orders.UpdateOne: %w", err)
	}
	return nil
}

func (r *orderRepository) TransitionOrder(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, paymentID string, now time.Time) (models.Order, error) {
	set := bson.M{"status": to, "updatedAt": now}
	if to == models.OrderStatusCompleted {
		set["completedAt"] = now
	}
	if paymentID != "" {
		set["paymentId"] = paymentID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	updateCtx, cancel := withTimeout(ctx)
	defer cancel()

	var order models.Order
	err := r.coll.FindOneAndUpdate(updateCtx, bson.M{"_id": id, "status": bson.M{"$in": from}}, bson.M{"$set": set}, opts).Decode(&order)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return order, fmt.Errorf("orders.FindOneAndUpdate: %w", err)
	}

	if _, getErr := r.GetOrder(ctx, id); getErr != nil {
		return order, getErr
	}
	return order, fmt.Errorf("orders.FindOneAndUpdate: %w", ErrConflict)
}
