package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type planRepository struct {
	plans    *mongo.Collection
	gateways *mongo.Collection
}

func NewPlans(db *mongo.Database) port.PlanRepository {
	return &planRepository{
		plans:    db.Collection("plans"),
		gateways: db.Collection("payment_gateways"),
	}
}

func (r *planRepository) InsertPlan(ctx context.Context, plan models.Plan) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.plans, plan)
	if err != nil {
		return id, fmt.Errorf("plans.InsertOne: %w", err)
	}
	return id, nil
}

func (r *planRepository) GetPlan(ctx context.Context, id primitive.ObjectID) (models.Plan, error) {
	plan, err := findOne[models.Plan](ctx, r.plans, bson.M{"_id": id})
	if err != nil {
		return plan, fmt.Errorf("plans.FindOne: %w", err)
	}
	return plan, nil
}

func (r *planRepository) ListPlans(ctx context.Context, onlyActive bool) ([]models.Plan, error) {
	filter := bson.M{}
	if onlyActive {
		filter["isActive"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "price", Value: 1}})

	plans, err := findMany[models.Plan](ctx, r.plans, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("plans.Find: %w", err)
	}
	return plans, nil
}

func (r *planRepository) UpdatePlan(ctx context.Context, plan models.Plan) error {
	update := bson.M{"$set": bson.M{
		"name":        plan.Name,
		"price":       plan.Price,
		"interval":    plan.Interval,
		"maxProducts": plan.MaxProducts,
		"features":    plan.Features,
		"isActive":    plan.IsActive,
		"updatedAt":   plan.UpdatedAt,
	}}
	if err := updateOne(ctx, r.plans, bson.M{"_id": plan.ID}, update); err != nil {
		return fmt.Errorf("plans.UpdateOne: %w", err)
	}
	return nil
}

func (r *planRepository) DeletePlan(ctx context.Context, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.plans, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("plans.DeleteOne: %w", err)
	}
	return nil
}

func (r *planRepository) InsertGateway(ctx context.Context, gateway models.PaymentGateway) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.gateways, gateway)
	if err != nil {
		return id, fmt.Errorf("payment_gateways.InsertOne: %w", err)
	}
	return id, nil
}

func (r *planRepository) GetGateway(ctx context.Context, id primitive.ObjectID) (models.PaymentGateway, error) {
	gateway, err := findOne[models.PaymentGateway](ctx, r.gateways, bson.M{"_id": id})
	if err != nil {
		return gateway, fmt.Errorf("payment_gateways.FindOne: %w", err)
	}
	return gateway, nil
}

func (r *planRepository) ListGateways(ctx context.Context) ([]models.PaymentGateway, error) {
	gateways, err := findMany[models.PaymentGateway](ctx, r.gateways, bson.M{}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("payment_gateways.Find: %w", err)
	}
	return gateways, nil
}

// UpdateGateway keeps the stored secret when the update carries none.
func (r *planRepository) UpdateGateway(ctx context.Context, gateway models.PaymentGateway) error {
	set := bson.M{
		"provider":    gateway.Provider,
		"displayName": gateway.DisplayName,
		"publicKey":   gateway.PublicKey,
		"isActive":    gateway.IsActive,
		"updatedAt":   gateway.UpdatedAt,
	}
	if gateway.SecretKey != "" {
		set["secretKey"] = gateway.SecretKey
	}
	if err := updateOne(ctx, r.gateways, bson.M{"_id": gateway.ID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("payment_gateways.UpdateOne: %w", err)
	}
	return nil
}

func (r *planRepository) DeleteGateway(ctx context.Context, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.gateways, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("payment_gateways.DeleteOne: %w", err)
	}
	return nil
}
