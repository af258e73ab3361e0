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

type templateRepository struct {
	coll *mongo.Collection
}

func NewTemplates(db *mongo.Database) port.TemplateRepository {
	return &templateRepository{coll: db.Collection("email_templates")}
}

func (r *templateRepository) InsertTemplate(ctx context.Context, tpl models.EmailTemplate) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.coll, tpl)
	if err != nil {
		return id, fmt.Errorf("email_templates.InsertOne: %w", err)
	}
	return id, nil
}

// GetTemplateByKind returns the most recently updated template of that kind.
func (r *templateRepository) GetTemplateByKind(ctx context.Context, sellerID primitive.ObjectID, kind string) (models.EmailTemplate, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	tpl, err := findOne[models.EmailTemplate](ctx, r.coll, bson.M{"sellerId": sellerID, "kind": kind}, opts)
	if err != nil {
		return tpl, fmt.Errorf("email_templates.FindOne: %w", err)
	}
	return tpl, nil
}

func (r *templateRepository) GetSellerTemplate(ctx context.Context, sellerID, id primitive.ObjectID) (models.EmailTemplate, error) {
	tpl, err := findOne[models.EmailTemplate](ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID})
	if err != nil {
		return tpl, fmt.Errorf("email_templates.FindOne: %w", err)
	}
	return tpl, nil
}

func (r *templateRepository) ListTemplates(ctx context.Context, sellerID primitive.ObjectID) ([]models.EmailTemplate, error) {
	templates, err := findMany[models.EmailTemplate](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("email_templates.Find: %w", err)
	}
	return templates, nil
}

func (r *templateRepository) UpdateTemplate(ctx context.Context, tpl models.EmailTemplate) error {
	update := bson.M{"$set": bson.M{
		"name":      tpl.Name,
		"kind":      tpl.Kind,
		"subject":   tpl.Subject,
		"body":      tpl.Body,
		"updatedAt": tpl.UpdatedAt,
	}}
	if err := updateOne(ctx, r.coll, bson.M{"_id": tpl.ID, "sellerId": tpl.SellerID}, update); err != nil {
		return fmt.Errorf("email_templates.UpdateOne: %w", err)
	}
	return nil
}

func (r *templateRepository) DeleteTemplate(ctx context.Context, sellerID, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID}); err != nil {
		return fmt.Errorf("email_templates.DeleteOne: %w", err)
	}
	return nil
}
