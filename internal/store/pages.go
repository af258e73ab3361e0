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

type pageRepository struct {
	coll *mongo.Collection
}

func NewPages(db *mongo.Database) port.PageRepository {
	return &pageRepository{coll: db.Collection("checkout_pages")}
}

func (r *pageRepository) InsertPage(ctx context.Context, page models.CheckoutPage) (primitive.ObjectID, error) {
	id, err := insertOne(ctx, r.coll, page)
	if err != nil {
		return id, fmt.Errorf("checkout_pages.InsertOne: %w", err)
	}
	return id, nil
}

func (r *pageRepository) GetPublishedPage(ctx context.Context, slug string) (models.CheckoutPage, error) {
	page, err := findOne[models.CheckoutPage](ctx, r.coll, bson.M{"slug": slug, "isPublished": true})
	if err != nil {
		return page, fmt.Errorf("checkout_pages.FindOne: %w", err)
	}
	return page, nil
}

func (r *pageRepository) GetSellerPage(ctx context.Context, sellerID, id primitive.ObjectID) (models.CheckoutPage, error) {
	page, err := findOne[models.CheckoutPage](ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID})
	if err != nil {
		return page, fmt.Errorf("checkout_pages.FindOne: %w", err)
	}
	return page, nil
}

func (r *pageRepository) ListPages(ctx context.Context, sellerID primitive.ObjectID) ([]models.CheckoutPage, error) {
	pages, err := findMany[models.CheckoutPage](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("checkout_pages.Find: %w", err)
	}
	return pages, nil
}

func (r *pageRepository) UpdatePage(ctx context.Context, page models.CheckoutPage) error {
	update := bson.M{"$set": bson.M{
		"slug":        page.Slug,
		"title":       page.Title,
		"kind":        page.Kind,
		"productIds":  page.ProductIDs,
		"blocks":      page.Blocks,
		"isPublished": page.IsPublished,
		"updatedAt":   page.UpdatedAt,
	}}
	if err := updateOne(ctx, r.coll, bson.M{"_id": page.ID, "sellerId": page.SellerID}, update); err != nil {
		return fmt.Errorf("checkout_pages.UpdateOne: %w", err)
	}
	return nil
}

func (r *pageRepository) DeletePage(ctx context.Context, sellerID, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID}); err != nil {
		return fmt.Errorf("checkout_pages.DeleteOne: %w", err)
	}
	return nil
}
