package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type productRepository struct {
	coll *mongo.Collection
}

func NewProducts(db *mongo.Database) port.ProductRepository {
	return &productRepository{coll: db.Collection("products")}
}

func (r *productRepository) GetProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	product, err := findOne[models.Product](ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return product, fmt.Errorf("products.FindOne: %w", err)
	}
	return product, nil
}

func (r *productRepository) GetSellerProduct(ctx context.Context, sellerID, id primitive.ObjectID) (models.Product, error) {
	product, err := findOne[models.Product](ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID})
	if err != nil {
		return product, fmt.Errorf("products.FindOne: %w", err)
	}
	return product, nil
}

func (r *productRepository) GetSellerProducts(ctx context.Context, sellerID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Product, error) {
	products, err := findMany[models.Product](ctx, r.coll, bson.M{
		"_id":      bson.M{"$in": ids},
		"sellerId": sellerID,
	})
	if err != nil {
		return nil, fmt.Errorf("products.Find: %w", err)
	}
	return products, nil
}

func (r *productRepository) ListProducts(ctx context.Context, sellerID primitive.ObjectID) ([]models.Product, error) {
	products, err := findMany[models.Product](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("products.Find: %w", err)
	}
	return products, nil
}

func (r *productRepository) InsertProduct(ctx context.Context, product models.Product) (primitive.ObjectID, error) {
	if product.Files == nil {
		product.Files = []models.ProductFile{}
	}
	id, err := insertOne(ctx, r.coll, product)
	if err != nil {
		return id, fmt.Errorf("products.InsertOne: %w", err)
	}
	return id, nil
}

// UpdateProduct rewrites the editable fields. Files are managed separately.
func (r *productRepository) UpdateProduct(ctx context.Context, product models.Product) error {
	update := bson.M{"$set": bson.M{
		"name":               product.Name,
		"description":        product.Description,
		"price":              product.Price,
		"currency":           product.Currency,
		"imagePath":          product.ImagePath,
		"tags":               product.Tags,
		"downloadLimit":      product.DownloadLimit,
		"downloadExpiryDays": product.DownloadExpiryDays,
		"isActive":           product.IsActive,
		"updatedAt":          product.UpdatedAt,
	}}
	if err := updateOne(ctx, r.coll, bson.M{"_id": product.ID, "sellerId": product.SellerID}, update); err != nil {
		return fmt.Errorf("products.UpdateOne: %w", err)
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, sellerID, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID}); err != nil {
		return fmt.Errorf("products.DeleteOne: %w", err)
	}
	return nil
}

func (r *productRepository) AddProductFile(ctx context.Context, sellerID, productID primitive.ObjectID, file models.ProductFile) error {
	update := bson.M{
		"$push": bson.M{"files": file},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	if err := updateOne(ctx, r.coll, bson.M{"_id": productID, "sellerId": sellerID}, update); err != nil {
		return fmt.Errorf("products.UpdateOne: %w", err)
	}
	return nil
}

// RemoveProductFile pulls the file from the product and returns it so the
// caller can delete the stored bytes.
func (r *productRepository) RemoveProductFile(ctx context.Context, sellerID, productID, fileID primitive.ObjectID) (models.ProductFile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": productID, "sellerId": sellerID, "files.id": fileID}
	update := bson.M{
		"$pull": bson.M{"files": bson.M{"id": fileID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before models.Product
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return models.ProductFile{}, fmt.Errorf("products.FindOneAndUpdate: %w", ErrNotFound)
	}
	if err != nil {
		return models.ProductFile{}, fmt.Errorf("products.FindOneAndUpdate: %w", err)
	}

	file, _ := before.FileByID(fileID)
	return file, nil
}
