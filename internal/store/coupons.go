package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
)

type couponRepository struct {
	coll *mongo.Collection
}

func NewCoupons(db *mongo.Database) port.CouponRepository {
	return &couponRepository{coll: db.Collection("coupons")}
}

// NormalizeCode is the stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *couponRepository) GetCouponByCode(ctx context.Context, sellerID primitive.ObjectID, code string) (models.Coupon, error) {
	coupon, err := findOne[models.Coupon](ctx, r.coll, bson.M{
		"sellerId": sellerID,
		"code":     NormalizeCode(code),
	})
	if err != nil {
		return coupon, fmt.Errorf("coupons.FindOne: %w", err)
	}
	return coupon, nil
}

func (r *couponRepository) GetCoupon(ctx context.Context, sellerID, id primitive.ObjectID) (models.Coupon, error) {
	coupon, err := findOne[models.Coupon](ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID})
	if err != nil {
		return coupon, fmt.Errorf("coupons.FindOne: %w", err)
	}
	return coupon, nil
}

func (r *couponRepository) ListCoupons(ctx context.Context, sellerID primitive.ObjectID) ([]models.Coupon, error) {
	coupons, err := findMany[models.Coupon](ctx, r.coll, bson.M{"sellerId": sellerID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("coupons.Find: %w", err)
	}
	return coupons, nil
}

func (r *couponRepository) InsertCoupon(ctx context.Context, coupon models.Coupon) (primitive.ObjectID, error) {
	coupon.Code = NormalizeCode(coupon.Code)
	id, err := insertOne(ctx, r.coll, coupon)
	if err != nil {
		return id, fmt.Errorf("coupons.InsertOne: %w", err)
	}
	return id, nil
}

func (r *couponRepository) UpdateCoupon(ctx context.Context, coupon models.Coupon) error {
	update := bson.M{"$set": bson.M{
		"code":          NormalizeCode(coupon.Code),
		"discountType":  coupon.DiscountType,
		"discountValue": coupon.DiscountValue,
		"isActive":      coupon.IsActive,
		"usageLimit":    coupon.UsageLimit,
		"expiresAt":     coupon.ExpiresAt,
		"updatedAt":     coupon.UpdatedAt,
	}}
	if err := updateOne(ctx, r.coll, bson.M{"_id": coupon.ID, "sellerId": coupon.SellerID}, update); err != nil {
		return fmt.Errorf("coupons.UpdateOne: %w", err)
	}
	return nil
}

func (r *couponRepository) DeleteCoupon(ctx context.Context, sellerID, id primitive.ObjectID) error {
	if err := deleteOne(ctx, r.coll, bson.M{"_id": id, "sellerId": sellerID}); err != nil {
		return fmt.Errorf("coupons.DeleteOne: %w", err)
	}
	return nil
}

func (r *couponRepository) IncrementCouponUsage(ctx context.Context, sellerID primitive.ObjectID, code string) error {
	update := bson.M{
		"$inc": bson.M{"usedCount": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	if err := updateOne(ctx, r.coll, bson.M{"sellerId": sellerID, "code": NormalizeCode(code)}, update); err != nil {
		return fmt.Errorf("coupons.UpdateOne: %w", err)
	}
	return nil
}
