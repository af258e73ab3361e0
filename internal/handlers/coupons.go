package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/service/coupon"
	"digitalcart/internal/store"
)

type ValidateCouponRequest struct {
	Code     string `json:"code" binding:"required"`
	SellerID string `json:"sellerId" binding:"required"`
}

type CouponRequest struct {
	Code          string     `json:"code" binding:"required"`
	DiscountType  string     `json:"discountType" binding:"required,oneof=percent fixed"`
	DiscountValue float64    `json:"discountValue" binding:"required,gt=0"`
	IsActive      *bool      `json:"isActive"`
	UsageLimit    *int       `json:"usageLimit" binding:"omitempty,min=0"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

func (r CouponRequest) toCoupon(seller primitive.ObjectID) models.Coupon {
	return models.Coupon{
		SellerID:      seller,
		Code:          store.NormalizeCode(r.Code),
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		IsActive:      lo.FromPtrOr(r.IsActive, true),
		UsageLimit:    r.UsageLimit,
		ExpiresAt:     r.ExpiresAt,
	}
}

func couponStatus(err error) int {
	switch {
	case errors.Is(err, coupon.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrCouponExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ValidateCoupon is public: checkout pages call it before placing an order.
func ValidateCoupon(svc *coupon.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "COUPON"
		defer handlePanic(c, route)

		var req ValidateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		seller, err := primitive.ObjectIDFromHex(req.SellerID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid sellerId")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		found, err := svc.Validate(ctx, seller, req.Code)
		if err != nil {
			status := couponStatus(err)
			if status == http.StatusInternalServerError {
				respondInternal(c, route, err)
				return
			}
			respondWithError(c, status, route, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid":         true,
			"code":          found.Code,
			"discountType":  found.DiscountType,
			"discountValue": found.DiscountValue,
		})
	}
}

func ListCoupons(coupons port.CouponRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "COUPON"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := coupons.ListCoupons(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if list == nil {
			list = []models.Coupon{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func CreateCoupon(coupons port.CouponRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "COUPON"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		var req CouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		cp := req.toCoupon(seller)
		if err := coupon.ValidateDefinition(cp); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		cp.CreatedAt, cp.UpdatedAt = now, now
		id, err := coupons.InsertCoupon(ctx, cp)
		if errors.Is(err, store.ErrDuplicate) {
			respondWithError(c, http.StatusConflict, route, "coupon code already exists")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		cp.ID = id
		c.JSON(http.StatusCreated, cp)
	}
}

func UpdateCoupon(coupons port.CouponRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "COUPON"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		var req CouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		cp := req.toCoupon(seller)
		if err := coupon.ValidateDefinition(cp); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		cp.ID = id
		cp.UpdatedAt = time.Now().UTC()
		err := coupons.UpdateCoupon(ctx, cp)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "coupon not found")
			return
		case errors.Is(err, store.ErrDuplicate):
			respondWithError(c, http.StatusConflict, route, "coupon code already exists")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}

		updated, err := coupons.GetCoupon(ctx, seller, id)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteCoupon(coupons port.CouponRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "COUPON"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		err := coupons.DeleteCoupon(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "coupon not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "coupon deleted"})
	}
}
