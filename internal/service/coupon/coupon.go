package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/money"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponInactive    = errors.New("coupon is not active")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	ErrCouponExpired     = errors.New("coupon has expired")
	ErrInvalidDiscount   = errors.New("invalid discount")
)

type Service struct {
	coupons port.CouponRepository
	now     func() time.Time
}

func NewService(coupons port.CouponRepository) *Service {
	return &Service{coupons: coupons, now: time.Now}
}

// Validate fetches the seller's coupon and checks it can be applied now.
func (s *Service) Validate(ctx context.Context, sellerID primitive.ObjectID, code string) (models.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return models.Coupon{}, ErrCouponNotFound
	}

	c, err := s.coupons.GetCouponByCode(ctx, sellerID, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Coupon{}, ErrCouponNotFound
		}
		return models.Coupon{}, err
	}

	if err := Check(c, s.now()); err != nil {
		return c, err
	}
	return c, nil
}

// Check applies the coupon rules in order; the first failing rule wins.
func Check(c models.Coupon, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return ErrCouponExpired
	}
	return nil
}

// Discount is the amount taken off subtotal, never more than subtotal.
func Discount(c models.Coupon, subtotal decimal.Decimal, currency string) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	value := decimal.NewFromFloat(c.DiscountValue)
	var off decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercent:
		off = subtotal.Mul(value).Div(decimal.NewFromInt(100))
	case models.DiscountFixed:
		off = value
	default:
		return decimal.Zero
	}

	if off.IsNegative() {
		return decimal.Zero
	}
	if off.GreaterThan(subtotal) {
		off = subtotal
	}
	return money.Round(off, currency)
}

// ValidateDefinition checks a coupon before it is stored.
func ValidateDefinition(c models.Coupon) error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.New("code is required")
	}
	switch c.DiscountType {
	case models.DiscountPercent:
		if c.DiscountValue <= 0 || c.DiscountValue > 100 {
			return ErrInvalidDiscount
		}
	case models.DiscountFixed:
		if c.DiscountValue <= 0 {
			return ErrInvalidDiscount
		}
	default:
		return errors.New("discountType must be percent or fixed")
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return errors.New("usageLimit must not be negative")
	}
	return nil
}
