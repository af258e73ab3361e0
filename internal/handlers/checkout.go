package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/payments"
	"digitalcart/internal/service/checkout"
)

// Stripe signs at most 64KB of payload.
const maxWebhookBody = 65536

type CheckoutItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
}

type CheckoutRequest struct {
	SellerID   string                `json:"sellerId" binding:"required"`
	Email      string                `json:"email" binding:"required,email"`
	Name       string                `json:"name"`
	Items      []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
	CouponCode string                `json:"couponCode"`
	CartID     string                `json:"cartId"`
}

func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrInvalidRequest),
		errors.Is(err, checkout.ErrProductUnavailable),
		errors.Is(err, checkout.ErrMixedCurrency):
		return http.StatusBadRequest
	default:
		return couponStatus(err)
	}
}

func Checkout(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CHECKOUT"
		defer handlePanic(c, route)

		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		seller, err := primitive.ObjectIDFromHex(req.SellerID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid sellerId")
			return
		}
		items := make([]checkout.Item, 0, len(req.Items))
		for _, it := range req.Items {
			id, err := primitive.ObjectIDFromHex(it.ProductID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid productId")
				return
			}
			items = append(items, checkout.Item{ProductID: id, Quantity: it.Quantity})
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := svc.Checkout(ctx, checkout.Request{
			SellerID:   seller,
			Email:      req.Email,
			Name:       req.Name,
			Items:      items,
			CouponCode: req.CouponCode,
			CartID:     req.CartID,
		})
		if err != nil {
			status := checkoutStatus(err)
			if status == http.StatusInternalServerError {
				respondInternal(c, route, err)
				return
			}
			respondWithError(c, status, route, err.Error())
			return
		}

		body := gin.H{
			"success":  res.PaymentError == "",
			"orderId":  res.Order.ID.Hex(),
			"status":   res.Order.Status,
			"subtotal": res.Order.Subtotal,
			"discount": res.Order.Discount,
			"total":    res.Order.Total,
			"currency": res.Order.Currency,
		}
		if res.ClientSecret != "" {
			body["clientSecret"] = res.ClientSecret
		}
		if res.PaymentError != "" {
			body["error"] = res.PaymentError
		}
		c.JSON(http.StatusCreated, body)
	}
}

// StripeWebhook verifies the callback against the raw body and applies it.
// Unknown orders are acknowledged so the provider stops retrying.
func StripeWebhook(gateway payments.Gateway, svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "WEBHOOK"
		defer handlePanic(c, route)

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}

		ev, err := gateway.ParseEvent(payload, c.GetHeader("Stripe-Signature"))
		switch {
		case errors.Is(err, payments.ErrGatewayDisabled):
			respondWithError(c, http.StatusServiceUnavailable, route, err.Error())
			return
		case err != nil:
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		err = svc.HandlePaymentEvent(ctx, ev)
		if errors.Is(err, checkout.ErrOrderNotFound) {
			log.Printf("[WEBHOOK] [WARN] %s for unknown order (order %q, payment %q)", ev.Type, ev.OrderID, ev.PaymentID)
			err = nil
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "type": lo.Ternary(ev.Type == "", "unknown", ev.Type)})
	}
}
