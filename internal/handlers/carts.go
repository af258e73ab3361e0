package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/service/abandonment"
)

type TrackCartRequest struct {
	CartID      string             `json:"cartId" binding:"required"`
	SellerID    string             `json:"sellerId" binding:"required"`
	Email       string             `json:"email" binding:"omitempty,email"`
	Name        string             `json:"name"`
	Product     models.CartProduct `json:"product"`
	CheckoutURL string             `json:"checkoutUrl"`
}

type SequenceRequest struct {
	Steps []models.SequenceStep `json:"steps" binding:"required,min=1,dive"`
}

func TrackCart(svc *abandonment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		var req TrackCartRequest
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

		cart, err := svc.Track(ctx, models.AbandonedCart{
			ID:          req.CartID,
			SellerID:    seller,
			Email:       req.Email,
			Name:        req.Name,
			Product:     req.Product,
			CheckoutURL: req.CheckoutURL,
		})
		switch {
		case errors.Is(err, abandonment.ErrInvalidCart):
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		case errors.Is(err, abandonment.ErrCartTaken):
			respondWithError(c, http.StatusConflict, route, err.Error())
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "cart": cart})
	}
}

func RecoverCart(svc *abandonment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		err := svc.MarkRecovered(ctx, c.Param("cartId"))
		if errors.Is(err, abandonment.ErrCartNotFound) {
			respondWithError(c, http.StatusNotFound, route, "cart not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func ListAbandonedCarts(svc *abandonment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CART"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		carts, stats, err := svc.List(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if carts == nil {
			carts = []models.AbandonedCart{}
		}
		c.JSON(http.StatusOK, gin.H{"carts": carts, "stats": stats})
	}
}

func GetSequence(svc *abandonment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "SEQUENCE"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		steps, err := svc.Sequence(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"steps": steps})
	}
}

func PutSequence(svc *abandonment.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "SEQUENCE"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		var req SequenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		seq, err := svc.SaveSequence(ctx, seller, req.Steps)
		if errors.Is(err, abandonment.ErrInvalidSequence) {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, seq)
	}
}
