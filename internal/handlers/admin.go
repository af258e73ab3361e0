package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

type PlanCreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Price       float64  `json:"price" binding:"gte=0"`
	Interval    string   `json:"interval" binding:"required,oneof=month year"`
	MaxProducts int      `json:"maxProducts" binding:"gte=0"`
	Features    []string `json:"features"`
	IsActive    *bool    `json:"isActive"`
}

type PlanUpdateRequest struct {
	Name        *string   `json:"name"`
	Price       *float64  `json:"price" binding:"omitempty,gte=0"`
	Interval    *string   `json:"interval" binding:"omitempty,oneof=month year"`
	MaxProducts *int      `json:"maxProducts" binding:"omitempty,gte=0"`
	Features    *[]string `json:"features"`
	IsActive    *bool     `json:"isActive"`
}

type GatewayRequest struct {
	Provider    string `json:"provider" binding:"required,oneof=stripe"`
	DisplayName string `json:"displayName" binding:"required"`
	PublicKey   string `json:"publicKey"`
	SecretKey   string `json:"secretKey"`
	IsActive    *bool  `json:"isActive"`
}

/*
GET /api/admin/plans
?active=true limits to plans sellers can pick.
*/
func ListPlans(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_PLANS"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := plans.ListPlans(ctx, c.Query("active") == "true")
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func CreatePlan(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_PLANS"
		defer handlePanic(c, route)

		var req PlanCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}

		now := time.Now().UTC()
		plan := models.Plan{
			Name:        name,
			Price:       req.Price,
			Interval:    req.Interval,
			MaxProducts: req.MaxProducts,
			Features:    models.StringList(lo.Compact(req.Features)),
			IsActive:    lo.FromPtrOr(req.IsActive, true),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		id, err := plans.InsertPlan(ctx, plan)
		if errors.Is(err, store.ErrDuplicate) {
			respondWithError(c, http.StatusConflict, route, "plan already exists")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		plan.ID = id

		log.Println("[ADMIN_PLANS] [INFO] plan created:", id.Hex())
		c.JSON(http.StatusCreated, plan)
	}
}

func UpdatePlan(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_PLANS"
		defer handlePanic(c, route)

		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		var req PlanUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		plan, err := plans.GetPlan(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "plan not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			plan.Name = name
		}
		plan.Price = lo.FromPtrOr(req.Price, plan.Price)
		plan.Interval = lo.FromPtrOr(req.Interval, plan.Interval)
		plan.MaxProducts = lo.FromPtrOr(req.MaxProducts, plan.MaxProducts)
		plan.IsActive = lo.FromPtrOr(req.IsActive, plan.IsActive)
		if req.Features != nil {
			plan.Features = models.StringList(lo.Compact(*req.Features))
		}
		plan.UpdatedAt = time.Now().UTC()

		if err := plans.UpdatePlan(ctx, plan); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				respondWithError(c, http.StatusNotFound, route, "plan not found")
			case errors.Is(err, store.ErrDuplicate):
				respondWithError(c, http.StatusConflict, route, "plan already exists")
			default:
				respondInternal(c, route, err)
			}
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func DeletePlan(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_PLANS"
		defer handlePanic(c, route)

		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		err := plans.DeletePlan(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "plan not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Gateway secrets are write-only. Responses never carry them.

func ListGateways(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_GATEWAYS"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := plans.ListGateways(ctx)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func CreateGateway(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_GATEWAYS"
		defer handlePanic(c, route)

		var req GatewayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if strings.TrimSpace(req.SecretKey) == "" {
			respondWithError(c, http.StatusBadRequest, route, "secretKey required")
			return
		}

		now := time.Now().UTC()
		gateway := models.PaymentGateway{
			Provider:    req.Provider,
			DisplayName: strings.TrimSpace(req.DisplayName),
			PublicKey:   strings.TrimSpace(req.PublicKey),
			SecretKey:   strings.TrimSpace(req.SecretKey),
			IsActive:    lo.FromPtrOr(req.IsActive, true),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		id, err := plans.InsertGateway(ctx, gateway)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		gateway.ID = id
		c.JSON(http.StatusCreated, gateway)
	}
}

// UpdateGateway replaces the gateway settings. An empty secretKey keeps the
// stored one.
func UpdateGateway(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_GATEWAYS"
		defer handlePanic(c, route)

		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		var req GatewayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		gateway, err := plans.GetGateway(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "gateway not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		gateway.Provider = req.Provider
		gateway.DisplayName = strings.TrimSpace(req.DisplayName)
		gateway.PublicKey = strings.TrimSpace(req.PublicKey)
		gateway.SecretKey = strings.TrimSpace(req.SecretKey)
		gateway.IsActive = lo.FromPtrOr(req.IsActive, gateway.IsActive)
		gateway.UpdatedAt = time.Now().UTC()

		if err := plans.UpdateGateway(ctx, gateway); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "gateway not found")
				return
			}
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gateway)
	}
}

func DeleteGateway(plans port.PlanRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ADMIN_GATEWAYS"
		defer handlePanic(c, route)

		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		err := plans.DeleteGateway(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "gateway not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
