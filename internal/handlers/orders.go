package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

// ListOrders returns the seller's orders newest first, optionally filtered
// by ?status=.
func ListOrders(orders port.OrderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ORDERS"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		var status models.OrderStatus
		if raw := c.Query("status"); raw != "" {
			status, err = models.ToOrderStatus(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := orders.ListOrders(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if status != "" {
			list = lo.Filter(list, func(o models.Order, _ int) bool { return o.Status == status })
		}

		data, pagination := paginate(list, page, limit)
		c.JSON(http.StatusOK, gin.H{"data": data, "pagination": pagination})
	}
}

func GetOrder(orders port.OrderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "ORDERS"
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

		order, err := orders.GetSellerOrder(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func ListCustomers(customers port.CustomerRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CUSTOMERS"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := customers.ListCustomers(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		data, pagination := paginate(list, page, limit)
		c.JSON(http.StatusOK, gin.H{"data": data, "pagination": pagination})
	}
}
