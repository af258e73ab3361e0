package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/mailer"
	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

type TemplateRequest struct {
	Name    string `json:"name" binding:"required"`
	Kind    string `json:"kind" binding:"required,oneof=order_confirmation cart_abandonment"`
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
}

func (r TemplateRequest) toTemplate(seller primitive.ObjectID) (models.EmailTemplate, error) {
	tpl := models.EmailTemplate{
		SellerID: seller,
		Name:     strings.TrimSpace(r.Name),
		Kind:     r.Kind,
		Subject:  strings.TrimSpace(r.Subject),
		Body:     r.Body,
	}
	if err := mailer.Validate(tpl); err != nil {
		return tpl, errors.New("template does not parse: " + err.Error())
	}
	return tpl, nil
}

func ListTemplates(templates port.TemplateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "TEMPLATES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := templates.ListTemplates(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if list == nil {
			list = []models.EmailTemplate{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func CreateTemplate(templates port.TemplateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "TEMPLATES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		var req TemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		tpl, err := req.toTemplate(seller)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		tpl.CreatedAt, tpl.UpdatedAt = now, now
		tpl.ID, err = templates.InsertTemplate(ctx, tpl)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, tpl)
	}
}

func UpdateTemplate(templates port.TemplateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "TEMPLATES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		var req TemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		tpl, err := req.toTemplate(seller)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		tpl.ID = id
		tpl.UpdatedAt = time.Now().UTC()
		err = templates.UpdateTemplate(ctx, tpl)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "template not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		updated, err := templates.GetSellerTemplate(ctx, seller, id)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteTemplate(templates port.TemplateRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "TEMPLATES"
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

		err := templates.DeleteTemplate(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "template not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
	}
}
