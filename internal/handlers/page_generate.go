package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/port"
	"digitalcart/internal/service/pagegen"
	"digitalcart/internal/store"
)

// model calls are slow, they do not share the store timeout
const generateTimeout = 90 * time.Second

type GeneratePageRequest struct {
	ProductID string `json:"productId"`
	Brief     string `json:"brief" binding:"max=2000"`
}

// GeneratePageBlocks replaces a page's blocks with copy written by the
// configured language model.
func GeneratePageBlocks(pages port.PageRepository, products port.ProductRepository, gen *pagegen.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGEGEN"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		var req GeneratePageRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, err)
			return
		}

		if !gen.Enabled() {
			log.Printf("[%s] [WARN] generation requested but no model is configured", route)
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": pagegen.ErrDisabled.Error()})
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		page, err := pages.GetSellerPage(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		productID, err := generationProduct(req.ProductID, page.ProductIDs)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		product, err := products.GetSellerProduct(ctx, seller, productID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		genCtx, genCancel := context.WithTimeout(c.Request.Context(), generateTimeout)
		defer genCancel()

		blocks, err := gen.Blocks(genCtx, pagegen.Request{Product: product, Title: page.Title, Brief: req.Brief})
		if err != nil {
			log.Printf("[%s] [ERROR] generate page %s: %v", route, page.ID.Hex(), err)
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "page content could not be generated"})
			return
		}

		saveCtx, saveCancel := requestContext(c)
		defer saveCancel()

		page.Blocks = blocks
		page.UpdatedAt = time.Now().UTC()
		err = pages.UpdatePage(saveCtx, page)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Printf("[%s] [INFO] page %s filled with %d blocks", route, page.ID.Hex(), len(blocks))
		c.JSON(http.StatusOK, gin.H{"success": true, "page": page})
	}
}

func generationProduct(raw string, pageProducts []primitive.ObjectID) (primitive.ObjectID, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return primitive.NilObjectID, errors.New("invalid productId")
		}
		return id, nil
	}
	if len(pageProducts) == 0 {
		return primitive.NilObjectID, errors.New("productId is required for pages without products")
	}
	return pageProducts[0], nil
}
