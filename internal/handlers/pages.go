package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type PageRequest struct {
	Slug        string         `json:"slug" binding:"required"`
	Title       string         `json:"title" binding:"required"`
	Kind        string         `json:"kind"`
	ProductIDs  []string       `json:"productIds"`
	Blocks      []models.Block `json:"blocks" binding:"dive"`
	IsPublished bool           `json:"isPublished"`
}

// PatchPageRequest updates only the fields present. Blocks, when present,
// replace the stored array as a whole.
type PatchPageRequest struct {
	Slug        *string         `json:"slug"`
	Title       *string         `json:"title"`
	Kind        *string         `json:"kind"`
	ProductIDs  *[]string       `json:"productIds"`
	Blocks      *[]models.Block `json:"blocks" binding:"omitempty,dive"`
	IsPublished *bool           `json:"isPublished"`
}

func parseObjectIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, errors.New("invalid productIds")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalizeSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return "", errors.New("slug may only contain lowercase letters, digits and dashes")
	}
	return slug, nil
}

func (r PageRequest) toPage(seller primitive.ObjectID) (models.CheckoutPage, error) {
	slug, err := normalizeSlug(r.Slug)
	if err != nil {
		return models.CheckoutPage{}, err
	}
	ids, err := parseObjectIDs(r.ProductIDs)
	if err != nil {
		return models.CheckoutPage{}, err
	}
	blocks := r.Blocks
	if blocks == nil {
		blocks = []models.Block{}
	}
	return models.CheckoutPage{
		SellerID:    seller,
		Slug:        slug,
		Title:       strings.TrimSpace(r.Title),
		Kind:        strings.TrimSpace(r.Kind),
		ProductIDs:  ids,
		Blocks:      blocks,
		IsPublished: r.IsPublished,
	}, nil
}

func (r PatchPageRequest) apply(page *models.CheckoutPage) error {
	if r.Slug != nil {
		slug, err := normalizeSlug(*r.Slug)
		if err != nil {
			return err
		}
		page.Slug = slug
	}
	if r.Title != nil {
		page.Title = strings.TrimSpace(*r.Title)
	}
	if r.Kind != nil {
		page.Kind = strings.TrimSpace(*r.Kind)
	}
	if r.ProductIDs != nil {
		ids, err := parseObjectIDs(*r.ProductIDs)
		if err != nil {
			return err
		}
		page.ProductIDs = ids
	}
	if r.Blocks != nil {
		page.Blocks = *r.Blocks
	}
	if r.IsPublished != nil {
		page.IsPublished = *r.IsPublished
	}
	return nil
}

// GetPublicPage serves a published page to buyers.
func GetPublicPage(pages port.PageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		page, err := pages.GetPublishedPage(ctx, strings.ToLower(c.Param("slug")))
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func ListPages(pages port.PageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, err := pages.ListPages(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		if list == nil {
			list = []models.CheckoutPage{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func GetPage(pages port.PageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
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

		page, err := pages.GetSellerPage(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func CreatePage(pages port.PageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}

		var req PageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		page, err := req.toPage(seller)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		page.CreatedAt, page.UpdatedAt = now, now
		page.ID, err = pages.InsertPage(ctx, page)
		if errors.Is(err, store.ErrDuplicate) {
			respondWithError(c, http.StatusConflict, route, "slug already in use")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, page)
	}
}

// UpdatePage handles both PUT and PATCH. PUT replaces every field; PATCH
// keeps the ones it does not carry.
func UpdatePage(pages port.PageRepository, partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
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

		current, err := pages.GetSellerPage(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		page := current
		if partial {
			var req PatchPageRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
			if err := req.apply(&page); err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
		} else {
			var req PageRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
			page, err = req.toPage(seller)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			page.ID = current.ID
			page.CreatedAt = current.CreatedAt
		}

		page.UpdatedAt = time.Now().UTC()
		err = pages.UpdatePage(ctx, page)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		case errors.Is(err, store.ErrDuplicate):
			respondWithError(c, http.StatusConflict, route, "slug already in use")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func DeletePage(pages port.PageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PAGES"
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

		err := pages.DeletePage(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "page not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "page deleted"})
	}
}
