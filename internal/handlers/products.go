package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/storage"
	"digitalcart/internal/store"
)

func ListProducts(products port.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCTS"
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

		list, err := products.ListProducts(ctx, seller)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		data, pagination := paginate(list, page, limit)
		c.JSON(http.StatusOK, gin.H{"data": data, "pagination": pagination})
	}
}

func GetProduct(products port.ProductRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCTS"
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

		product, err := products.GetSellerProduct(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func CreateProduct(products port.ProductRepository, files ProductStorage, defaultCurrency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCTS"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "multipart/form-data required"})
			return
		}

		input, err := parseMultipartProductRequest(c, files)
		if err != nil {
			log.Println("[PRODUCTS] [ERROR] create multipart error:", err)
			respondMultipartError(c, files, input, err)
			return
		}

		if !input.NameSet || input.Name == "" {
			respondMultipartError(c, files, input, errors.New("name required"))
			return
		}
		if !input.PriceSet {
			respondMultipartError(c, files, input, errors.New("price required"))
			return
		}

		now := time.Now().UTC()
		product := models.Product{
			SellerID:      seller,
			Name:          input.Name,
			Description:   input.Description,
			Price:         input.Price,
			Currency:      defaultCurrency,
			ImagePath:     input.ImagePath,
			Tags:          models.StringList(input.Tags),
			DownloadLimit: input.DownloadLimit,
			Files:         []models.ProductFile{},
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if input.CurrencySet {
			product.Currency = input.Currency
		}
		if input.DownloadExpiryDaysSet {
			product.DownloadExpiryDays = input.DownloadExpiryDays
		}
		if input.IsActiveSet {
			product.IsActive = input.IsActive
		}
		if product.Tags == nil {
			product.Tags = models.StringList{}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		product.ID, err = products.InsertProduct(ctx, product)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Println("[PRODUCTS] [INFO] product created:", product.ID.Hex())
		c.JSON(http.StatusCreated, product)
	}
}

func UpdateProduct(products port.ProductRepository, files ProductStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCTS"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}
		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "multipart/form-data required"})
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := products.GetSellerProduct(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		input, err := parseMultipartProductRequest(c, files)
		if err != nil {
			respondMultipartError(c, files, input, err)
			return
		}

		updated := existing
		if input.NameSet {
			if input.Name == "" {
				respondMultipartError(c, files, input, errors.New("name must not be empty"))
				return
			}
			updated.Name = input.Name
		}
		if input.DescriptionSet {
			updated.Description = input.Description
		}
		if input.PriceSet {
			updated.Price = input.Price
		}
		if input.CurrencySet {
			updated.Currency = input.Currency
		}
		if input.TagsSet {
			updated.Tags = models.StringList(input.Tags)
		}
		if input.DownloadLimitSet {
			updated.DownloadLimit = input.DownloadLimit
		}
		if input.DownloadExpiryDaysSet {
			updated.DownloadExpiryDays = input.DownloadExpiryDays
		}
		if input.IsActiveSet {
			updated.IsActive = input.IsActive
		}
		if input.ImageSet {
			updated.ImagePath = input.ImagePath
		}
		updated.UpdatedAt = time.Now().UTC()

		if err := products.UpdateProduct(ctx, updated); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondInternal(c, route, err)
			return
		}

		if input.ImageSet && existing.ImagePath != "" && existing.ImagePath != updated.ImagePath {
			if err := files.Delete(existing.ImagePath); err != nil {
				log.Printf("[PRODUCTS] [WARN] old image delete failed: %v", err)
			}
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteProduct removes the product and its uploads. Issued download tokens
// stay in place and fail with not found afterwards.
func DeleteProduct(products port.ProductRepository, files ProductStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCTS"
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

		existing, err := products.GetSellerProduct(ctx, seller, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if err := products.DeleteProduct(ctx, seller, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondInternal(c, route, err)
			return
		}

		for _, path := range append([]string{existing.ImagePath}, fileURLs(existing.Files)...) {
			if err := files.Delete(path); err != nil {
				log.Printf("[PRODUCTS] [WARN] upload delete failed for %s: %v", path, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}

func UploadProductFile(products port.ProductRepository, files ProductStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCT_FILES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}

		header, err := c.FormFile("file")
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "file required")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if _, err := products.GetSellerProduct(ctx, seller, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondInternal(c, route, err)
			return
		}

		stored, err := files.SaveProductFile(header)
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrUnsupportedType) {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		name := stored.Name
		if custom := strings.TrimSpace(c.PostForm("name")); custom != "" {
			name = custom
		}
		file := models.ProductFile{
			ID:          primitive.NewObjectID(),
			Name:        name,
			FileURL:     stored.Path,
			FileSize:    stored.Size,
			ContentType: stored.ContentType,
			CreatedAt:   time.Now().UTC(),
		}

		if err := products.AddProductFile(ctx, seller, id, file); err != nil {
			if delErr := files.Delete(stored.Path); delErr != nil {
				log.Printf("[PRODUCT_FILES] [WARN] orphaned upload %s: %v", stored.Path, delErr)
			}
			if errors.Is(err, store.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, file)
	}
}

func DeleteProductFile(products port.ProductRepository, files ProductStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PRODUCT_FILES"
		defer handlePanic(c, route)

		seller, ok := sellerID(c, route)
		if !ok {
			return
		}
		id, ok := paramObjectID(c, "id", route)
		if !ok {
			return
		}
		fileID, ok := paramObjectID(c, "fileId", route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		removed, err := products.RemoveProductFile(ctx, seller, id, fileID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "file not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		if err := files.Delete(removed.FileURL); err != nil {
			log.Printf("[PRODUCT_FILES] [WARN] upload delete failed for %s: %v", removed.FileURL, err)
		}
		c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
	}
}

func fileURLs(files []models.ProductFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.FileURL)
	}
	return out
}
