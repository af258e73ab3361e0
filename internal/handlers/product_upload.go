package handlers

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"digitalcart/internal/money"
	"digitalcart/internal/storage"
)

// ProductStorage keeps product images and downloadable files.
type ProductStorage interface {
	SaveImage(file *multipart.FileHeader) (string, error)
	SaveProductFile(file *multipart.FileHeader) (storage.StoredFile, error)
	Delete(relPath string) error
}

// MultipartProductInput records which form fields were present so an update
// only touches those.
type MultipartProductInput struct {
	Name                  string
	NameSet               bool
	Description           string
	DescriptionSet        bool
	Price                 float64
	PriceSet              bool
	Currency              string
	CurrencySet           bool
	Tags                  []string
	TagsSet               bool
	DownloadLimit         *int
	DownloadLimitSet      bool
	DownloadExpiryDays    int
	DownloadExpiryDaysSet bool
	IsActive              bool
	IsActiveSet           bool
	ImagePath             string
	ImageSet              bool
}

func parseMultipartProductRequest(c *gin.Context, files ProductStorage) (MultipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return MultipartProductInput{}, err
	}

	input := MultipartProductInput{}

	if value, ok := c.GetPostForm("name"); ok {
		input.Name = strings.TrimSpace(value)
		input.NameSet = true
	}

	if value, ok := c.GetPostForm("description"); ok {
		input.Description = strings.TrimSpace(value)
		input.DescriptionSet = true
	}

	if value, ok := c.GetPostForm("price"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || parsed < 0 {
			return MultipartProductInput{}, errors.New("invalid price")
		}
		input.Price = parsed
		input.PriceSet = true
	}

	if value, ok := c.GetPostForm("currency"); ok {
		code, err := money.ParseCurrency(value)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.Currency = code
		input.CurrencySet = true
	}

	if tags := c.PostFormArray("tags"); len(tags) > 0 {
		input.Tags = tags
		input.TagsSet = true
	}

	// an empty downloadLimit clears the limit
	if value, ok := c.GetPostForm("downloadLimit"); ok {
		input.DownloadLimitSet = true
		if value = strings.TrimSpace(value); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 1 {
				return MultipartProductInput{}, errors.New("downloadLimit must be a positive integer")
			}
			input.DownloadLimit = &parsed
		}
	}

	if value, ok := c.GetPostForm("downloadExpiryDays"); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || parsed < 1 {
			return MultipartProductInput{}, errors.New("downloadExpiryDays must be a positive integer")
		}
		input.DownloadExpiryDays = parsed
		input.DownloadExpiryDaysSet = true
	}

	if value, ok := c.GetPostForm("isActive"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return MultipartProductInput{}, fmt.Errorf("invalid isActive: %w", err)
		}
		input.IsActive = parsed
		input.IsActiveSet = true
	}

	file, err := c.FormFile("image")
	if err == nil {
		imagePath, err := files.SaveImage(file)
		if err != nil {
			return MultipartProductInput{}, err
		}
		input.ImagePath = imagePath
		input.ImageSet = true
	} else if !errors.Is(err, http.ErrMissingFile) {
		return MultipartProductInput{}, err
	}

	return input, nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func respondMultipartError(c *gin.Context, files ProductStorage, input MultipartProductInput, err error) {
	if input.ImageSet {
		if delErr := files.Delete(input.ImagePath); delErr != nil {
			log.Printf("[PRODUCTS] [WARN] orphaned image %s: %v", input.ImagePath, delErr)
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
