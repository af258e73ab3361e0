package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"digitalcart/internal/service/download"
	"digitalcart/internal/storage"
)

// FileVerifier checks signed file links.
type FileVerifier interface {
	Verify(relPath, exp, name, sig string) (string, error)
}

func downloadStatus(err error) int {
	switch {
	case errors.Is(err, download.ErrTokenExpired), errors.Is(err, download.ErrLimitReached):
		return http.StatusGone
	case errors.Is(err, download.ErrFileRequired):
		return http.StatusBadRequest
	case errors.Is(err, download.ErrTokenNotFound),
		errors.Is(err, download.ErrProductNotFound),
		errors.Is(err, download.ErrNoFiles),
		errors.Is(err, download.ErrFileNotFound),
		errors.Is(err, download.ErrOrderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Download redeems a token and redirects to a short-lived signed file URL.
func Download(svc *download.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DOWNLOAD"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		redemption, err := svc.Redeem(ctx, c.Param("token"), c.Param("fileId"), c.ClientIP())
		if err != nil {
			status := downloadStatus(err)
			if status == http.StatusInternalServerError {
				respondInternal(c, route, err)
				return
			}
			respondWithError(c, status, route, err.Error())
			return
		}

		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusFound, redemption.URL)
	}
}

// ServeFile delivers a stored upload behind a valid signature.
func ServeFile(files FileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "FILES"
		defer handlePanic(c, route)

		relPath := strings.TrimPrefix(c.Param("path"), "/")
		name := c.Query("name")

		fullPath, err := files.Verify(relPath, c.Query("exp"), name, c.Query("sig"))
		switch {
		case errors.Is(err, storage.ErrLinkExpired):
			respondWithError(c, http.StatusGone, route, "link has expired")
			return
		case errors.Is(err, storage.ErrInvalidSignature), errors.Is(err, storage.ErrInvalidPath):
			respondWithError(c, http.StatusForbidden, route, "invalid link")
			return
		case err != nil:
			respondInternal(c, route, err)
			return
		}

		c.Header("Cache-Control", "private, no-store")
		if name != "" {
			c.FileAttachment(fullPath, name)
			return
		}
		c.File(fullPath)
	}
}

// OrderConfirmation is the public thank-you payload, looked up by the
// confirmation token from the receipt email.
func OrderConfirmation(svc *download.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "CONFIRMATION"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		conf, err := svc.Confirmation(ctx, c.Param("token"))
		if errors.Is(err, download.ErrOrderNotFound) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, conf)
	}
}
