package handlers

import (
	"net/http"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/mailer"
	"digitalcart/internal/service/abandonment"
	"digitalcart/internal/store/memstore"
)

func newCartRouter(seller primitive.ObjectID) *gin.Engine {
	mem := memstore.New()
	svc := abandonment.NewService(mem, mem, mem, mailer.LogSender{}, &events.Recorder{}, 0)

	r := gin.New()
	r.POST("/api/cart/track", TrackCart(svc))
	r.POST("/api/cart/recover/:cartId", RecoverCart(svc))
	authed := r.Group("/api/cart", asSeller(seller))
	authed.GET("/abandoned", ListAbandonedCarts(svc))
	authed.GET("/sequence", GetSequence(svc))
	authed.PUT("/sequence", PutSequence(svc))
	return r
}

func TestCartTrackAndRecover(t *testing.T) {
	seller := primitive.NewObjectID()
	r := newCartRouter(seller)
	cartID := gofakeit.UUID()

	w := doJSON(t, r, http.MethodPost, "/api/cart/track", gin.H{
		"cartId":   cartID,
		"sellerId": seller.Hex(),
		"email":    gofakeit.Email(),
		"product":  gin.H{"id": "p1", "name": "Preset Pack", "price": 19},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/cart/track", gin.H{"cartId": gofakeit.UUID(), "sellerId": seller.Hex()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/cart/recover/"+cartID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/cart/recover/"+gofakeit.UUID(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/cart/abandoned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["carts"], 2)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, float64(1), stats["recovered"])
	assert.Equal(t, float64(50), stats["recoveryRate"])
}

func TestTrackCartOfAnotherSellerConflicts(t *testing.T) {
	seller := primitive.NewObjectID()
	r := newCartRouter(seller)
	cartID := gofakeit.UUID()

	w := doJSON(t, r, http.MethodPost, "/api/cart/track", gin.H{"cartId": cartID, "sellerId": seller.Hex(), "email": gofakeit.Email()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/cart/track", gin.H{"cartId": cartID, "sellerId": primitive.NewObjectID().Hex(), "email": gofakeit.Email()})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/cart/abandoned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["carts"], 1)
}

func TestTrackCartValidation(t *testing.T) {
	r := newCartRouter(primitive.NewObjectID())

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing cart id", gin.H{"sellerId": primitive.NewObjectID().Hex()}},
		{"bad seller id", gin.H{"cartId": "c1", "sellerId": "abc"}},
		{"bad email", gin.H{"cartId": "c1", "sellerId": primitive.NewObjectID().Hex(), "email": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/cart/track", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSequenceFallsBackThenSaves(t *testing.T) {
	r := newCartRouter(primitive.NewObjectID())

	w := doJSON(t, r, http.MethodGet, "/api/cart/sequence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["steps"])

	w = doJSON(t, r, http.MethodPut, "/api/cart/sequence", gin.H{"steps": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/cart/sequence", gin.H{"steps": []gin.H{
		{"delayMinutes": 120, "subject": "Still thinking?"},
		{"delayMinutes": 30, "subject": "You left something"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/cart/sequence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	steps := decodeBody(t, w)["steps"].([]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "You left something", steps[0].(map[string]any)["subject"])
}
