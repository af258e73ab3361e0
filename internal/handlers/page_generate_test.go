package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/service/pagegen"
	"digitalcart/internal/store/memstore"
)

type cannedModel struct {
	reply  string
	err    error
	prompt string
}

func (m *cannedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(messages) > 0 && len(messages[len(messages)-1].Parts) > 0 {
		if text, ok := messages[len(messages)-1].Parts[0].(llms.TextContent); ok {
			m.prompt = text.Text
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply, StopReason: "stop"}}}, nil
}

func (m *cannedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type generateFixture struct {
	router   *gin.Engine
	accounts *memstore.Accounts
	mem      *memstore.Store
	seller   primitive.ObjectID
}

func newGenerateFixture(model llms.Model) *generateFixture {
	f := &generateFixture{
		accounts: memstore.NewAccounts(),
		mem:      memstore.New(),
		seller:   primitive.NewObjectID(),
	}
	f.router = gin.New()
	f.router.POST("/api/seller/pages/:id/generate", asSeller(f.seller), GeneratePageBlocks(f.accounts, f.mem, pagegen.NewGenerator(model)))
	return f
}

func (f *generateFixture) page(t *testing.T, seller primitive.ObjectID, productIDs ...primitive.ObjectID) models.CheckoutPage {
	t.Helper()
	page := models.CheckoutPage{
		SellerID:   seller,
		Slug:       primitive.NewObjectID().Hex(),
		Title:      "Presets",
		ProductIDs: productIDs,
		Blocks:     []models.Block{{ID: "old", Type: "text", Props: map[string]interface{}{"body": "draft"}}},
	}
	id, err := f.accounts.InsertPage(context.Background(), page)
	require.NoError(t, err)
	page.ID = id
	return page
}

func (f *generateFixture) product(t *testing.T) models.Product {
	t.Helper()
	p := models.Product{SellerID: f.seller, Name: "Golden Hour Presets", Description: "Twelve warm presets", Price: 15, Currency: "USD", IsActive: true}
	id, err := f.mem.InsertProduct(context.Background(), p)
	require.NoError(t, err)
	p.ID = id
	return p
}

func TestGeneratePageBlocksReplacesBlocks(t *testing.T) {
	model := &cannedModel{reply: `{"blocks":[{"type":"hero","props":{"headline":"Golden light, every time"}},{"type":"cta","props":{"label":"Buy now"}}]}`}
	f := newGenerateFixture(model)
	product := f.product(t)
	page := f.page(t, f.seller, product.ID)

	w := doJSON(t, f.router, http.MethodPost, "/api/seller/pages/"+page.ID.Hex()+"/generate", gin.H{"brief": "friendly tone"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["success"])

	stored, err := f.accounts.GetSellerPage(context.Background(), f.seller, page.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hero", "cta"}, lo.Map(stored.Blocks, func(b models.Block, _ int) string { return b.Type }))
	assert.Equal(t, "Golden light, every time", stored.Blocks[0].Props["headline"])
	assert.Contains(t, model.prompt, "Golden Hour Presets")
	assert.Contains(t, model.prompt, "Twelve warm presets")
	assert.Contains(t, model.prompt, "friendly tone")
}

func TestGeneratePageBlocksWithoutModel(t *testing.T) {
	f := newGenerateFixture(nil)
	page := f.page(t, f.seller, f.product(t).ID)

	w := doJSON(t, f.router, http.MethodPost, "/api/seller/pages/"+page.ID.Hex()+"/generate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestGeneratePageBlocksStatuses(t *testing.T) {
	f := newGenerateFixture(&cannedModel{reply: `{"blocks":[{"type":"hero"}]}`})
	product := f.product(t)
	withProduct := f.page(t, f.seller, product.ID)
	bare := f.page(t, f.seller)
	foreign := f.page(t, primitive.NewObjectID(), product.ID)

	tests := []struct {
		name   string
		pageID string
		body   gin.H
		want   int
	}{
		{"bad page id", "nope", nil, http.StatusBadRequest},
		{"other seller's page", foreign.ID.Hex(), nil, http.StatusNotFound},
		{"page without products", bare.ID.Hex(), nil, http.StatusBadRequest},
		{"bad product id", withProduct.ID.Hex(), gin.H{"productId": "xyz"}, http.StatusBadRequest},
		{"unknown product", withProduct.ID.Hex(), gin.H{"productId": primitive.NewObjectID().Hex()}, http.StatusNotFound},
		{"explicit product", bare.ID.Hex(), gin.H{"productId": product.ID.Hex()}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, f.router, http.MethodPost, "/api/seller/pages/"+tt.pageID+"/generate", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestGeneratePageBlocksModelFailureKeepsPage(t *testing.T) {
	tests := []struct {
		name  string
		model *cannedModel
	}{
		{"upstream error", &cannedModel{err: errors.New("quota exceeded")}},
		{"unusable reply", &cannedModel{reply: "Sure! Here is a page."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGenerateFixture(tt.model)
			page := f.page(t, f.seller, f.product(t).ID)

			w := doJSON(t, f.router, http.MethodPost, "/api/seller/pages/"+page.ID.Hex()+"/generate", nil)
			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.Equal(t, false, decodeBody(t, w)["success"])

			stored, err := f.accounts.GetSellerPage(context.Background(), f.seller, page.ID)
			require.NoError(t, err)
			assert.Equal(t, page.Blocks, stored.Blocks)
		})
	}
}
