package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/storage"
	"digitalcart/internal/store/memstore"
)

type multipartField struct {
	name, value string
}

type multipartFile struct {
	field, filename string
	content         []byte
}

func multipartRequest(t *testing.T, method, path string, fields []multipartField, files ...multipartFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range fields {
		require.NoError(t, writer.WriteField(f.name, f.value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type productFixture struct {
	router *gin.Engine
	root   string
}

func newProductFixture(t *testing.T, seller primitive.ObjectID) *productFixture {
	t.Helper()
	root := t.TempDir()
	files := storage.NewLocalStore(root, "", "secret")
	mem := memstore.New()

	r := gin.New()
	g := r.Group("/api/products", asSeller(seller))
	g.GET("", ListProducts(mem))
	g.POST("", CreateProduct(mem, files, "USD"))
	g.GET("/:id", GetProduct(mem))
	g.PUT("/:id", UpdateProduct(mem, files))
	g.DELETE("/:id", DeleteProduct(mem, files))
	g.POST("/:id/files", UploadProductFile(mem, files))
	g.DELETE("/:id/files/:fileId", DeleteProductFile(mem, files))
	return &productFixture{router: r, root: root}
}

func (f *productFixture) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(rel)))
	return err == nil
}

func decodeProduct(t *testing.T, w *httptest.ResponseRecorder) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p), w.Body.String())
	return p
}

func TestParseMultipartProductRequestTracksPresentFields(t *testing.T) {
	req := multipartRequest(t, http.MethodPut, "/api/products/1", []multipartField{
		{"name", "  Lightroom Presets "},
		{"price", "12.50"},
		{"currency", "eur"},
		{"tags", "photo"},
		{"tags", "presets"},
		{"downloadLimit", ""},
		{"isActive", "on"},
	})
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	parsed, err := parseMultipartProductRequest(c, storage.NewLocalStore(t.TempDir(), "", "s"))
	require.NoError(t, err)

	assert.Equal(t, "Lightroom Presets", parsed.Name)
	assert.Equal(t, 12.5, parsed.Price)
	assert.Equal(t, "EUR", parsed.Currency)
	assert.Equal(t, []string{"photo", "presets"}, parsed.Tags)
	assert.True(t, parsed.DownloadLimitSet)
	assert.Nil(t, parsed.DownloadLimit)
	assert.True(t, parsed.IsActiveSet && parsed.IsActive)
	assert.False(t, parsed.DescriptionSet)
	assert.False(t, parsed.DownloadExpiryDaysSet)
	assert.False(t, parsed.ImageSet)
}

func TestParseMultipartProductRequestRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		field multipartField
	}{
		{"negative price", multipartField{"price", "-1"}},
		{"price text", multipartField{"price", "free"}},
		{"zero download limit", multipartField{"downloadLimit", "0"}},
		{"zero expiry", multipartField{"downloadExpiryDays", "0"}},
		{"bad bool", multipartField{"isActive", "maybe"}},
		{"unknown currency", multipartField{"currency", "ZZZ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = multipartRequest(t, http.MethodPost, "/api/products", []multipartField{tt.field})
			_, err := parseMultipartProductRequest(c, storage.NewLocalStore(t.TempDir(), "", "s"))
			assert.Error(t, err)
		})
	}
}

func TestProductLifecycle(t *testing.T) {
	seller := primitive.NewObjectID()
	f := newProductFixture(t, seller)

	w := serve(f.router, multipartRequest(t, http.MethodPost, "/api/products", []multipartField{
		{"name", "Preset Pack"},
		{"price", "19.99"},
		{"downloadLimit", "3"},
	}, multipartFile{"image", "cover.png", []byte("png")}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeProduct(t, w)
	assert.Equal(t, "USD", created.Currency)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.DownloadLimit)
	assert.Equal(t, 3, *created.DownloadLimit)
	require.True(t, f.exists(created.ImagePath))
	base := "/api/products/" + created.ID.Hex()

	w = serve(f.router, multipartRequest(t, http.MethodPut, base, []multipartField{{"price", "24"}},
		multipartFile{"image", "cover2.jpg", []byte("jpg")}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeProduct(t, w)
	assert.Equal(t, "Preset Pack", updated.Name)
	assert.Equal(t, float64(24), updated.Price)
	assert.False(t, f.exists(created.ImagePath), "replaced image is removed")
	assert.True(t, f.exists(updated.ImagePath))

	w = serve(f.router, multipartRequest(t, http.MethodPost, base+"/files", []multipartField{{"name", "Presets.zip"}},
		multipartFile{"file", "bundle.zip", []byte("zipdata")}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var file models.ProductFile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &file))
	assert.Equal(t, "Presets.zip", file.Name)
	assert.Equal(t, int64(7), file.FileSize)
	require.True(t, f.exists(file.FileURL))

	w = serve(f.router, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeProduct(t, w).Files, 1)

	w = serve(f.router, httptest.NewRequest(http.MethodDelete, base+"/files/"+file.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, f.exists(file.FileURL))

	w = serve(f.router, httptest.NewRequest(http.MethodDelete, base, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, f.exists(updated.ImagePath))

	w = serve(f.router, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProductValidation(t *testing.T) {
	f := newProductFixture(t, primitive.NewObjectID())

	w := serve(f.router, multipartRequest(t, http.MethodPost, "/api/products", []multipartField{{"price", "5"}},
		multipartFile{"image", "cover.png", []byte("png")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	entries, err := os.ReadDir(filepath.Join(f.root, "uploads", "images"))
	require.NoError(t, err)
	assert.Empty(t, entries, "image of a rejected product is cleaned up")

	w = serve(f.router, multipartRequest(t, http.MethodPost, "/api/products", []multipartField{{"name", "No price"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f.router, multipartRequest(t, http.MethodPost, "/api/products", []multipartField{{"name", "Doc"}, {"price", "1"}},
		multipartFile{"image", "cover.exe", []byte("MZ")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"name":"json"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(f.router, req).Code)
}

func TestProductsAreScopedToSeller(t *testing.T) {
	owner := primitive.NewObjectID()
	f := newProductFixture(t, owner)

	w := serve(f.router, multipartRequest(t, http.MethodPost, "/api/products", []multipartField{{"name", "Mine"}, {"price", "1"}}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(f.router, httptest.NewRequest(http.MethodGet, "/api/products?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["data"], 1)
	assert.NotNil(t, body["pagination"])

	w = serve(f.router, httptest.NewRequest(http.MethodGet, "/api/products?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
