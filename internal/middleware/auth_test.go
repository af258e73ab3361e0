package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthGuard(testSecret, roles...), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.Hex(), "role": c.GetString(ContextRole)})
	})
	return r
}

func TestAuthGuard(t *testing.T) {
	userID := primitive.NewObjectID()
	valid := jwt.MapClaims{"sub": userID.Hex(), "role": "seller", "exp": time.Now().Add(time.Minute).Unix()}

	tests := []struct {
		name   string
		roles  []string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), valid), want: http.StatusUnauthorized},
		{
			name:   "expired",
			header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": userID.Hex(), "exp": time.Now().Add(-time.Minute).Unix()}),
			want:   http.StatusUnauthorized,
		},
		{
			name:   "bad sub",
			header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "x", "role": "seller"}),
			want:   http.StatusUnauthorized,
		},
		{name: "valid", header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), want: http.StatusOK},
		{name: "role allowed", roles: []string{"seller"}, header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), want: http.StatusOK},
		{name: "role denied", roles: []string{"superadmin"}, header: "Bearer " + signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			newRouter(tt.roles...).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), userID.Hex())
			}
		})
	}
}
