package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Name      string `json:"name" binding:"required"`
	StoreName string `json:"storeName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type authUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	StoreName string `json:"storeName,omitempty"`
	Role      string `json:"role"`
}

func toAuthUser(u models.User) authUser {
	return authUser{ID: u.ID.Hex(), Email: u.Email, Name: u.Name, StoreName: u.StoreName, Role: u.Role}
}

func Register(users port.UserRepository, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password hash failed"})
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		now := time.Now().UTC()
		user := models.User{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: string(hash),
			Name:         strings.TrimSpace(req.Name),
			StoreName:    strings.TrimSpace(req.StoreName),
			Role:         models.RoleSeller,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		user.ID, err = users.InsertUser(ctx, user)
		if errors.Is(err, store.ErrDuplicate) {
			log.Println("[AUTH] [ERROR] register email exists:", user.Email)
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		tokens, err := issueTokens(c, users, user, cfg, primitive.NewObjectID())
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Println("[AUTH] [INFO] seller registered:", user.Email)
		c.JSON(http.StatusCreated, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user":         toAuthUser(user),
		})
	}
}

func Login(users port.UserRepository, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondInternal(c, route, err)
			return
		}
		if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		tokens, err := issueTokens(c, users, user, cfg, primitive.NewObjectID())
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		log.Println("[AUTH] [INFO] login succeeded:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user":         toAuthUser(user),
		})
	}
}

// Refresh rotates a refresh token: the presented one is revoked and points
// at its replacement.
func Refresh(users port.UserRepository, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		token, err := users.GetActiveRefreshToken(ctx, hashToken(strings.TrimSpace(req.RefreshToken)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
				return
			}
			respondInternal(c, route, err)
			return
		}

		if time.Now().After(token.ExpiresAt) {
			_ = users.RevokeRefreshToken(ctx, token.ID, nil)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired"})
			return
		}

		user, err := users.GetUser(ctx, token.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		// only the request that revokes the presented token may issue a successor
		nextID := primitive.NewObjectID()
		if err := users.RevokeRefreshToken(ctx, token.ID, &nextID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
				return
			}
			respondInternal(c, route, err)
			return
		}

		tokens, err := issueTokens(c, users, user, cfg, nextID)
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"user":         toAuthUser(user),
		})
	}
}

func Logout(users port.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		err := users.RevokeRefreshTokenByHash(ctx, hashToken(strings.TrimSpace(req.RefreshToken)))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func GetMe(users port.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "AUTH"
		defer handlePanic(c, route)

		id, ok := sellerID(c, route)
		if !ok {
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "user not found")
			return
		}
		if err != nil {
			respondInternal(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": toAuthUser(user)})
	}
}

type issuedTokens struct {
	AccessToken    string
	RefreshToken   string
	RefreshTokenID primitive.ObjectID
	ExpiresIn      int64
}

func issueTokens(c *gin.Context, users port.UserRepository, user models.User, cfg AuthConfig, refreshID primitive.ObjectID) (*issuedTokens, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID.Hex(),
		"role":  user.Role,
		"email": user.Email,
		"exp":   now.Add(cfg.AccessTTL).Unix(),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	plainRefresh := generateRefreshString()
	if plainRefresh == "" {
		return nil, errors.New("could not generate refresh token")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	refreshID, err = users.InsertRefreshToken(ctx, models.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		TokenHash: hashToken(plainRefresh),
		ExpiresAt: now.Add(cfg.RefreshTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	return &issuedTokens{
		AccessToken:    accessToken,
		RefreshToken:   plainRefresh,
		RefreshTokenID: refreshID,
		ExpiresIn:      int64(cfg.AccessTTL.Seconds()),
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshString() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
