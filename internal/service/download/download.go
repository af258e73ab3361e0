package download

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

var (
	ErrTokenNotFound     = errors.New("download link not found")
	ErrTokenExpired      = errors.New("download link has expired")
	ErrLimitReached      = errors.New("download limit reached")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotCompleted = errors.New("order is not completed")
	ErrItemNotFound      = errors.New("order item not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrNoFiles           = errors.New("product has no downloadable files")
	ErrFileRequired      = errors.New("fileId is required for products with several files")
	ErrFileNotFound      = errors.New("file not found")
)

const DefaultURLTTL = time.Hour

// FileSigner produces short-lived links to stored files.
type FileSigner interface {
	SignURL(path, name string, ttl time.Duration) (string, error)
}

type Options struct {
	// BaseURL prefixes the /api/downloads links handed to customers.
	BaseURL string
	URLTTL  time.Duration
}

type Service struct {
	orders    port.OrderRepository
	products  port.ProductRepository
	tokens    port.DownloadTokenRepository
	signer    FileSigner
	publisher events.Publisher
	opts      Options
	now       func() time.Time
}

func NewService(
	orders port.OrderRepository,
	products port.ProductRepository,
	tokens port.DownloadTokenRepository,
	signer FileSigner,
	publisher events.Publisher,
	opts Options,
) *Service {
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Service{
		orders:    orders,
		products:  products,
		tokens:    tokens,
		signer:    signer,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// EnsureToken returns the download token of an order item, issuing it on
// first use. Repeated calls return the same record.
func (s *Service) EnsureToken(ctx context.Context, orderID, orderItemID primitive.ObjectID) (models.DownloadToken, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DownloadToken{}, ErrOrderNotFound
		}
		return models.DownloadToken{}, err
	}
	if order.Status != models.OrderStatusCompleted {
		return models.DownloadToken{}, ErrOrderNotCompleted
	}

	item, ok := order.ItemByID(orderItemID)
	if !ok {
		return models.DownloadToken{}, ErrItemNotFound
	}

	token, _, err := s.ensureForItem(ctx, order, item)
	return token, err
}

func (s *Service) ensureForItem(ctx context.Context, order models.Order, item models.OrderItem) (models.DownloadToken, models.Product, error) {
	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.DownloadToken{}, product, ErrProductNotFound
		}
		return models.DownloadToken{}, product, err
	}
	if len(product.Files) == 0 {
		return models.DownloadToken{}, product, ErrNoFiles
	}

	value, err := generateToken()
	if err != nil {
		return models.DownloadToken{}, product, fmt.Errorf("generate token: %w", err)
	}

	now := s.now().UTC()
	var remaining *int
	if product.DownloadLimit != nil {
		limit := *product.DownloadLimit
		remaining = &limit
	}

	token, err := s.tokens.EnsureToken(ctx, models.DownloadToken{
		OrderID:            order.ID,
		OrderItemID:        item.ID,
		CustomerID:         order.CustomerID,
		ProductID:          product.ID,
		Token:              value,
		DownloadsRemaining: remaining,
		ExpiresAt:          now.Add(product.DownloadWindow()),
		CreatedAt:          now,
	})
	if err != nil {
		return token, product, err
	}
	return token, product, nil
}

type Redemption struct {
	URL   string
	File  models.ProductFile
	Token models.DownloadToken
}

// Redeem checks the token, resolves the requested file and spends one
// download. fileID may be empty for single-file products.
func (s *Service) Redeem(ctx context.Context, token, fileID, ip string) (Redemption, error) {
	stored, err := s.tokens.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Redemption{}, ErrTokenNotFound
		}
		return Redemption{}, err
	}

	now := s.now().UTC()
	if err := checkValid(stored, now); err != nil {
		return Redemption{}, err
	}

	product, err := s.products.GetProduct(ctx, stored.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Redemption{}, ErrProductNotFound
		}
		return Redemption{}, err
	}

	file, err := SelectFile(product, fileID)
	if err != nil {
		return Redemption{}, err
	}

	url, err := s.signer.SignURL(file.FileURL, file.Name, s.opts.URLTTL)
	if err != nil {
		return Redemption{}, fmt.Errorf("sign url: %w", err)
	}

	consumed, err := s.tokens.ConsumeToken(ctx, stored.Token, now, ip)
	if errors.Is(err, store.ErrConflict) {
		// another redemption won the last download, or the token expired in between
		latest, getErr := s.tokens.GetToken(ctx, stored.Token)
		if getErr != nil {
			return Redemption{}, getErr
		}
		if validErr := checkValid(latest, now); validErr != nil {
			return Redemption{}, validErr
		}
		return Redemption{}, ErrLimitReached
	}
	if err != nil {
		return Redemption{}, err
	}

	if err := s.publisher.Publish(ctx, events.TopicDownloadRedeemed, consumed.Token, map[string]any{
		"orderId":            consumed.OrderID.Hex(),
		"productId":          consumed.ProductID.Hex(),
		"fileId":             file.ID.Hex(),
		"downloadsRemaining": consumed.DownloadsRemaining,
	}); err != nil {
		log.Println("[DOWNLOAD] [WARN] publish redeemed event failed:", err)
	}

	return Redemption{URL: url, File: file, Token: consumed}, nil
}

func checkValid(token models.DownloadToken, now time.Time) error {
	if token.Expired(now) {
		return ErrTokenExpired
	}
	if token.Exhausted() {
		return ErrLimitReached
	}
	return nil
}

// SelectFile picks the file a redemption targets. An empty fileID only
// resolves for single-file products.
func SelectFile(product models.Product, fileID string) (models.ProductFile, error) {
	if len(product.Files) == 0 {
		return models.ProductFile{}, ErrNoFiles
	}

	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		if len(product.Files) == 1 {
			return product.Files[0], nil
		}
		return models.ProductFile{}, ErrFileRequired
	}

	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return models.ProductFile{}, ErrFileNotFound
	}
	file, ok := product.FileByID(id)
	if !ok {
		return models.ProductFile{}, ErrFileNotFound
	}
	return file, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
