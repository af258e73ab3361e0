package download

import (
	"context"
	"errors"
	"log"
	"time"

	"digitalcart/internal/models"
	"digitalcart/internal/store"
)

type FileLink struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type ItemDownload struct {
	OrderItemID        string     `json:"orderItemId"`
	ProductName        string     `json:"productName"`
	DownloadsRemaining *int       `json:"downloadsRemaining"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	Files              []FileLink `json:"files"`
}

type Confirmation struct {
	Order     models.Order   `json:"order"`
	Downloads []ItemDownload `json:"downloads"`
}

// Confirmation backs the public thank-you page. Download tokens of a
// completed order are issued lazily here.
func (s *Service) Confirmation(ctx context.Context, confirmationToken string) (Confirmation, error) {
	order, err := s.orders.GetOrderByConfirmationToken(ctx, confirmationToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Confirmation{}, ErrOrderNotFound
		}
		return Confirmation{}, err
	}

	out := Confirmation{Order: order, Downloads: []ItemDownload{}}
	if order.Status != models.OrderStatusCompleted {
		return out, nil
	}

	for _, item := range order.Items {
		token, product, err := s.ensureForItem(ctx, order, item)
		if errors.Is(err, ErrNoFiles) || errors.Is(err, ErrProductNotFound) {
			log.Printf("[DOWNLOAD] [WARN] order %s item %s has nothing to download: %v", order.ID.Hex(), item.ID.Hex(), err)
			continue
		}
		if err != nil {
			return Confirmation{}, err
		}
		out.Downloads = append(out.Downloads, s.itemDownload(item, product, token))
	}
	return out, nil
}

func (s *Service) itemDownload(item models.OrderItem, product models.Product, token models.DownloadToken) ItemDownload {
	base := s.opts.BaseURL + "/api/downloads/" + token.Token
	files := make([]FileLink, 0, len(product.Files))
	for _, f := range product.Files {
		files = append(files, FileLink{
			ID:   f.ID.Hex(),
			Name: f.Name,
			URL:  base + "/" + f.ID.Hex(),
			Size: f.FileSize,
		})
	}
	return ItemDownload{
		OrderItemID:        item.ID.Hex(),
		ProductName:        item.Name,
		DownloadsRemaining: token.DownloadsRemaining,
		ExpiresAt:          token.ExpiresAt,
		Files:              files,
	}
}
