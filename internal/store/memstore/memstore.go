// Package memstore keeps repository data in memory. It mirrors the
// conditional-update semantics of the Mongo stores and backs unit tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/store"
)

type Store struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]models.Order
	products  map[primitive.ObjectID]models.Product
	tokens    map[string]models.DownloadToken
	carts     map[string]models.AbandonedCart
	sequences map[string]models.EmailSequence
	coupons   map[primitive.ObjectID]models.Coupon
	customers map[primitive.ObjectID]models.Customer
	templates map[primitive.ObjectID]models.EmailTemplate
}

func New() *Store {
	return &Store{
		orders:    map[primitive.ObjectID]models.Order{},
		products:  map[primitive.ObjectID]models.Product{},
		tokens:    map[string]models.DownloadToken{},
		carts:     map[string]models.AbandonedCart{},
		sequences: map[string]models.EmailSequence{},
		coupons:   map[primitive.ObjectID]models.Coupon{},
		customers: map[primitive.ObjectID]models.Customer{},
		templates: map[primitive.ObjectID]models.EmailTemplate{},
	}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, store.ErrNotFound)
}

// Orders

func (s *Store) InsertOrder(_ context.Context, order models.Order) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = order
	return order.ID, nil
}

func (s *Store) GetOrder(_ context.Context, id primitive.ObjectID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return order, notFound("orders.FindOne")
	}
	return order, nil
}

func (s *Store) GetOrderByConfirmationToken(_ context.Context, token string) (models.Order, error) {
	return s.findOrder(func(o models.Order) bool { return o.ConfirmationToken == token })
}

func (s *Store) GetOrderByPaymentID(_ context.Context, paymentID string) (models.Order, error) {
	return s.findOrder(func(o models.Order) bool { return o.PaymentID == paymentID })
}

func (s *Store) GetSellerOrder(_ context.Context, sellerID, id primitive.ObjectID) (models.Order, error) {
	return s.findOrder(func(o models.Order) bool { return o.ID == id && o.SellerID == sellerID })
}

func (s *Store) findOrder(match func(models.Order) bool) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if match(o) {
			return o, nil
		}
	}
	return models.Order{}, notFound("orders.FindOne")
}

func (s *Store) ListOrders(_ context.Context, sellerID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.orders), func(o models.Order, _ int) bool { return o.SellerID == sellerID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetPaymentID(_ context.Context, id primitive.ObjectID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return notFound("orders.UpdateOne")
	}
	order.PaymentID = paymentID
	s.orders[id] = order
	return nil
}

func (s *Store) TransitionOrder(_ context.Context, id primitive.ObjectID, from []models.OrderStatus, to models.OrderStatus, paymentID string, now time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return order, notFound("orders.FindOneAndUpdate")
	}
	if !lo.Contains(from, order.Status) {
		return models.Order{}, fmt.Errorf("orders.FindOneAndUpdate: %w", store.ErrConflict)
	}
	order.Status = to
	order.UpdatedAt = now
	if to == models.OrderStatusCompleted {
		order.CompletedAt = lo.ToPtr(now)
	}
	if paymentID != "" {
		order.PaymentID = paymentID
	}
	s.orders[id] = order
	return order, nil
}

// Products

func (s *Store) GetProduct(_ context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return p, notFound("products.FindOne")
	}
	return p, nil
}

func (s *Store) GetSellerProduct(ctx context.Context, sellerID, id primitive.ObjectID) (models.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil || p.SellerID != sellerID {
		return models.Product{}, notFound("products.FindOne")
	}
	return p, nil
}

func (s *Store) GetSellerProducts(_ context.Context, sellerID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if p, ok := s.products[id]; ok && p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context, sellerID primitive.ObjectID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.products), func(p models.Product, _ int) bool { return p.SellerID == sellerID }), nil
}

func (s *Store) InsertProduct(_ context.Context, product models.Product) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	s.products[product.ID] = product
	return product.ID, nil
}

func (s *Store) UpdateProduct(_ context.Context, product models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[product.ID]
	if !ok || current.SellerID != product.SellerID {
		return notFound("products.UpdateOne")
	}
	product.Files = current.Files
	product.CreatedAt = current.CreatedAt
	s.products[product.ID] = product
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, sellerID, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.SellerID != sellerID {
		return notFound("products.DeleteOne")
	}
	delete(s.products, id)
	return nil
}

func (s *Store) AddProductFile(_ context.Context, sellerID, productID primitive.ObjectID, file models.ProductFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.SellerID != sellerID {
		return notFound("products.UpdateOne")
	}
	p.Files = append(p.Files, file)
	s.products[productID] = p
	return nil
}

func (s *Store) RemoveProductFile(_ context.Context, sellerID, productID, fileID primitive.ObjectID) (models.ProductFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.SellerID != sellerID {
		return models.ProductFile{}, notFound("products.FindOneAndUpdate")
	}
	file, ok := p.FileByID(fileID)
	if !ok {
		return models.ProductFile{}, notFound("products.FindOneAndUpdate")
	}
	p.Files = lo.Reject(p.Files, func(f models.ProductFile, _ int) bool { return f.ID == fileID })
	s.products[productID] = p
	return file, nil
}

// Download tokens

func (s *Store) EnsureToken(_ context.Context, token models.DownloadToken) (models.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.OrderItemID == token.OrderItemID {
			return t, nil
		}
	}
	token.ID = primitive.NewObjectID()
	s.tokens[token.Token] = token
	return token, nil
}

func (s *Store) GetToken(_ context.Context, token string) (models.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return t, notFound("download_tokens.FindOne")
	}
	return t, nil
}

func (s *Store) ListOrderTokens(_ context.Context, orderID primitive.ObjectID) ([]models.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.tokens), func(t models.DownloadToken, _ int) bool { return t.OrderID == orderID }), nil
}

func (s *Store) ConsumeToken(_ context.Context, token string, now time.Time, ip string) (models.DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.Expired(now) || t.Exhausted() {
		return models.DownloadToken{}, fmt.Errorf("download_tokens.FindOneAndUpdate: %w", store.ErrConflict)
	}
	if t.DownloadsRemaining != nil {
		t.DownloadsRemaining = lo.ToPtr(*t.DownloadsRemaining - 1)
	}
	t.LastDownloadAt = lo.ToPtr(now)
	t.IPAddress = ip
	s.tokens[token] = t
	return t, nil
}

// Coupons

func (s *Store) GetCouponByCode(_ context.Context, sellerID primitive.ObjectID, code string) (models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if c.SellerID == sellerID && c.Code == store.NormalizeCode(code) {
			return c, nil
		}
	}
	return models.Coupon{}, notFound("coupons.FindOne")
}

func (s *Store) GetCoupon(_ context.Context, sellerID, id primitive.ObjectID) (models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok || c.SellerID != sellerID {
		return models.Coupon{}, notFound("coupons.FindOne")
	}
	return c, nil
}

func (s *Store) ListCoupons(_ context.Context, sellerID primitive.ObjectID) ([]models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.coupons), func(c models.Coupon, _ int) bool { return c.SellerID == sellerID }), nil
}

func (s *Store) InsertCoupon(_ context.Context, coupon models.Coupon) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coupon.Code = store.NormalizeCode(coupon.Code)
	for _, c := range s.coupons {
		if c.SellerID == coupon.SellerID && c.Code == coupon.Code {
			return primitive.NilObjectID, fmt.Errorf("coupons.InsertOne: %w", store.ErrDuplicate)
		}
	}
	if coupon.ID.IsZero() {
		coupon.ID = primitive.NewObjectID()
	}
	s.coupons[coupon.ID] = coupon
	return coupon.ID, nil
}

func (s *Store) UpdateCoupon(_ context.Context, coupon models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.coupons[coupon.ID]
	if !ok || current.SellerID != coupon.SellerID {
		return notFound("coupons.UpdateOne")
	}
	coupon.Code = store.NormalizeCode(coupon.Code)
	coupon.UsedCount = current.UsedCount
	coupon.CreatedAt = current.CreatedAt
	s.coupons[coupon.ID] = coupon
	return nil
}

func (s *Store) DeleteCoupon(_ context.Context, sellerID, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok || c.SellerID != sellerID {
		return notFound("coupons.DeleteOne")
	}
	delete(s.coupons, id)
	return nil
}

func (s *Store) IncrementCouponUsage(_ context.Context, sellerID primitive.ObjectID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.coupons {
		if c.SellerID == sellerID && c.Code == store.NormalizeCode(code) {
			c.UsedCount++
			s.coupons[id] = c
			return nil
		}
	}
	return notFound("coupons.UpdateOne")
}

// Customers

func (s *Store) UpsertCustomer(_ context.Context, sellerID primitive.ObjectID, email, name string) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for id, c := range s.customers {
		if c.SellerID == sellerID && c.Email == email {
			if name != "" {
				c.Name = name
				s.customers[id] = c
			}
			return c, nil
		}
	}
	c := models.Customer{ID: primitive.NewObjectID(), SellerID: sellerID, Email: email, Name: name, CreatedAt: time.Now().UTC()}
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) ListCustomers(_ context.Context, sellerID primitive.ObjectID) ([]models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.customers), func(c models.Customer, _ int) bool { return c.SellerID == sellerID }), nil
}

// Carts

func (s *Store) TrackCart(_ context.Context, cart models.AbandonedCart, now time.Time) (models.AbandonedCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.carts[cart.ID]
	if !ok {
		current = models.AbandonedCart{ID: cart.ID, SellerID: cart.SellerID, CreatedAt: now}
	}
	if current.SellerID != cart.SellerID {
		return models.AbandonedCart{}, fmt.Errorf("abandoned_carts.FindOneAndUpdate: %w", store.ErrConflict)
	}
	current.Product = cart.Product
	current.CheckoutURL = cart.CheckoutURL
	current.UpdatedAt = now
	if email := strings.TrimSpace(cart.Email); email != "" {
		current.Email = email
	}
	if name := strings.TrimSpace(cart.Name); name != "" {
		current.Name = name
	}
	s.carts[cart.ID] = current
	return current, nil
}

func (s *Store) MarkCartRecovered(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok {
		return notFound("abandoned_carts.UpdateOne")
	}
	if !cart.Recovered {
		cart.Recovered = true
		cart.RecoveredAt = lo.ToPtr(now)
		cart.UpdatedAt = now
		s.carts[id] = cart
	}
	return nil
}

func (s *Store) GetCart(_ context.Context, id string) (models.AbandonedCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok {
		return cart, notFound("abandoned_carts.FindOne")
	}
	return cart, nil
}

func (s *Store) ListCarts(_ context.Context, sellerID primitive.ObjectID) ([]models.AbandonedCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.carts), func(c models.AbandonedCart, _ int) bool { return c.SellerID == sellerID }), nil
}

func (s *Store) ListPendingCarts(_ context.Context, createdBefore time.Time) ([]models.AbandonedCart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.carts), func(c models.AbandonedCart, _ int) bool {
		return !c.Recovered && c.Email != "" && !c.CreatedAt.After(createdBefore)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ClaimCartStep(_ context.Context, id string, expectedSent int, lastSentBefore, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[id]
	if !ok || cart.Recovered || cart.EmailsSent != expectedSent {
		return false, nil
	}
	if cart.LastEmailSent != nil && cart.LastEmailSent.After(lastSentBefore) {
		return false, nil
	}
	cart.EmailsSent++
	cart.LastEmailSent = lo.ToPtr(now)
	s.carts[id] = cart
	return true, nil
}

// Sequences

func (s *Store) GetSequence(_ context.Context, key string) (models.EmailSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequences[key]
	if !ok {
		return seq, notFound("email_sequences.FindOne")
	}
	return seq, nil
}

func (s *Store) PutSequence(_ context.Context, sequence models.EmailSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[sequence.Key] = sequence
	return nil
}

// Templates

func (s *Store) InsertTemplate(_ context.Context, tpl models.EmailTemplate) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	s.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

func (s *Store) GetTemplateByKind(_ context.Context, sellerID primitive.ObjectID, kind string) (models.EmailTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := lo.Filter(lo.Values(s.templates), func(t models.EmailTemplate, _ int) bool {
		return t.SellerID == sellerID && t.Kind == kind
	})
	if len(matches) == 0 {
		return models.EmailTemplate{}, notFound("email_templates.FindOne")
	}
	return lo.MaxBy(matches, func(a, b models.EmailTemplate) bool { return a.UpdatedAt.After(b.UpdatedAt) }), nil
}

func (s *Store) GetSellerTemplate(_ context.Context, sellerID, id primitive.ObjectID) (models.EmailTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.SellerID != sellerID {
		return models.EmailTemplate{}, notFound("email_templates.FindOne")
	}
	return t, nil
}

func (s *Store) ListTemplates(_ context.Context, sellerID primitive.ObjectID) ([]models.EmailTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(lo.Values(s.templates), func(t models.EmailTemplate, _ int) bool { return t.SellerID == sellerID }), nil
}

func (s *Store) UpdateTemplate(_ context.Context, tpl models.EmailTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.templates[tpl.ID]
	if !ok || current.SellerID != tpl.SellerID {
		return notFound("email_templates.UpdateOne")
	}
	tpl.CreatedAt = current.CreatedAt
	s.templates[tpl.ID] = tpl
	return nil
}

func (s *Store) DeleteTemplate(_ context.Context, sellerID, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.SellerID != sellerID {
		return notFound("email_templates.DeleteOne")
	}
	delete(s.templates, id)
	return nil
}
