package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/models"
	"digitalcart/internal/store"
)

// Accounts holds users, refresh tokens, checkout pages, plans and gateways.
type Accounts struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	refresh  map[primitive.ObjectID]models.RefreshToken
	pages    map[primitive.ObjectID]models.CheckoutPage
	plans    map[primitive.ObjectID]models.Plan
	gateways map[primitive.ObjectID]models.PaymentGateway
}

func NewAccounts() *Accounts {
	return &Accounts{
		users:    map[primitive.ObjectID]models.User{},
		refresh:  map[primitive.ObjectID]models.RefreshToken{},
		pages:    map[primitive.ObjectID]models.CheckoutPage{},
		plans:    map[primitive.ObjectID]models.Plan{},
		gateways: map[primitive.ObjectID]models.PaymentGateway{},
	}
}

// Users

func (a *Accounts) GetUser(_ context.Context, id primitive.ObjectID) (models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return u, notFound("users.FindOne")
	}
	return u, nil
}

func (a *Accounts) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := lo.Find(lo.Values(a.users), func(u models.User) bool { return u.Email == email })
	if !ok {
		return u, notFound("users.FindOne")
	}
	return u, nil
}

func (a *Accounts) InsertUser(_ context.Context, user models.User) (primitive.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if lo.SomeBy(lo.Values(a.users), func(u models.User) bool { return u.Email == user.Email }) {
		return primitive.NilObjectID, fmt.Errorf("users.InsertOne: %w", store.ErrDuplicate)
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	a.users[user.ID] = user
	return user.ID, nil
}

func (a *Accounts) InsertRefreshToken(_ context.Context, token models.RefreshToken) (primitive.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	a.refresh[token.ID] = token
	return token.ID, nil
}

func (a *Accounts) GetActiveRefreshToken(_ context.Context, tokenHash string) (models.RefreshToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := lo.Find(lo.Values(a.refresh), func(t models.RefreshToken) bool { return t.TokenHash == tokenHash && !t.Revoked })
	if !ok {
		return t, notFound("refresh_tokens.FindOne")
	}
	return t, nil
}

func (a *Accounts) RevokeRefreshToken(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.refresh[id]
	if !ok || t.Revoked {
		return notFound("refresh_tokens.UpdateOne")
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	a.refresh[id] = t
	return nil
}

func (a *Accounts) RevokeRefreshTokenByHash(_ context.Context, tokenHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.refresh {
		if t.TokenHash == tokenHash && !t.Revoked {
			t.Revoked = true
			a.refresh[id] = t
			return nil
		}
	}
	return notFound("refresh_tokens.UpdateOne")
}

// Pages

func (a *Accounts) InsertPage(_ context.Context, page models.CheckoutPage) (primitive.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if lo.SomeBy(lo.Values(a.pages), func(p models.CheckoutPage) bool { return p.Slug == page.Slug }) {
		return primitive.NilObjectID, fmt.Errorf("checkout_pages.InsertOne: %w", store.ErrDuplicate)
	}
	if page.ID.IsZero() {
		page.ID = primitive.NewObjectID()
	}
	a.pages[page.ID] = page
	return page.ID, nil
}

func (a *Accounts) GetPublishedPage(_ context.Context, slug string) (models.CheckoutPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := lo.Find(lo.Values(a.pages), func(p models.CheckoutPage) bool { return p.Slug == slug && p.IsPublished })
	if !ok {
		return p, notFound("checkout_pages.FindOne")
	}
	return p, nil
}

func (a *Accounts) GetSellerPage(_ context.Context, sellerID, id primitive.ObjectID) (models.CheckoutPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pages[id]
	if !ok || p.SellerID != sellerID {
		return models.CheckoutPage{}, notFound("checkout_pages.FindOne")
	}
	return p, nil
}

func (a *Accounts) ListPages(_ context.Context, sellerID primitive.ObjectID) ([]models.CheckoutPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.Filter(lo.Values(a.pages), func(p models.CheckoutPage, _ int) bool { return p.SellerID == sellerID }), nil
}

func (a *Accounts) UpdatePage(_ context.Context, page models.CheckoutPage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.pages[page.ID]
	if !ok || current.SellerID != page.SellerID {
		return notFound("checkout_pages.UpdateOne")
	}
	if lo.SomeBy(lo.Values(a.pages), func(p models.CheckoutPage) bool { return p.ID != page.ID && p.Slug == page.Slug }) {
		return fmt.Errorf("checkout_pages.UpdateOne: %w", store.ErrDuplicate)
	}
	page.CreatedAt = current.CreatedAt
	a.pages[page.ID] = page
	return nil
}

func (a *Accounts) DeletePage(_ context.Context, sellerID, id primitive.ObjectID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pages[id]
	if !ok || p.SellerID != sellerID {
		return notFound("checkout_pages.DeleteOne")
	}
	delete(a.pages, id)
	return nil
}

// Plans and gateways

func (a *Accounts) InsertPlan(_ context.Context, plan models.Plan) (primitive.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	a.plans[plan.ID] = plan
	return plan.ID, nil
}

func (a *Accounts) GetPlan(_ context.Context, id primitive.ObjectID) (models.Plan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.plans[id]
	if !ok {
		return p, notFound("plans.FindOne")
	}
	return p, nil
}

func (a *Accounts) ListPlans(_ context.Context, onlyActive bool) ([]models.Plan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := lo.Filter(lo.Values(a.plans), func(p models.Plan, _ int) bool { return !onlyActive || p.IsActive })
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (a *Accounts) UpdatePlan(_ context.Context, plan models.Plan) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.plans[plan.ID]
	if !ok {
		return notFound("plans.UpdateOne")
	}
	plan.CreatedAt = current.CreatedAt
	a.plans[plan.ID] = plan
	return nil
}

func (a *Accounts) DeletePlan(_ context.Context, id primitive.ObjectID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.plans[id]; !ok {
		return notFound("plans.DeleteOne")
	}
	delete(a.plans, id)
	return nil
}

func (a *Accounts) InsertGateway(_ context.Context, gateway models.PaymentGateway) (primitive.ObjectID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gateway.ID.IsZero() {
		gateway.ID = primitive.NewObjectID()
	}
	a.gateways[gateway.ID] = gateway
	return gateway.ID, nil
}

func (a *Accounts) GetGateway(_ context.Context, id primitive.ObjectID) (models.PaymentGateway, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.gateways[id]
	if !ok {
		return g, notFound("payment_gateways.FindOne")
	}
	return g, nil
}

func (a *Accounts) ListGateways(_ context.Context) ([]models.PaymentGateway, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lo.Values(a.gateways), nil
}

func (a *Accounts) UpdateGateway(_ context.Context, gateway models.PaymentGateway) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.gateways[gateway.ID]
	if !ok {
		return notFound("payment_gateways.UpdateOne")
	}
	if gateway.SecretKey == "" {
		gateway.SecretKey = current.SecretKey
	}
	gateway.CreatedAt = current.CreatedAt
	a.gateways[gateway.ID] = gateway
	return nil
}

func (a *Accounts) DeleteGateway(_ context.Context, id primitive.ObjectID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.gateways[id]; !ok {
		return notFound("payment_gateways.DeleteOne")
	}
	delete(a.gateways, id)
	return nil
}
