package abandonment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/mailer"
	"digitalcart/internal/models"
	"digitalcart/internal/store/memstore"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingSender) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.sent, func(m mailer.Message, _ int) string { return m.Subject })
}

type fixture struct {
	svc    *Service
	mem    *memstore.Store
	sender *recordingSender
	clock  time.Time
}

func newFixture() *fixture {
	f := &fixture{
		mem:    memstore.New(),
		sender: &recordingSender{},
		clock:  time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.mem, f.mem, f.mem, f.sender, &events.Recorder{}, 0)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func fakeCart(seller primitive.ObjectID) models.AbandonedCart {
	return models.AbandonedCart{
		ID:       gofakeit.UUID(),
		SellerID: seller,
		Email:    gofakeit.Email(),
		Name:     gofakeit.FirstName(),
		Product: models.CartProduct{
			ID:    primitive.NewObjectID().Hex(),
			Name:  gofakeit.ProductName(),
			Price: 29,
		},
		CheckoutURL: "https://shop.example.com/p/" + gofakeit.Word(),
	}
}

func TestReminderScenarioSendsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	t0 := f.clock

	cart, err := f.svc.Track(ctx, fakeCart(primitive.NewObjectID()))
	require.NoError(t, err)

	f.clock = t0.Add(59 * time.Minute)
	n, err := f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is due before the first delay")

	f.clock = t0.Add(61 * time.Minute)
	n, err = f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for f.clock = t0.Add(66 * time.Minute); f.clock.Before(t0.Add(24 * time.Hour)); f.clock = f.clock.Add(5 * time.Minute) {
		_, err := f.svc.ProcessOnce(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"You left something in your cart"}, f.sender.subjects())

	stored, err := f.mem.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EmailsSent)
	assert.Equal(t, t0.Add(61*time.Minute), *stored.LastEmailSent)

	f.clock = t0.Add(24 * time.Hour)
	_, err = f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, f.sender.subjects(), 2)
	assert.Contains(t, f.sender.sent[1].HTML, "COMEBACK10")
}

func TestOldCartAdvancesOneStepPerGap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	t0 := f.clock

	_, err := f.svc.Track(ctx, fakeCart(primitive.NewObjectID()))
	require.NoError(t, err)

	// every step is overdue; the gap still spaces the emails out
	f.clock = t0.Add(100 * time.Hour)
	for i := 0; i < 3; i++ {
		n, err := f.svc.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = f.svc.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "at most one send per cart per hour")

		f.clock = f.clock.Add(time.Hour)
	}

	n, err := f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sequence exhausted")
	assert.Len(t, f.sender.subjects(), 3)
}

func TestSendFailureStillAdvances(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sender.err = errors.New("smtp: connection refused")

	cart, err := f.svc.Track(ctx, fakeCart(primitive.NewObjectID()))
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * time.Hour)
	n, err := f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.mem.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EmailsSent)

	f.clock = f.clock.Add(10 * time.Minute)
	n, err = f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed sends are not retried")
}

func TestRecoveredAndAnonymousCartsAreSkipped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seller := primitive.NewObjectID()

	recovered, err := f.svc.Track(ctx, fakeCart(seller))
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkRecovered(ctx, recovered.ID))

	anonymous := fakeCart(seller)
	anonymous.Email = ""
	_, err = f.svc.Track(ctx, anonymous)
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * time.Hour)
	n, err := f.svc.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, f.svc.MarkRecovered(ctx, "unknown"), ErrCartNotFound)
}

func TestRetrackKeepsSequenceState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	t0 := f.clock

	cart := fakeCart(primitive.NewObjectID())
	_, err := f.svc.Track(ctx, cart)
	require.NoError(t, err)

	f.clock = t0.Add(61 * time.Minute)
	_, err = f.svc.ProcessOnce(ctx)
	require.NoError(t, err)

	f.clock = t0.Add(2 * time.Hour)
	cart.Product.Price = 19
	again, err := f.svc.Track(ctx, cart)
	require.NoError(t, err)

	assert.Equal(t, 1, again.EmailsSent)
	assert.Equal(t, t0, again.CreatedAt)
	assert.Equal(t, 19.0, again.Product.Price)
}

func TestTrackKeepsCartWithItsSeller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cart := fakeCart(primitive.NewObjectID())
	owned, err := f.svc.Track(ctx, cart)
	require.NoError(t, err)

	other := cart
	other.SellerID = primitive.NewObjectID()
	_, err = f.svc.Track(ctx, other)
	assert.ErrorIs(t, err, ErrCartTaken)

	carts, _, err := f.svc.List(ctx, other.SellerID)
	require.NoError(t, err)
	assert.Empty(t, carts)

	carts, _, err = f.svc.List(ctx, cart.SellerID)
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, owned.Email, carts[0].Email)
}

func TestNextStep(t *testing.T) {
	steps := DefaultSequence()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := models.AbandonedCart{Email: "a@example.com", CreatedAt: t0}

	tests := []struct {
		name     string
		mutate   func(c *models.AbandonedCart)
		now      time.Time
		wantStep int
		wantDue  bool
	}{
		{name: "too young", now: t0.Add(59 * time.Minute)},
		{name: "first step due", now: t0.Add(60 * time.Minute), wantStep: 0, wantDue: true},
		{
			name:   "second step waits for its delay",
			mutate: func(c *models.AbandonedCart) { c.EmailsSent = 1; c.LastEmailSent = lo.ToPtr(t0.Add(time.Hour)) },
			now:    t0.Add(23 * time.Hour),
		},
		{
			name:     "second step due",
			mutate:   func(c *models.AbandonedCart) { c.EmailsSent = 1; c.LastEmailSent = lo.ToPtr(t0.Add(time.Hour)) },
			now:      t0.Add(24 * time.Hour),
			wantStep: 1,
			wantDue:  true,
		},
		{
			name:   "gap blocks an overdue step",
			mutate: func(c *models.AbandonedCart) { c.EmailsSent = 1; c.LastEmailSent = lo.ToPtr(t0.Add(99 * time.Hour)) },
			now:    t0.Add(99*time.Hour + 59*time.Minute),
		},
		{
			name:   "sequence finished",
			mutate: func(c *models.AbandonedCart) { c.EmailsSent = 3 },
			now:    t0.Add(500 * time.Hour),
		},
		{
			name:   "recovered",
			mutate: func(c *models.AbandonedCart) { c.Recovered = true },
			now:    t0.Add(2 * time.Hour),
		},
		{
			name:   "no email",
			mutate: func(c *models.AbandonedCart) { c.Email = "" },
			now:    t0.Add(2 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := base
			if tt.mutate != nil {
				tt.mutate(&cart)
			}
			step, due := NextStep(cart, steps, tt.now, DefaultMinGap)
			assert.Equal(t, tt.wantDue, due)
			if tt.wantDue {
				assert.Equal(t, tt.wantStep, step)
			}
		})
	}
}

func TestSequenceFallbackAndSorting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seller := primitive.NewObjectID()

	steps, err := f.svc.Sequence(ctx, seller)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(DefaultSequence(), steps))

	shared := []models.SequenceStep{{DelayMinutes: 30, Subject: "Shared"}}
	require.NoError(t, f.mem.PutSequence(ctx, models.EmailSequence{Key: models.DefaultSequenceKey, Steps: shared}))
	steps, err = f.svc.Sequence(ctx, seller)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(shared, steps))

	saved, err := f.svc.SaveSequence(ctx, seller, []models.SequenceStep{
		{DelayMinutes: 1440, Subject: "Day"},
		{DelayMinutes: 90, Subject: "Soon"},
	})
	require.NoError(t, err)
	assert.Equal(t, seller.Hex(), saved.Key)

	steps, err = f.svc.Sequence(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, []string{"Soon", "Day"}, lo.Map(steps, func(s models.SequenceStep, _ int) string { return s.Subject }))

	_, err = f.svc.SaveSequence(ctx, seller, nil)
	assert.ErrorIs(t, err, ErrInvalidSequence)
	_, err = f.svc.SaveSequence(ctx, seller, []models.SequenceStep{{DelayMinutes: -1, Subject: "x"}})
	assert.ErrorIs(t, err, ErrInvalidSequence)
}

func TestStats(t *testing.T) {
	carts := []models.AbandonedCart{
		{EmailsSent: 2},
		{EmailsSent: 1, Recovered: true},
		{EmailsSent: 0},
	}
	assert.Equal(t, models.CartStats{
		Total:        3,
		Active:       2,
		Recovered:    1,
		EmailsSent:   3,
		RecoveryRate: 33.33,
	}, Stats(carts))

	assert.Equal(t, models.CartStats{}, Stats(nil))
}

func TestSellerTemplateOverridesBody(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seller := primitive.NewObjectID()

	_, err := f.mem.InsertTemplate(ctx, models.EmailTemplate{
		SellerID: seller,
		Kind:     models.TemplateCartAbandonment,
		Body:     "<p>Come back for {{.ProductName}}</p>",
	})
	require.NoError(t, err)

	cart := fakeCart(seller)
	cart.Product.Name = "Lightroom Presets"
	_, err = f.svc.Track(ctx, cart)
	require.NoError(t, err)

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.svc.ProcessOnce(ctx)
	require.NoError(t, err)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "<p>Come back for Lightroom Presets</p>", f.sender.sent[0].HTML)
	assert.Equal(t, "You left something in your cart", f.sender.sent[0].Subject)
}
