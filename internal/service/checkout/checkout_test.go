package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/mailer"
	"digitalcart/internal/models"
	"digitalcart/internal/payments"
	"digitalcart/internal/service/abandonment"
	"digitalcart/internal/service/coupon"
	"digitalcart/internal/store/memstore"
)

type fakeGateway struct {
	err     error
	created []models.Order
}

func (g *fakeGateway) CreatePayment(_ context.Context, order models.Order) (payments.Intent, error) {
	if g.err != nil {
		return payments.Intent{}, g.err
	}
	g.created = append(g.created, order)
	return payments.Intent{ID: "pi_" + order.ID.Hex(), ClientSecret: "pi_secret_" + order.ID.Hex()}, nil
}

func (g *fakeGateway) ParseEvent([]byte, string) (payments.Event, error) {
	return payments.Event{}, payments.ErrGatewayDisabled
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (r *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type recordingIssuer struct {
	items []primitive.ObjectID
}

func (r *recordingIssuer) EnsureToken(_ context.Context, _, itemID primitive.ObjectID) (models.DownloadToken, error) {
	r.items = append(r.items, itemID)
	return models.DownloadToken{OrderItemID: itemID}, nil
}

type fixture struct {
	svc      *Service
	mem      *memstore.Store
	gateway  *fakeGateway
	sender   *recordingSender
	recorder *events.Recorder
	issuer   *recordingIssuer
	carts    *abandonment.Service
	seller   primitive.ObjectID
}

func newFixture() *fixture {
	f := &fixture{
		mem:      memstore.New(),
		gateway:  &fakeGateway{},
		sender:   &recordingSender{},
		recorder: &events.Recorder{},
		issuer:   &recordingIssuer{},
		seller:   primitive.NewObjectID(),
	}
	f.carts = abandonment.NewService(f.mem, f.mem, f.mem, f.sender, f.recorder, 0)
	f.svc = NewService(Deps{
		Orders:        f.mem,
		Products:      f.mem,
		Customers:     f.mem,
		Coupons:       f.mem,
		Templates:     f.mem,
		Gateway:       f.gateway,
		Carts:         f.carts,
		Tokens:        f.issuer,
		Sender:        f.sender,
		Publisher:     f.recorder,
		PublicBaseURL: "https://shop.example.com/",
	})
	return f
}

func (f *fixture) product(t *testing.T, price float64, currency string) models.Product {
	t.Helper()
	p := models.Product{
		SellerID: f.seller,
		Name:     gofakeit.ProductName(),
		Price:    price,
		Currency: currency,
		IsActive: true,
	}
	id, err := f.mem.InsertProduct(context.Background(), p)
	require.NoError(t, err)
	p.ID = id
	return p
}

func (f *fixture) coupon(t *testing.T, c models.Coupon) {
	t.Helper()
	c.SellerID = f.seller
	c.IsActive = true
	_, err := f.mem.InsertCoupon(context.Background(), c)
	require.NoError(t, err)
}

func TestCheckoutPricesFromStoreAndAppliesCoupon(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.product(t, 19.99, "usd")
	b := f.product(t, 5, "USD")
	f.coupon(t, models.Coupon{Code: "SAVE10", DiscountType: models.DiscountPercent, DiscountValue: 10})

	res, err := f.svc.Checkout(ctx, Request{
		SellerID:   f.seller,
		Email:      " Buyer@Example.com ",
		Items:      []Item{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID}, {ProductID: a.ID, Quantity: 1}},
		CouponCode: "save10",
	})
	require.NoError(t, err)

	order := res.Order
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "buyer@example.com", order.Email)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, 44.98, order.Subtotal)
	assert.Equal(t, 4.5, order.Discount)
	assert.Equal(t, 40.48, order.Total)
	assert.Equal(t, "SAVE10", order.CouponCode)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.NotEmpty(t, order.ConfirmationToken)

	assert.Equal(t, "pi_secret_"+order.ID.Hex(), res.ClientSecret)
	stored, err := f.mem.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_"+order.ID.Hex(), stored.PaymentID)

	customers, err := f.mem.ListCustomers(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, order.CustomerID, customers[0].ID)

	assert.Empty(t, f.sender.sent, "nothing is sent before payment")
}

func TestCheckoutRejectsBadRequests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	usd := f.product(t, 10, "USD")
	eur := f.product(t, 10, "EUR")
	inactive := f.product(t, 10, "USD")
	inactive.IsActive = false
	require.NoError(t, f.mem.UpdateProduct(ctx, inactive))
	f.coupon(t, models.Coupon{Code: "OLD", DiscountType: models.DiscountFixed, DiscountValue: 1, ExpiresAt: lo.ToPtr(time.Now().Add(-time.Hour))})

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing email", Request{SellerID: f.seller, Items: []Item{{ProductID: usd.ID}}}, ErrInvalidRequest},
		{"bad email", Request{SellerID: f.seller, Email: "nope", Items: []Item{{ProductID: usd.ID}}}, ErrInvalidRequest},
		{"no items", Request{SellerID: f.seller, Email: "a@b.co"}, ErrInvalidRequest},
		{"negative quantity", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: usd.ID, Quantity: -1}}}, ErrInvalidRequest},
		{"unknown product", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: primitive.NewObjectID()}}}, ErrProductUnavailable},
		{"inactive product", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: inactive.ID}}}, ErrProductUnavailable},
		{"other seller", Request{SellerID: primitive.NewObjectID(), Email: "a@b.co", Items: []Item{{ProductID: usd.ID}}}, ErrProductUnavailable},
		{"mixed currency", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: usd.ID}, {ProductID: eur.ID}}}, ErrMixedCurrency},
		{"unknown coupon", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: usd.ID}}, CouponCode: "NOPE"}, coupon.ErrCouponNotFound},
		{"expired coupon", Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: usd.ID}}, CouponCode: "old"}, coupon.ErrCouponExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Checkout(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	orders, err := f.mem.ListOrders(ctx, f.seller)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestFreeOrderCompletesImmediately(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, 20, "USD")
	f.coupon(t, models.Coupon{Code: "FREE", DiscountType: models.DiscountFixed, DiscountValue: 50, UsageLimit: lo.ToPtr(5)})

	res, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: p.ID}}, CouponCode: "FREE"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, res.Order.Status)
	assert.Zero(t, res.Order.Total)
	assert.Empty(t, res.ClientSecret)
	assert.Empty(t, f.gateway.created, "no payment for a free order")

	c, err := f.mem.GetCouponByCode(ctx, f.seller, "FREE")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)
	assert.Len(t, f.sender.sent, 1)
}

func TestGatewayFailureKeepsOrderPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.gateway.err = payments.ErrGatewayDisabled
	p := f.product(t, 20, "USD")

	res, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: p.ID}}})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, res.Order.Status)
	assert.NotEmpty(t, res.PaymentError)
	assert.Empty(t, res.ClientSecret)
}

func TestPaymentSucceededRunsSideEffectsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, 20, "USD")
	f.coupon(t, models.Coupon{Code: "TAKE5", DiscountType: models.DiscountFixed, DiscountValue: 5})

	cart, err := f.carts.Track(ctx, models.AbandonedCart{ID: "cart-1", SellerID: f.seller, Email: "a@b.co"})
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: p.ID}}, CouponCode: "TAKE5", CartID: cart.ID})
	require.NoError(t, err)

	ev := payments.Event{Type: payments.EventPaymentSucceeded, PaymentID: "pi_" + res.Order.ID.Hex(), OrderID: res.Order.ID.Hex()}
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev), "replayed webhook")

	order, err := f.mem.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)

	c, err := f.mem.GetCouponByCode(ctx, f.seller, "TAKE5")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	stored, err := f.mem.GetCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, stored.Recovered)

	assert.Equal(t, []primitive.ObjectID{order.Items[0].ID}, f.issuer.items)
	assert.Equal(t, 1, lo.Count(f.recorder.Topics(), events.TopicOrderCompleted))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "a@b.co", f.sender.sent[0].To)
	assert.Contains(t, f.sender.sent[0].HTML, "https://shop.example.com/api/orders/confirmation/"+order.ConfirmationToken)
	assert.Contains(t, f.sender.sent[0].HTML, "15.00 USD")
}

func TestPaymentFailedAndRefunded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.product(t, 20, "USD")

	failed, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: p.ID}}})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventPaymentFailed, OrderID: failed.Order.ID.Hex()}))

	order, err := f.mem.GetOrder(ctx, failed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	// a refund cannot apply to an order that never completed
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventChargeRefunded, PaymentID: order.PaymentID}))
	order, err = f.mem.GetOrder(ctx, failed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	paid, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "a@b.co", Items: []Item{{ProductID: p.ID}}})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, paid.Order.ID, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventChargeRefunded, PaymentID: "pi_" + paid.Order.ID.Hex()}))
	order, err = f.mem.GetOrder(ctx, paid.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusRefunded, order.Status)
}

func TestPaymentRetryAfterFailureCompletesOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ebook := f.product(t, 12, "USD")
	course := f.product(t, 30, "USD")

	res, err := f.svc.Checkout(ctx, Request{SellerID: f.seller, Email: "retry@b.co", Items: []Item{{ProductID: ebook.ID}, {ProductID: course.ID}}})
	require.NoError(t, err)
	paymentID := "pi_" + res.Order.ID.Hex()

	require.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventPaymentFailed, PaymentID: paymentID, OrderID: res.Order.ID.Hex()}))
	order, err := f.mem.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusFailed, order.Status)

	ev := payments.Event{Type: payments.EventPaymentSucceeded, PaymentID: paymentID, OrderID: res.Order.ID.Hex()}
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev))
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, ev))

	order, err = f.mem.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
	assert.ElementsMatch(t, lo.Map(order.Items, func(it models.OrderItem, _ int) primitive.ObjectID { return it.ID }), f.issuer.items)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, lo.Count(f.recorder.Topics(), events.TopicOrderCompleted))

	// a late failure event does not undo the completed order
	require.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventPaymentFailed, PaymentID: paymentID, OrderID: res.Order.ID.Hex()}))
	order, err = f.mem.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestPaymentEventForUnknownOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventPaymentSucceeded, OrderID: primitive.NewObjectID().Hex()})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	err = f.svc.HandlePaymentEvent(ctx, payments.Event{Type: payments.EventChargeRefunded})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.NoError(t, f.svc.HandlePaymentEvent(ctx, payments.Event{Type: "customer.created"}))

	_, err = f.svc.Complete(ctx, primitive.NewObjectID(), "")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
