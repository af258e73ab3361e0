package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/mailer"
	"digitalcart/internal/models"
	"digitalcart/internal/money"
	"digitalcart/internal/payments"
	"digitalcart/internal/port"
	"digitalcart/internal/service/coupon"
	"digitalcart/internal/store"
)

var (
	ErrInvalidRequest     = errors.New("invalid checkout request")
	ErrProductUnavailable = errors.New("product is not available")
	ErrMixedCurrency      = errors.New("products must share one currency")
	ErrOrderNotFound      = errors.New("order not found")
)

type Item struct {
	ProductID primitive.ObjectID
	Quantity  int
}

type Request struct {
	SellerID   primitive.ObjectID
	Email      string
	Name       string
	Items      []Item
	CouponCode string
	CartID     string
}

// Result carries the created order. A failed payment setup leaves the order
// pending and fills PaymentError instead of failing the checkout.
type Result struct {
	Order        models.Order
	ClientSecret string
	PaymentError string
}

// CartRecoverer marks the abandoned cart behind an order as recovered.
type CartRecoverer interface {
	MarkRecovered(ctx context.Context, cartID string) error
}

// TokenIssuer prepares the download tokens of a completed order.
type TokenIssuer interface {
	EnsureToken(ctx context.Context, orderID, orderItemID primitive.ObjectID) (models.DownloadToken, error)
}

type Deps struct {
	Orders    port.OrderRepository
	Products  port.ProductRepository
	Customers port.CustomerRepository
	Coupons   port.CouponRepository
	Templates port.TemplateRepository
	Gateway   payments.Gateway
	Carts     CartRecoverer
	Tokens    TokenIssuer
	Sender    mailer.Sender
	Publisher events.Publisher
	// PublicBaseURL prefixes the confirmation link in the receipt email.
	PublicBaseURL string
}

type Service struct {
	deps    Deps
	coupons *coupon.Service
	now     func() time.Time
}

func NewService(deps Deps) *Service {
	deps.PublicBaseURL = strings.TrimRight(deps.PublicBaseURL, "/")
	return &Service{
		deps:    deps,
		coupons: coupon.NewService(deps.Coupons),
		now:     time.Now,
	}
}

// Checkout prices the request from stored products and creates a pending
// order. Free orders are completed on the spot.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return Result{}, err
	}
	if req.SellerID.IsZero() {
		return Result{}, fmt.Errorf("%w: sellerId is required", ErrInvalidRequest)
	}
	items, err := mergeItems(req.Items)
	if err != nil {
		return Result{}, err
	}

	ids := lo.Map(items, func(it Item, _ int) primitive.ObjectID { return it.ProductID })
	products, err := s.deps.Products.GetSellerProducts(ctx, req.SellerID, ids)
	if err != nil {
		return Result{}, err
	}
	byID := lo.KeyBy(products, func(p models.Product) primitive.ObjectID { return p.ID })

	currency := ""
	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			return Result{}, fmt.Errorf("%w: %s", ErrProductUnavailable, it.ProductID.Hex())
		}
		if currency == "" {
			currency = p.Currency
		} else if !strings.EqualFold(currency, p.Currency) {
			return Result{}, ErrMixedCurrency
		}
		subtotal = subtotal.Add(money.FromFloat(p.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
		orderItems = append(orderItems, models.OrderItem{
			ID:        primitive.NewObjectID(),
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
		})
	}
	currency = strings.ToUpper(currency)
	subtotal = money.Round(subtotal, currency)

	discount := decimal.Zero
	code := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		c, err := s.coupons.Validate(ctx, req.SellerID, req.CouponCode)
		if err != nil {
			return Result{}, err
		}
		discount = coupon.Discount(c, subtotal, currency)
		code = c.Code
	}
	total := subtotal.Sub(discount)

	customer, err := s.deps.Customers.UpsertCustomer(ctx, req.SellerID, email, strings.TrimSpace(req.Name))
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	order := models.Order{
		SellerID:          req.SellerID,
		CustomerID:        customer.ID,
		Email:             email,
		Items:             orderItems,
		Currency:          currency,
		Subtotal:          money.Float(subtotal, currency),
		Discount:          money.Float(discount, currency),
		Total:             money.Float(total, currency),
		CouponCode:        code,
		CartID:            strings.TrimSpace(req.CartID),
		Status:            models.OrderStatusPending,
		ConfirmationToken: uuid.NewString(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	order.ID, err = s.deps.Orders.InsertOrder(ctx, order)
	if err != nil {
		return Result{}, err
	}

	if !total.IsPositive() {
		completed, err := s.Complete(ctx, order.ID, "")
		if err != nil {
			return Result{}, err
		}
		return Result{Order: completed}, nil
	}

	intent, err := s.deps.Gateway.CreatePayment(ctx, order)
	if err != nil {
		log.Printf("[CHECKOUT] [ERROR] create payment for order %s: %v", order.ID.Hex(), err)
		return Result{Order: order, PaymentError: "payment could not be started"}, nil
	}
	if err := s.deps.Orders.SetPaymentID(ctx, order.ID, intent.ID); err != nil {
		log.Printf("[CHECKOUT] [ERROR] store payment id for order %s: %v", order.ID.Hex(), err)
	}
	order.PaymentID = intent.ID

	return Result{Order: order, ClientSecret: intent.ClientSecret}, nil
}

// completable lists the statuses a successful payment may complete. A failed
// PaymentIntent returns to requires_payment_method and can still succeed on a
// later attempt.
var completable = []models.OrderStatus{models.OrderStatusPending, models.OrderStatusFailed}

// Complete moves a pending or failed order to completed and runs the side
// effects exactly once. Completing an order twice returns store.ErrConflict.
func (s *Service) Complete(ctx context.Context, orderID primitive.ObjectID, paymentID string) (models.Order, error) {
	order, err := s.deps.Orders.TransitionOrder(ctx, orderID, completable, models.OrderStatusCompleted, paymentID, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, err
	}

	if order.CouponCode != "" {
		if err := s.deps.Coupons.IncrementCouponUsage(ctx, order.SellerID, order.CouponCode); err != nil {
			log.Printf("[CHECKOUT] [WARN] coupon usage for order %s not counted: %v", order.ID.Hex(), err)
		}
	}
	if order.CartID != "" && s.deps.Carts != nil {
		if err := s.deps.Carts.MarkRecovered(ctx, order.CartID); err != nil {
			log.Printf("[CHECKOUT] [WARN] cart %s not marked recovered: %v", order.CartID, err)
		}
	}
	if s.deps.Tokens != nil {
		for _, item := range order.Items {
			if _, err := s.deps.Tokens.EnsureToken(ctx, order.ID, item.ID); err != nil {
				log.Printf("[CHECKOUT] [WARN] download token for item %s: %v", item.ID.Hex(), err)
			}
		}
	}

	if err := s.deps.Publisher.Publish(ctx, events.TopicOrderCompleted, order.ID.Hex(), order); err != nil {
		log.Println("[CHECKOUT] [WARN] publish order completed failed:", err)
	}
	if err := s.sendConfirmation(ctx, order); err != nil {
		log.Printf("[CHECKOUT] [ERROR] confirmation email for order %s: %v", order.ID.Hex(), err)
	}
	return order, nil
}

// HandlePaymentEvent applies a verified gateway callback. Replayed events are
// accepted without repeating side effects.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payments.Event) error {
	switch ev.Type {
	case payments.EventPaymentSucceeded:
		order, err := s.orderForEvent(ctx, ev)
		if err != nil {
			return err
		}
		_, err = s.Complete(ctx, order.ID, ev.PaymentID)
		if errors.Is(err, store.ErrConflict) {
			log.Printf("[CHECKOUT] [INFO] order %s already %s, ignoring %s", order.ID.Hex(), order.Status, ev.Type)
			return nil
		}
		return err

	case payments.EventPaymentFailed:
		return s.transition(ctx, ev, models.OrderStatusPending, models.OrderStatusFailed)

	case payments.EventChargeRefunded:
		return s.transition(ctx, ev, models.OrderStatusCompleted, models.OrderStatusRefunded)

	default:
		log.Println("[CHECKOUT] [INFO] ignoring payment event", ev.Type)
		return nil
	}
}

func (s *Service) transition(ctx context.Context, ev payments.Event, from, to models.OrderStatus) error {
	order, err := s.orderForEvent(ctx, ev)
	if err != nil {
		return err
	}
	_, err = s.deps.Orders.TransitionOrder(ctx, order.ID, []models.OrderStatus{from}, to, ev.PaymentID, s.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		log.Printf("[CHECKOUT] [INFO] order %s is %s, cannot move to %s", order.ID.Hex(), order.Status, to)
		return nil
	}
	return err
}

// orderForEvent prefers the order id from the payment metadata and falls back
// to the payment id, which is all a refund carries.
func (s *Service) orderForEvent(ctx context.Context, ev payments.Event) (models.Order, error) {
	var (
		order models.Order
		err   error
	)
	if id, perr := primitive.ObjectIDFromHex(ev.OrderID); perr == nil {
		order, err = s.deps.Orders.GetOrder(ctx, id)
	} else if ev.PaymentID != "" {
		order, err = s.deps.Orders.GetOrderByPaymentID(ctx, ev.PaymentID)
	} else {
		return models.Order{}, ErrOrderNotFound
	}
	if errors.Is(err, store.ErrNotFound) {
		return models.Order{}, ErrOrderNotFound
	}
	return order, err
}

func (s *Service) sendConfirmation(ctx context.Context, order models.Order) error {
	var custom *models.EmailTemplate
	tpl, err := s.deps.Templates.GetTemplateByKind(ctx, order.SellerID, models.TemplateOrderConfirmation)
	switch {
	case err == nil:
		custom = &tpl
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("[CHECKOUT] [WARN] template lookup for seller %s failed, using built-in: %v", order.SellerID.Hex(), err)
	}

	msg, err := mailer.Compose(models.TemplateOrderConfirmation, custom, order.Email, mailer.OrderEmail{
		OrderID:         order.ID.Hex(),
		Items:           order.Items,
		Total:           money.Format(money.FromFloat(order.Total), order.Currency),
		Currency:        order.Currency,
		ConfirmationURL: s.deps.PublicBaseURL + "/api/orders/confirmation/" + order.ConfirmationToken,
	})
	if err != nil {
		return err
	}
	return s.deps.Sender.Send(ctx, msg)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	return email, nil
}

// mergeItems sums quantities of repeated products and keeps first-seen order.
func mergeItems(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	merged := make([]Item, 0, len(items))
	index := map[primitive.ObjectID]int{}
	for _, it := range items {
		if it.ProductID.IsZero() {
			return nil, fmt.Errorf("%w: productId is required", ErrInvalidRequest)
		}
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += qty
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, Item{ProductID: it.ProductID, Quantity: qty})
	}
	return merged, nil
}
