package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"digitalcart/internal/models"
	"digitalcart/internal/money"
)

var (
	ErrGatewayDisabled  = errors.New("payment gateway is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

type Intent struct {
	ID           string
	ClientSecret string
}

// Event is the provider-neutral view of a webhook callback.
type Event struct {
	Type      string
	PaymentID string
	OrderID   string
}

type Gateway interface {
	CreatePayment(ctx context.Context, order models.Order) (Intent, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewGateway returns a Stripe gateway, or a disabled one without a key.
func NewGateway(secretKey, webhookSecret string) Gateway {
	if strings.TrimSpace(secretKey) == "" {
		log.Println("[PAYMENTS] [WARN] STRIPE_SECRET_KEY not set, paid checkouts are disabled")
		return Disabled{}
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreatePayment(ctx context.Context, order models.Order) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(money.ToMinor(decimal.NewFromFloat(order.Total), order.Currency)),
		Currency: stripe.String(strings.ToLower(order.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		ReceiptEmail: stripe.String(order.Email),
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.Hex())
	params.AddMetadata("seller_id", order.SellerID.Hex())
	params.SetIdempotencyKey("order-" + order.ID.Hex())

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe PaymentIntents.New: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signature string) (Event, error) {
	var (
		event stripe.Event
		err   error
	)
	if g.webhookSecret != "" {
		event, err = webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (Event, error) {
	out := Event{Type: string(event.Type)}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentID = pi.ID
		out.OrderID = pi.Metadata["order_id"]
	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return Event{}, fmt.Errorf("decode charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			out.PaymentID = charge.PaymentIntent.ID
		}
		out.OrderID = charge.Metadata["order_id"]
	}
	return out, nil
}

// Disabled answers every payment with ErrGatewayDisabled.
type Disabled struct{}

func (Disabled) CreatePayment(context.Context, models.Order) (Intent, error) {
	return Intent{}, ErrGatewayDisabled
}

func (Disabled) ParseEvent([]byte, string) (Event, error) {
	return Event{}, ErrGatewayDisabled
}
