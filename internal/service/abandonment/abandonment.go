package abandonment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"digitalcart/internal/events"
	"digitalcart/internal/mailer"
	"digitalcart/internal/models"
	"digitalcart/internal/port"
	"digitalcart/internal/store"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrInvalidCart     = errors.New("invalid cart")
	ErrCartTaken       = errors.New("cart id belongs to another seller")
	ErrInvalidSequence = errors.New("invalid sequence")
)

// DefaultMinGap is the minimum time between two emails to the same cart.
const DefaultMinGap = 60 * time.Minute

// DefaultSequence is used by sellers that never saved their own.
func DefaultSequence() []models.SequenceStep {
	return []models.SequenceStep{
		{DelayMinutes: 60, Subject: "You left something in your cart"},
		{DelayMinutes: 24 * 60, Subject: "Still interested? Here is 10% off", CouponCode: "COMEBACK10", DiscountPercent: 10},
		{DelayMinutes: 72 * 60, Subject: "Last chance: 15% off your cart", CouponCode: "LASTCHANCE15", DiscountPercent: 15},
	}
}

type Service struct {
	carts     port.CartRepository
	sequences port.SequenceRepository
	templates port.TemplateRepository
	sender    mailer.Sender
	publisher events.Publisher
	minGap    time.Duration
	now       func() time.Time
}

func NewService(
	carts port.CartRepository,
	sequences port.SequenceRepository,
	templates port.TemplateRepository,
	sender mailer.Sender,
	publisher events.Publisher,
	minGap time.Duration,
) *Service {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Service{
		carts:     carts,
		sequences: sequences,
		templates: templates,
		sender:    sender,
		publisher: publisher,
		minGap:    minGap,
		now:       time.Now,
	}
}

// Track records a cart snapshot. Re-tracking keeps the sequence position.
func (s *Service) Track(ctx context.Context, cart models.AbandonedCart) (models.AbandonedCart, error) {
	cart.ID = strings.TrimSpace(cart.ID)
	if cart.ID == "" {
		return models.AbandonedCart{}, fmt.Errorf("%w: id is required", ErrInvalidCart)
	}
	if cart.SellerID.IsZero() {
		return models.AbandonedCart{}, fmt.Errorf("%w: sellerId is required", ErrInvalidCart)
	}
	cart.Email = strings.ToLower(strings.TrimSpace(cart.Email))

	tracked, err := s.carts.TrackCart(ctx, cart, s.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		return models.AbandonedCart{}, ErrCartTaken
	}
	return tracked, err
}

func (s *Service) MarkRecovered(ctx context.Context, cartID string) error {
	err := s.carts.MarkCartRecovered(ctx, cartID, s.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return ErrCartNotFound
	}
	if err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, events.TopicCartRecovered, cartID, map[string]string{"cartId": cartID}); err != nil {
		log.Println("[ABANDONMENT] [WARN] publish recovered event failed:", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, sellerID primitive.ObjectID) ([]models.AbandonedCart, models.CartStats, error) {
	carts, err := s.carts.ListCarts(ctx, sellerID)
	if err != nil {
		return nil, models.CartStats{}, err
	}
	return carts, Stats(carts), nil
}

// Stats aggregates a seller's carts. RecoveryRate is a percentage with two
// decimals.
func Stats(carts []models.AbandonedCart) models.CartStats {
	stats := models.CartStats{Total: len(carts)}
	for _, c := range carts {
		if c.Recovered {
			stats.Recovered++
		} else {
			stats.Active++
		}
		stats.EmailsSent += c.EmailsSent
	}
	if stats.Total > 0 {
		rate := decimal.NewFromInt(int64(stats.Recovered)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.Total))).
			Round(2)
		stats.RecoveryRate, _ = rate.Float64()
	}
	return stats
}

// Sequence returns the seller's steps, falling back to the shared default
// and then to DefaultSequence.
func (s *Service) Sequence(ctx context.Context, sellerID primitive.ObjectID) ([]models.SequenceStep, error) {
	for _, key := range []string{sellerID.Hex(), models.DefaultSequenceKey} {
		seq, err := s.sequences.GetSequence(ctx, key)
		if err == nil && len(seq.Steps) > 0 {
			return seq.Steps, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return DefaultSequence(), nil
}

// SaveSequence replaces the seller's sequence. Steps are stored sorted by
// delay.
func (s *Service) SaveSequence(ctx context.Context, sellerID primitive.ObjectID, steps []models.SequenceStep) (models.EmailSequence, error) {
	if len(steps) == 0 {
		return models.EmailSequence{}, fmt.Errorf("%w: at least one step is required", ErrInvalidSequence)
	}
	for i, step := range steps {
		if step.DelayMinutes < 0 {
			return models.EmailSequence{}, fmt.Errorf("%w: step %d has a negative delay", ErrInvalidSequence, i)
		}
		if strings.TrimSpace(step.Subject) == "" {
			return models.EmailSequence{}, fmt.Errorf("%w: step %d has no subject", ErrInvalidSequence, i)
		}
		if step.DiscountPercent < 0 || step.DiscountPercent > 100 {
			return models.EmailSequence{}, fmt.Errorf("%w: step %d discount out of range", ErrInvalidSequence, i)
		}
	}

	sorted := append([]models.SequenceStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DelayMinutes < sorted[j].DelayMinutes })

	seq := models.EmailSequence{
		Key:       sellerID.Hex(),
		Steps:     sorted,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.sequences.PutSequence(ctx, seq); err != nil {
		return models.EmailSequence{}, err
	}
	return seq, nil
}

// NextStep returns the index of the step due for the cart at now, if any.
// Only the step at EmailsSent is considered: steps are sorted, so a later
// step cannot be due while an earlier one is not.
func NextStep(cart models.AbandonedCart, steps []models.SequenceStep, now time.Time, minGap time.Duration) (int, bool) {
	if cart.Recovered || cart.Email == "" {
		return 0, false
	}
	if cart.EmailsSent < 0 || cart.EmailsSent >= len(steps) {
		return 0, false
	}
	if cart.LastEmailSent != nil && now.Sub(*cart.LastEmailSent) < minGap {
		return 0, false
	}

	age := now.Sub(cart.CreatedAt)
	step := steps[cart.EmailsSent]
	if age < time.Duration(step.DelayMinutes)*time.Minute {
		return 0, false
	}
	return cart.EmailsSent, true
}

// ProcessOnce sends at most one due email per pending cart and returns how
// many steps were claimed. A claim is made before sending, so a failed send
// is not retried.
func (s *Service) ProcessOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()

	carts, err := s.carts.ListPendingCarts(ctx, now)
	if err != nil {
		return 0, err
	}

	sequences := map[primitive.ObjectID][]models.SequenceStep{}
	claimed := 0
	for _, cart := range carts {
		if err := ctx.Err(); err != nil {
			return claimed, err
		}

		steps, ok := sequences[cart.SellerID]
		if !ok {
			steps, err = s.Sequence(ctx, cart.SellerID)
			if err != nil {
				log.Printf("[ABANDONMENT] [ERROR] load sequence for seller %s: %v", cart.SellerID.Hex(), err)
				continue
			}
			sequences[cart.SellerID] = steps
		}

		idx, due := NextStep(cart, steps, now, s.minGap)
		if !due {
			continue
		}

		won, err := s.carts.ClaimCartStep(ctx, cart.ID, cart.EmailsSent, now.Add(-s.minGap), now)
		if err != nil {
			log.Printf("[ABANDONMENT] [ERROR] claim cart %s: %v", cart.ID, err)
			continue
		}
		if !won {
			continue
		}
		claimed++

		if err := s.send(ctx, cart, steps[idx], idx); err != nil {
			log.Printf("[ABANDONMENT] [ERROR] step %d for cart %s not delivered: %v", idx, cart.ID, err)
			continue
		}
		log.Printf("[ABANDONMENT] [INFO] sent step %d to cart %s", idx, cart.ID)
	}
	return claimed, nil
}

func (s *Service) send(ctx context.Context, cart models.AbandonedCart, step models.SequenceStep, idx int) error {
	var custom *models.EmailTemplate
	tpl, err := s.templates.GetTemplateByKind(ctx, cart.SellerID, models.TemplateCartAbandonment)
	switch {
	case err == nil:
		custom = &tpl
	case !errors.Is(err, store.ErrNotFound):
		log.Printf("[ABANDONMENT] [WARN] template lookup for seller %s failed, using built-in: %v", cart.SellerID.Hex(), err)
	}

	msg, err := mailer.Compose(models.TemplateCartAbandonment, custom, cart.Email, mailer.CartEmail{
		Subject:         step.Subject,
		CustomerName:    cart.Name,
		ProductName:     cart.Product.Name,
		ProductPrice:    decimal.NewFromFloat(cart.Product.Price).StringFixed(2),
		CheckoutURL:     cart.CheckoutURL,
		CouponCode:      step.CouponCode,
		DiscountPercent: step.DiscountPercent,
		Step:            idx + 1,
	})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}
