package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/transaction"
	"boxoffice/internal/shared/utils/validation"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
)

// OrderSnapshot is what the payment layer needs to know about an order
type OrderSnapshot struct {
	ID         uuid.UUID
	Status     string
	TotalCents int64
	Currency   string
}

// OrderSource gives holder-scoped access to orders (to avoid circular dependency)
type OrderSource interface {
	OrderForPayment(ctx context.Context, holder access.Holder, orderID uuid.UUID) (*OrderSnapshot, error)
	AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, providerIntentID string) error
}

// Confirmer finalizes an order once the charge authority reports success
type Confirmer interface {
	ConfirmFromWebhook(ctx context.Context, orderID uuid.UUID, providerIntentID string) error
}

// Service maps idempotency keys and orders to at most one intent each
type Service interface {
	CreateIntent(ctx context.Context, holder access.Holder, orderID, idempotencyKey string) (*IntentResponse, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
}

type service struct {
	repo         Repository
	authority    Authority
	orders       OrderSource
	confirmer    Confirmer
	cacheService cache.Service
	sink         audit.Sink
	clock        clock.Clock

	requireKey bool
	payment    config.PaymentConfig
	eventTTL   time.Duration
}

// NewService creates the payment service. cacheService may be nil, in which
// case webhook deliveries are not de-duplicated before confirmation.
func NewService(
	repo Repository,
	authority Authority,
	orders OrderSource,
	confirmer Confirmer,
	cacheService cache.Service,
	sink audit.Sink,
	clk clock.Clock,
	cfg *config.Config,
) Service {
	eventTTL := cfg.Redis.WebhookEventTTL
	if eventTTL <= 0 {
		eventTTL = constants.TTL_WEBHOOK_EVENT
	}
	return &service{
		repo:         repo,
		authority:    authority,
		orders:       orders,
		confirmer:    confirmer,
		cacheService: cacheService,
		sink:         sink,
		clock:        clk,
		requireKey:   cfg.Booking.RequireIdempotencyKey,
		payment:      cfg.Payment,
		eventTTL:     eventTTL,
	}
}

func (s *service) CreateIntent(ctx context.Context, holder access.Holder, rawOrderID, key string) (*IntentResponse, error) {
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return nil, apperrors.Validation("order_id", "invalid order ID")
	}

	key = strings.TrimSpace(key)
	if key == "" && s.requireKey {
		return nil, apperrors.Validation("idempotency_key", "an "+IdempotencyHeader+" is required")
	}
	if key != "" && !validation.ValidIdempotencyKey(key) {
		return nil, apperrors.Validation("idempotency_key", "must be 8-255 printable characters without spaces")
	}

	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, apperrors.Storage("find payment intent", err)
		}
		if existing != nil && existing.OrderID != orderID {
			return nil, &apperrors.IdempotencyConflictError{Key: key, OrderID: existing.OrderID}
		}
	}

	order, err := s.orders.OrderForPayment(ctx, holder, orderID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage("find payment intent", err)
	}
	if existing != nil {
		return s.reuse(ctx, existing, key)
	}

	if order.Status != "pending" {
		return nil, &apperrors.OrderStateError{OrderID: orderID, Status: order.Status}
	}

	// Derived from the order so concurrent creators get the same intent upstream
	intent, err := s.authority.CreateIntent(ctx, CreateIntentParams{
		AmountCents:    order.TotalCents,
		Currency:       order.Currency,
		OrderID:        orderID.String(),
		IdempotencyKey: "order_" + orderID.String(),
	})
	if err != nil {
		return nil, err
	}

	record := &PaymentIntent{
		OrderID:          orderID,
		ProviderIntentID: intent.ID,
		ClientSecret:     intent.ClientSecret,
		AmountCents:      intent.AmountCents,
		Currency:         intent.Currency,
		Status:           intent.Status,
	}
	if key != "" {
		record.IdempotencyKey = &key
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if !transaction.IsUniqueViolation(err) {
			return nil, apperrors.Storage("create payment intent", err)
		}
		return s.afterLostRace(ctx, orderID, key, err)
	}

	if err := s.orders.AttachPaymentIntent(ctx, orderID, intent.ID); err != nil {
		return nil, apperrors.Storage("attach payment intent", err)
	}

	audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityPayment, record.ID, audit.ActionPaymentIntentCreated, holder.Key(),
		map[string]interface{}{
			"order_id":     orderID.String(),
			"intent_id":    intent.ID,
			"amount_cents": intent.AmountCents,
			"currency":     intent.Currency,
		}))
	return record.ToResponse(), nil
}

// afterLostRace re-reads the row a concurrent first use stored
func (s *service) afterLostRace(ctx context.Context, orderID uuid.UUID, key string, cause error) (*IntentResponse, error) {
	if key != "" {
		byKey, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, apperrors.Storage("find payment intent", err)
		}
		if byKey != nil {
			if byKey.OrderID != orderID {
				return nil, &apperrors.IdempotencyConflictError{Key: key, OrderID: byKey.OrderID}
			}
			return byKey.ToResponse(), nil
		}
	}

	byOrder, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage("find payment intent", err)
	}
	if byOrder == nil {
		return nil, apperrors.Storage("create payment intent", cause)
	}
	return s.reuse(ctx, byOrder, key)
}

// reuse returns the order's intent, claiming key for it when it has none
func (s *service) reuse(ctx context.Context, existing *PaymentIntent, key string) (*IntentResponse, error) {
	if key == "" || existing.IdempotencyKey != nil {
		return existing.ToResponse(), nil
	}

	claimed, err := s.repo.ClaimKey(ctx, existing.ID, key)
	if err != nil {
		if transaction.IsUniqueViolation(err) {
			if owner, findErr := s.repo.FindByIdempotencyKey(ctx, key); findErr == nil && owner != nil && owner.OrderID != existing.OrderID {
				return nil, &apperrors.IdempotencyConflictError{Key: key, OrderID: owner.OrderID}
			}
		}
		return nil, apperrors.Storage("claim idempotency key", err)
	}
	if claimed {
		existing.IdempotencyKey = &key
	}
	return existing.ToResponse(), nil
}

// WEBHOOK

func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if err := VerifySignature(s.payment.WebhookSecret, signature, body, s.clock.Now(), s.payment.WebhookTolerance); err != nil {
		return nil, &apperrors.ValidationError{Field: SignatureHeader, Reason: "invalid_signature", Message: err.Error()}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		return nil, apperrors.Validation("body", "malformed webhook event")
	}

	result := &WebhookResult{EventID: event.ID}
	if event.Type != EventIntentSucceeded {
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	if s.cacheService != nil {
		first, err := s.cacheService.SetIfAbsent(ctx, constants.BuildWebhookEventKey(event.ID), s.clock.Now().Unix(), s.eventTTL)
		switch {
		case err != nil:
			logger.GetDefault().WarnContext(ctx, "webhook de-duplication unavailable", "event_id", event.ID, "error", err)
		case !first:
			result.Outcome = OutcomeDuplicate
			return result, nil
		}
	}

	intent, err := s.repo.FindByProviderID(ctx, event.Data.IntentID)
	if err != nil {
		s.forget(ctx, event.ID)
		return nil, apperrors.Storage("find payment intent", err)
	}
	if intent == nil {
		logger.GetDefault().WarnContext(ctx, "webhook for unknown intent", "event_id", event.ID, "intent_id", event.Data.IntentID)
		result.Outcome = OutcomeIgnored
		result.Reason = "unknown intent"
		return result, nil
	}

	if err := s.confirmer.ConfirmFromWebhook(ctx, intent.OrderID, intent.ProviderIntentID); err != nil {
		if !acknowledged(err) {
			s.forget(ctx, event.ID)
			return nil, err
		}
		result.Outcome = OutcomeRejected
		result.Reason = err.Error()
		return result, nil
	}

	result.Outcome = OutcomeConfirmed
	return result, nil
}

// acknowledged reports whether a confirmation failure is final, so the
// authority should stop retrying the delivery
func acknowledged(err error) bool {
	var (
		paymentErr  *apperrors.PaymentError
		expiredErr  *apperrors.ReservationExpiredError
		stateErr    *apperrors.OrderStateError
		notFoundErr *apperrors.NotFoundError
	)
	return errors.As(err, &paymentErr) ||
		errors.As(err, &expiredErr) ||
		errors.As(err, &stateErr) ||
		errors.As(err, &notFoundErr)
}

// forget drops the de-duplication marker so a retried delivery is processed
func (s *service) forget(ctx context.Context, eventID string) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildWebhookEventKey(eventID)); err != nil {
		logger.GetDefault().WarnContext(ctx, "failed to clear webhook marker", "event_id", eventID, "error", err)
	}
}
