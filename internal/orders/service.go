package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/payments"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/transaction"
	"boxoffice/internal/shared/utils/validation"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"gorm.io/gorm"
)

// ActorWebhook is the actor recorded for confirmations driven by the charge authority
const ActorWebhook = "system:webhook"

type Service interface {
	CreateOrder(ctx context.Context, holder access.Holder, req CreateOrderRequest, idempotencyKey string) (*OrderResponse, bool, error)
	GetOrder(ctx context.Context, holder access.Holder, orderID string) (*OrderResponse, error)
	ConfirmPayment(ctx context.Context, holder access.Holder, orderID string, req ConfirmPaymentRequest) (*OrderResponse, error)
	ConfirmPaymentSystem(ctx context.Context, orderID uuid.UUID, paymentReference string) (*OrderResponse, error)
	CancelOrder(ctx context.Context, holder access.Holder, orderID string) (*OrderResponse, error)
	ScanTicket(ctx context.Context, req ScanTicketRequest, actor string) (*ScanResponse, error)
}

type service struct {
	db           *gorm.DB
	repo         Repository
	reservations reservations.Service
	system       reservations.SystemService
	guard        *inventory.Guard
	authority    payments.Authority
	intents      payments.Repository
	clock        clock.Clock
	sink         audit.Sink
	cfg          config.BookingConfig
}

func NewService(
	db *gorm.DB,
	repo Repository,
	reservationService reservations.Service,
	system reservations.SystemService,
	guard *inventory.Guard,
	authority payments.Authority,
	intents payments.Repository,
	clk clock.Clock,
	sink audit.Sink,
	cfg config.BookingConfig,
) Service {
	return &service{
		db:           db,
		repo:         repo,
		reservations: reservationService,
		system:       system,
		guard:        guard,
		authority:    authority,
		intents:      intents,
		clock:        clk,
		sink:         sink,
		cfg:          cfg,
	}
}

var (
	errSeatsLost   = errors.New("seats are no longer held by the reservation")
	errAlreadyPaid = errors.New("order was paid concurrently")
)

// CreateOrder returns the order and whether it was created by this call.
func (s *service) CreateOrder(ctx context.Context, holder access.Holder, req CreateOrderRequest, key string) (*OrderResponse, bool, error) {
	if !holder.Valid() {
		return nil, false, apperrors.Validation("holder", "a user or session is required")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	if key == "" && s.cfg.RequireIdempotencyKey {
		return nil, false, apperrors.Validation("idempotency_key", "an Idempotency-Key is required")
	}
	if key != "" && !validation.ValidIdempotencyKey(key) {
		return nil, false, apperrors.Validation("idempotency_key", "must be 8-255 printable characters without spaces")
	}

	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, false, apperrors.Storage("find order", err)
		}
		if existing != nil {
			replay, err := s.replay(holder, existing, key, req.ReservationToken)
			return replay, false, err
		}
	}

	checkout, err := s.reservations.CheckoutReservation(ctx, holder, req.ReservationToken)
	if err != nil {
		return nil, false, err
	}
	reservation := checkout.Reservation

	live, err := s.repo.FindLiveByReservation(ctx, reservation.ID)
	if err != nil {
		return nil, false, apperrors.Storage("find order", err)
	}
	if live != nil {
		return live.ToResponse(), false, nil
	}

	order, err := s.buildOrder(holder, checkout, req, key)
	if err != nil {
		return nil, false, err
	}

	err = transaction.Run(ctx, s.db, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, order); err != nil {
			return err
		}
		audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityOrder, order.ID, audit.ActionOrderCreated, holder.Key(),
			map[string]interface{}{
				"reservation_id":     reservation.ID.String(),
				"total_amount_cents": order.TotalAmountCents,
				"currency":           order.Currency,
				"seats":              len(order.Items),
			}))
		return nil
	})
	if err != nil {
		if !transaction.IsUniqueViolation(err) {
			return nil, false, apperrors.Storage("create order", err)
		}
		return s.afterLostRace(ctx, holder, reservation.ID, key, req.ReservationToken, err)
	}

	logger.GetDefault().LogOrderCreated(ctx, order.ID.String(), reservation.ID.String(), order.TotalAmountCents)
	return order.ToResponse(), true, nil
}

// replay answers a repeated key: the stored order when it was made from the
// same reservation by the same holder, a conflict otherwise
func (s *service) replay(holder access.Holder, existing *TicketOrder, key, token string) (*OrderResponse, error) {
	if !holder.Owns(existing.HolderKey) {
		return nil, &apperrors.IdempotencyConflictError{Key: key}
	}
	if existing.ReservationToken != token {
		return nil, &apperrors.IdempotencyConflictError{Key: key, OrderID: existing.ID}
	}
	return existing.ToResponse(), nil
}

// afterLostRace re-reads the order a concurrent request stored first
func (s *service) afterLostRace(ctx context.Context, holder access.Holder, reservationID uuid.UUID, key, token string, cause error) (*OrderResponse, bool, error) {
	if key != "" {
		byKey, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, false, apperrors.Storage("find order", err)
		}
		if byKey != nil {
			replay, err := s.replay(holder, byKey, key, token)
			return replay, false, err
		}
	}

	live, err := s.repo.FindLiveByReservation(ctx, reservationID)
	if err != nil {
		return nil, false, apperrors.Storage("find order", err)
	}
	if live == nil {
		return nil, false, apperrors.Storage("create order", cause)
	}
	return live.ToResponse(), false, nil
}

func (s *service) buildOrder(holder access.Holder, checkout *reservations.Checkout, req CreateOrderRequest, key string) (*TicketOrder, error) {
	reservation := checkout.Reservation

	ref, err := generateOrderReference(s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("generate order reference: %w", err)
	}

	order := &TicketOrder{
		ID:               uuid.New(),
		OrderRef:         ref,
		ReservationID:    reservation.ID,
		ReservationToken: reservation.Token,
		ShowID:           reservation.ShowID,
		HolderKey:        holder.Key(),
		UserID:           holder.UserID,
		Status:           StatusPending,
		Currency:         s.cfg.Currency,
		CustomerName:     firstNonEmpty(req.CustomerName, reservation.ContactName),
		CustomerEmail:    firstNonEmpty(req.CustomerEmail, reservation.ContactEmail),
		CustomerPhone:    firstNonEmpty(req.CustomerPhone, reservation.ContactPhone),
	}
	if key != "" {
		order.IdempotencyKey = &key
	}

	for i := range checkout.Seats {
		seat := &checkout.Seats[i]
		order.TotalAmountCents += seat.PriceCents
		order.Items = append(order.Items, OrderItem{
			ShowSeatID: seat.ID,
			SeatLabel:  seat.Label(),
			PriceCents: seat.PriceCents,
		})
		order.Tickets = append(order.Tickets, Ticket{
			ShowSeatID: seat.ID,
			SeatLabel:  seat.Label(),
			Status:     TicketStatusPending,
		})
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, holder access.Holder, rawID string) (*OrderResponse, error) {
	order, err := s.ownedOrder(ctx, holder, rawID)
	if err != nil {
		return nil, err
	}
	return order.ToResponse(), nil
}

func (s *service) ownedOrder(ctx context.Context, holder access.Holder, rawID string) (*TicketOrder, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Validation("order_id", "invalid order ID")
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !holder.Owns(order.HolderKey) {
		return nil, &apperrors.ForbiddenError{Resource: "order"}
	}
	return order, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*TicketOrder, error) {
	order, err := s.repo.GetByID(ctx, id)
	if transaction.IsNotFound(err) {
		return nil, apperrors.NotFound("order", id.String())
	}
	if err != nil {
		return nil, apperrors.Storage("get order", err)
	}
	return order, nil
}

// PAYMENT CONFIRMATION

func (s *service) ConfirmPayment(ctx context.Context, holder access.Holder, rawID string, req ConfirmPaymentRequest) (*OrderResponse, error) {
	order, err := s.ownedOrder(ctx, holder, rawID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, order, req.PaymentReference, holder.Key())
}

func (s *service) ConfirmPaymentSystem(ctx context.Context, orderID uuid.UUID, paymentReference string) (*OrderResponse, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.confirm(ctx, order, paymentReference, ActorWebhook)
}

// confirm verifies the payment with the charge authority, outside any
// transaction, then finalizes the order in one short transaction.
func (s *service) confirm(ctx context.Context, order *TicketOrder, ref, actor string) (*OrderResponse, error) {
	switch order.Status {
	case StatusPaid:
		return order.ToResponse(), nil
	case StatusPending, StatusCancelled:
	default:
		return nil, &apperrors.OrderStateError{OrderID: order.ID, Status: order.Status.String()}
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		if order.PaymentIntentID == nil {
			return nil, apperrors.Validation("payment_reference", "no payment has been started for this order")
		}
		ref = *order.PaymentIntentID
	}

	intent, err := s.authority.RetrieveIntent(ctx, ref)
	if errors.Is(err, payments.ErrIntentNotFound) {
		return nil, &apperrors.PaymentError{OrderID: order.ID, Reason: "unknown payment reference", BadReference: true}
	}
	if err != nil {
		return nil, err
	}
	if intent.OrderID() != order.ID.String() || (order.PaymentIntentID != nil && *order.PaymentIntentID != intent.ID) {
		return nil, &apperrors.PaymentError{OrderID: order.ID, Reason: "payment reference belongs to another order", BadReference: true}
	}

	// A cancelled order never takes its seats, so a captured payment goes back
	if order.Status == StatusCancelled {
		if intent.Status == payments.IntentSucceeded {
			return nil, s.refundLost(ctx, order, intent, actor)
		}
		return nil, &apperrors.OrderStateError{OrderID: order.ID, Status: order.Status.String()}
	}

	if intent.Status.Terminal() {
		return nil, s.fail(ctx, order, intent, actor)
	}
	if intent.Status != payments.IntentSucceeded {
		logger.GetDefault().LogPaymentRejected(ctx, order.ID.String(), "intent "+string(intent.Status), false)
		return nil, &apperrors.PaymentError{OrderID: order.ID, Reason: "payment is " + string(intent.Status)}
	}
	if intent.AmountReceivedCents != order.TotalAmountCents || !strings.EqualFold(intent.Currency, order.Currency) {
		reason := fmt.Sprintf("amount mismatch: received %d %s, expected %d %s",
			intent.AmountReceivedCents, strings.ToUpper(intent.Currency), order.TotalAmountCents, order.Currency)
		logger.GetDefault().LogPaymentRejected(ctx, order.ID.String(), reason, false)
		return nil, &apperrors.PaymentError{OrderID: order.ID, Reason: reason}
	}

	return s.finalize(ctx, order, intent, actor)
}

// finalize takes the reservation row first, then the order, then the seats
func (s *service) finalize(ctx context.Context, order *TicketOrder, intent *payments.Intent, actor string) (*OrderResponse, error) {
	now := s.clock.Now()
	var issued int

	err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
		completed, err := s.system.CompleteCheckout(ctx, order.ReservationID, actor)
		if err != nil {
			return err
		}
		if !completed {
			return s.whyNotCompleted(ctx, order.ID)
		}

		paid, err := s.repo.Transition(ctx, order.ID, []Status{StatusPending}, StatusPaid, map[string]interface{}{
			"payment_reference": intent.ID,
			"paid_at":           now,
			"updated_at":        now,
		})
		if err != nil {
			return apperrors.Storage("mark order paid", err)
		}
		if !paid {
			return s.whyNotCompleted(ctx, order.ID)
		}

		if err := s.guard.MarkSold(ctx, order.ShowID, order.ReservationID, order.SeatIDs(), order.ID); err != nil {
			var unavailable *apperrors.SeatsUnavailableError
			if errors.As(err, &unavailable) {
				return errSeatsLost
			}
			return err
		}

		issued, err = s.repo.IssueTickets(ctx, order.ID, newScanCode, now)
		if err != nil {
			return apperrors.Storage("issue tickets", err)
		}
		if err := s.intents.UpdateStatus(ctx, intent.ID, payments.IntentSucceeded); err != nil {
			return apperrors.Storage("update payment intent", err)
		}

		audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityOrder, order.ID, audit.ActionOrderPaid, actor,
			map[string]interface{}{
				"payment_reference": intent.ID,
				"amount_cents":      intent.AmountReceivedCents,
				"tickets":           issued,
			}))
		return nil
	})

	switch {
	case errors.Is(err, errAlreadyPaid):
		paid, loadErr := s.load(ctx, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		return paid.ToResponse(), nil
	case errors.Is(err, errSeatsLost):
		return nil, s.refundLost(ctx, order, intent, actor)
	case err != nil:
		return nil, err
	}

	logger.GetDefault().LogOrderPaid(ctx, order.ID.String(), intent.ID, issued)
	return s.reload(ctx, order.ID)
}

// whyNotCompleted tells a concurrent confirmation apart from lost seats
func (s *service) whyNotCompleted(ctx context.Context, orderID uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return apperrors.Storage("get order", err)
	}
	switch current.Status {
	case StatusPaid:
		return errAlreadyPaid
	case StatusPending, StatusCancelled:
		return errSeatsLost
	}
	return &apperrors.OrderStateError{OrderID: orderID, Status: current.Status.String()}
}

// reload loads the current state of an order without holder scope
func (s *service) reload(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return order.ToResponse(), nil
}

// refundLost returns a captured payment whose seats went back on sale. The
// refund key is derived from the order, so retries never refund twice.
func (s *service) refundLost(ctx context.Context, order *TicketOrder, intent *payments.Intent, actor string) error {
	refund, err := s.authority.Refund(ctx, intent.ID, intent.AmountReceivedCents, "refund_"+order.ID.String())
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = transaction.Run(ctx, s.db, func(ctx context.Context) error {
		changed, err := s.repo.Transition(ctx, order.ID, []Status{StatusPending, StatusCancelled}, StatusRefunded, map[string]interface{}{
			"payment_reference": intent.ID,
			"failure_reason":    "seats were released before payment completed",
			"updated_at":        now,
		})
		if err != nil {
			return apperrors.Storage("mark order refunded", err)
		}
		if !changed {
			return nil
		}
		if _, err := s.repo.VoidTickets(ctx, order.ID, now); err != nil {
			return apperrors.Storage("void tickets", err)
		}
		audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityOrder, order.ID, audit.ActionOrderRefunded, actor,
			map[string]interface{}{
				"payment_reference": intent.ID,
				"refund_id":         refund.ID,
				"amount_cents":      refund.AmountCents,
			}))
		return nil
	})
	if err != nil {
		return err
	}

	logger.GetDefault().LogPaymentRejected(ctx, order.ID.String(), "refunded: seats no longer reserved", true)
	return &apperrors.ReservationExpiredError{Token: order.ReservationToken}
}

// fail records a terminal decline. The seats stay with the reservation.
func (s *service) fail(ctx context.Context, order *TicketOrder, intent *payments.Intent, actor string) error {
	reason := intent.LastError
	if reason == "" {
		reason = "payment " + string(intent.Status)
	}
	now := s.clock.Now()

	err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
		changed, err := s.repo.Transition(ctx, order.ID, []Status{StatusPending}, StatusFailed, map[string]interface{}{
			"failure_reason": reason,
			"updated_at":     now,
		})
		if err != nil {
			return apperrors.Storage("mark order failed", err)
		}
		if !changed {
			return nil
		}
		if _, err := s.repo.VoidTickets(ctx, order.ID, now); err != nil {
			return apperrors.Storage("void tickets", err)
		}
		if err := s.intents.UpdateStatus(ctx, intent.ID, intent.Status); err != nil {
			return apperrors.Storage("update payment intent", err)
		}
		audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityOrder, order.ID, audit.ActionOrderFailed, actor,
			map[string]interface{}{"reason": reason}))
		return nil
	})
	if err != nil {
		return err
	}

	logger.GetDefault().LogPaymentRejected(ctx, order.ID.String(), reason, true)
	return &apperrors.PaymentError{OrderID: order.ID, Reason: reason, Terminal: true}
}

// CANCELLATION

func (s *service) CancelOrder(ctx context.Context, holder access.Holder, rawID string) (*OrderResponse, error) {
	order, err := s.ownedOrder(ctx, holder, rawID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return order.ToResponse(), nil
	}
	if !order.Status.CanBeCancelled() {
		return nil, &apperrors.OrderStateError{OrderID: order.ID, Status: order.Status.String()}
	}

	err = transaction.Run(ctx, s.db, func(ctx context.Context) error {
		return cancelPending(ctx, s.repo, s.sink, order.ID, "cancelled by customer", holder.Key(), s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, order.ID)
}

// cancelPending moves a pending order to cancelled and voids its tickets.
// Seats stay with the reservation.
func cancelPending(ctx context.Context, repo Repository, sink audit.Sink, orderID uuid.UUID, reason, actor string, now time.Time) error {
	changed, err := repo.Transition(ctx, orderID, []Status{StatusPending}, StatusCancelled, map[string]interface{}{
		"failure_reason": reason,
		"cancelled_at":   now,
		"updated_at":     now,
	})
	if err != nil {
		return apperrors.Storage("cancel order", err)
	}
	if !changed {
		current, err := repo.GetByID(ctx, orderID)
		if err != nil {
			return apperrors.Storage("get order", err)
		}
		if current.Status == StatusCancelled {
			return nil
		}
		return &apperrors.OrderStateError{OrderID: orderID, Status: current.Status.String()}
	}

	if _, err := repo.VoidTickets(ctx, orderID, now); err != nil {
		return apperrors.Storage("void tickets", err)
	}
	audit.Emit(ctx, sink, audit.NewEntry(audit.EntityOrder, orderID, audit.ActionOrderCancelled, actor,
		map[string]interface{}{"reason": reason}))
	return nil
}

// TICKETS

func (s *service) ScanTicket(ctx context.Context, req ScanTicketRequest, actor string) (*ScanResponse, error) {
	code := strings.TrimSpace(req.ScanCode)
	if code == "" {
		return nil, apperrors.Validation("scan_code", "scan code is required")
	}

	ticket, err := s.repo.FindTicketByScanCode(ctx, code)
	if err != nil {
		return nil, apperrors.Storage("find ticket", err)
	}
	if ticket == nil {
		return nil, apperrors.NotFound("ticket", code)
	}
	if ticket.Status != TicketStatusIssued {
		return nil, &apperrors.OrderStateError{OrderID: ticket.OrderID, Status: "ticket " + string(ticket.Status)}
	}

	now := s.clock.Now()
	scanned, err := s.repo.MarkScanned(ctx, ticket.ID, actor, now)
	if err != nil {
		return nil, apperrors.Storage("scan ticket", err)
	}
	if !scanned {
		return nil, &TicketScannedError{TicketID: ticket.ID, ScannedAt: ticket.ScannedAt}
	}

	ticket.ScannedAt = &now
	ticket.ScannedBy = actor
	return &ScanResponse{Ticket: ticket.ToResponse(), OrderID: ticket.OrderID.String()}, nil
}

func newScanCode() string {
	return "TKT-" + shortuuid.New()
}

// generateOrderReference generates a human readable order reference
func generateOrderReference(now time.Time) (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	randomPart := make([]byte, 8)

	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("BOX-%s-%s", now.Format("20060102"), string(randomPart)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
