package orders_test

import (
	"context"
	"testing"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const webhookSecret = "whsec_test"

type orderHarness struct {
	*testutil.BookingStack
	authority *payments.SandboxAuthority
	intents   payments.Repository
	repo      orders.Repository
	orders    orders.Service
	payments  payments.Service
}

func newOrderHarness(t *testing.T, opts testutil.ShowOptions, mutate func(*config.BookingConfig)) *orderHarness {
	t.Helper()

	stack := testutil.NewBookingStack(t, opts)
	cfg := testutil.BookingConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	h := &orderHarness{
		BookingStack: stack,
		authority:    payments.NewSandboxAuthority(),
		intents:      payments.NewRepository(stack.DB),
		repo:         orders.NewRepository(stack.DB),
	}
	stack.Listeners.Register(orders.NewReservationListener(h.repo, stack.Sink, stack.Clock))

	h.orders = orders.NewService(stack.DB, h.repo, stack.Reservations, stack.System, stack.Guard,
		h.authority, h.intents, stack.Clock, stack.Sink, cfg)
	adapter := orders.NewPaymentAdapter(h.orders, h.repo)
	h.payments = payments.NewService(h.intents, h.authority, adapter, adapter, nil, stack.Sink, stack.Clock, &config.Config{
		Booking: cfg,
		Payment: config.PaymentConfig{WebhookSecret: webhookSecret, WebhookTolerance: 5 * time.Minute},
	})
	return h
}

// checkout reserves n seats, creates the order and its payment intent
func (h *orderHarness) checkout(t *testing.T, holder access.Holder, n int) (*orders.OrderResponse, *payments.IntentResponse) {
	t.Helper()
	ctx := context.Background()

	reservation := h.Reserve(t, holder, n)
	order, created, err := h.orders.CreateOrder(ctx, holder, orders.CreateOrderRequest{
		ReservationToken: reservation.Token,
		CustomerName:     "Ada",
		CustomerEmail:    "ada@example.com",
	}, "")
	require.NoError(t, err)
	require.True(t, created)

	intent, err := h.payments.CreateIntent(ctx, holder, order.ID, "")
	require.NoError(t, err)
	return order, intent
}

func (h *orderHarness) seatStatuses(t *testing.T, n int) map[uuid.UUID]inventory.SeatStatus {
	t.Helper()
	return testutil.SeatStatuses(t, h.DB, h.Show.SeatIDs(n))
}

func (h *orderHarness) sweep(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	due, err := h.System.FindExpired(ctx, 100)
	require.NoError(t, err)
	for i := range due {
		_, err := h.System.Expire(ctx, &due[i])
		require.NoError(t, err)
	}
}

func TestCreateOrderTotalsSeatPrices(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 5, PriceCents: 1500}, nil)
	holder := access.SessionHolder("guest-1")
	ctx := context.Background()

	reservation := h.Reserve(t, holder, 3)
	req := orders.CreateOrderRequest{ReservationToken: reservation.Token}

	order, created, err := h.orders.CreateOrder(ctx, holder, req, "order-key-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, int64(4500), order.TotalAmountCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Len(t, order.Items, 3)
	require.Len(t, order.Tickets, 3)
	assert.Equal(t, orders.TicketStatusPending, order.Tickets[0].Status)
	assert.Empty(t, order.Tickets[0].ScanCode)

	for _, status := range h.seatStatuses(t, 3) {
		assert.Equal(t, inventory.SeatStatusReserved, status)
	}

	replay, created, err := h.orders.CreateOrder(ctx, holder, req, "order-key-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, order.ID, replay.ID)

	// Without a key the live order of the reservation comes back
	live, created, err := h.orders.CreateOrder(ctx, holder, req, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, order.ID, live.ID)

	assert.Equal(t, int64(1), h.CountAudit(t, order.ID, audit.ActionOrderCreated))
}

func TestCreateOrderKeyReusedForAnotherReservation(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 4}, nil)
	holder := access.SessionHolder("guest-1")
	ctx := context.Background()

	first := h.Reserve(t, holder, 2)
	order, _, err := h.orders.CreateOrder(ctx, holder, orders.CreateOrderRequest{ReservationToken: first.Token}, "shared-key-1")
	require.NoError(t, err)

	// Releasing the reservation cancels its pending order
	_, err = h.Reservations.Release(ctx, holder, first.Token)
	require.NoError(t, err)
	cancelled, err := h.orders.GetOrder(ctx, holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, orders.TicketStatusVoid, cancelled.Tickets[0].Status)

	second := h.Reserve(t, holder, 2)
	_, _, err = h.orders.CreateOrder(ctx, holder, orders.CreateOrderRequest{ReservationToken: second.Token}, "shared-key-1")
	var conflict *apperrors.IdempotencyConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, order.ID, conflict.OrderID.String())
}

func TestCreateOrderRequiresKeyWhenConfigured(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 2}, func(cfg *config.BookingConfig) {
		cfg.RequireIdempotencyKey = true
	})
	holder := access.SessionHolder("guest-1")
	reservation := h.Reserve(t, holder, 1)
	req := orders.CreateOrderRequest{ReservationToken: reservation.Token}

	_, _, err := h.orders.CreateOrder(context.Background(), holder, req, "")
	var invalid *apperrors.ValidationError
	require.ErrorAs(t, err, &invalid)

	req.IdempotencyKey = "body-key-0001"
	_, created, err := h.orders.CreateOrder(context.Background(), holder, req, "")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateOrderRejectsForeignOrExpiredReservation(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 2}, nil)
	holder := access.SessionHolder("guest-1")
	reservation := h.Reserve(t, holder, 1)
	ctx := context.Background()

	_, _, err := h.orders.CreateOrder(ctx, access.SessionHolder("guest-2"),
		orders.CreateOrderRequest{ReservationToken: reservation.Token}, "")
	var forbidden *apperrors.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	h.Clock.Advance(11 * time.Minute)
	_, _, err = h.orders.CreateOrder(ctx, holder, orders.CreateOrderRequest{ReservationToken: reservation.Token}, "")
	var expired *apperrors.ReservationExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, 410, apperrors.StatusOf(err))
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 5, PriceCents: 1500}, nil)
	holder := access.SessionHolder("guest-1")
	ctx := context.Background()

	order, intent := h.checkout(t, holder, 3)
	h.authority.Succeed(intent.IntentID)

	paid, err := h.orders.ConfirmPayment(ctx, holder, order.ID, orders.ConfirmPaymentRequest{PaymentReference: intent.IntentID})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, paid.Status)
	assert.Equal(t, intent.IntentID, paid.PaymentReference)

	// Repeated client confirmation and a webhook delivery change nothing
	again, err := h.orders.ConfirmPayment(ctx, holder, order.ID, orders.ConfirmPaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, again.Status)

	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"intent_id":"` + intent.IntentID + `"}}`)
	res, err := h.payments.HandleWebhook(ctx, body, payments.Sign(webhookSecret, h.Clock.Now(), body))
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeConfirmed, res.Outcome)

	codes := map[string]bool{}
	require.Len(t, again.Tickets, 3)
	for _, ticket := range again.Tickets {
		assert.Equal(t, orders.TicketStatusIssued, ticket.Status)
		assert.NotEmpty(t, ticket.ScanCode)
		codes[ticket.ScanCode] = true
	}
	assert.Len(t, codes, 3)

	var tickets, intents int64
	require.NoError(t, h.DB.Model(&orders.Ticket{}).Count(&tickets).Error)
	require.NoError(t, h.DB.Model(&payments.PaymentIntent{}).Count(&intents).Error)
	assert.Equal(t, int64(3), tickets)
	assert.Equal(t, int64(1), intents)
	assert.Equal(t, int64(1), h.CountAudit(t, order.ID, audit.ActionOrderPaid))

	for _, status := range h.seatStatuses(t, 3) {
		assert.Equal(t, inventory.SeatStatusSold, status)
	}
	reservation := h.ReservationByToken(t, order.ReservationToken)
	assert.False(t, reservation.IsActive)
	assert.Equal(t, reservations.ReasonCheckedOut, reservation.DeactivationReason)

	stored, err := h.intents.FindByOrderID(ctx, uuid.MustParse(order.ID))
	require.NoError(t, err)
	assert.Equal(t, payments.IntentSucceeded, stored.Status)
}

func TestConcurrentConfirmationsIssueOneTicketPerSeat(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 4}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 2)
	h.authority.Succeed(intent.IntentID)

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
			return err
		})
	}
	require.NoError(t, g.Wait())

	var issued int64
	require.NoError(t, h.DB.Model(&orders.Ticket{}).
		Where("order_id = ? AND status = ?", order.ID, orders.TicketStatusIssued).
		Count(&issued).Error)
	assert.Equal(t, int64(2), issued)
	assert.Equal(t, int64(1), h.CountAudit(t, uuid.MustParse(order.ID), audit.ActionOrderPaid))
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 5, PriceCents: 1500}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 3)
	require.Equal(t, int64(4500), order.TotalAmountCents)

	h.authority.SucceedWithAmount(intent.IntentID, 1000, "USD")

	_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
	var paymentErr *apperrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.False(t, paymentErr.Terminal)
	assert.Equal(t, 402, apperrors.StatusOf(err))

	current, err := h.orders.GetOrder(context.Background(), holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, current.Status)
	for _, status := range h.seatStatuses(t, 3) {
		assert.Equal(t, inventory.SeatStatusReserved, status)
	}
	assert.True(t, h.ReservationByToken(t, order.ReservationToken).IsActive)
}

func TestConfirmPaymentNotYetPaid(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 2}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 1)
	h.authority.Decline(intent.IntentID, "insufficient_funds", false)

	_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
	var paymentErr *apperrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.False(t, paymentErr.Terminal)

	current, err := h.orders.GetOrder(context.Background(), holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, current.Status)
}

func TestConfirmPaymentTerminalDecline(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 3}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 2)
	h.authority.Decline(intent.IntentID, "card_declined", true)

	_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
	var paymentErr *apperrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.True(t, paymentErr.Terminal)

	current, err := h.orders.GetOrder(context.Background(), holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, current.Status)
	assert.Equal(t, "card_declined", current.FailureReason)
	for _, ticket := range current.Tickets {
		assert.Equal(t, orders.TicketStatusVoid, ticket.Status)
	}

	// Seats stay with the reservation until it ends
	for _, status := range h.seatStatuses(t, 2) {
		assert.Equal(t, inventory.SeatStatusReserved, status)
	}
}

func TestConfirmPaymentAfterExpiryRefunds(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 3}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 2)
	h.authority.Succeed(intent.IntentID)

	h.Clock.Advance(11 * time.Minute)
	h.sweep(t)

	_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
	var expired *apperrors.ReservationExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, 410, apperrors.StatusOf(err))

	current, err := h.orders.GetOrder(context.Background(), holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusRefunded, current.Status)
	require.Len(t, h.authority.Refunds(intent.IntentID), 1)

	for _, status := range h.seatStatuses(t, 2) {
		assert.Equal(t, inventory.SeatStatusAvailable, status)
	}

	// A retry never refunds twice
	_, err = h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
	var state *apperrors.OrderStateError
	assert.ErrorAs(t, err, &state)
	assert.Len(t, h.authority.Refunds(intent.IntentID), 1)
}

func TestConfirmRacingExpiryStaysConsistent(t *testing.T) {
	for i := 0; i < 10; i++ {
		h := newOrderHarness(t, testutil.ShowOptions{Seats: 2}, nil)
		holder := access.SessionHolder("guest-1")
		order, intent := h.checkout(t, holder, 2)
		h.authority.Succeed(intent.IntentID)
		h.Clock.Advance(11 * time.Minute)

		var g errgroup.Group
		g.Go(func() error {
			_, err := h.orders.ConfirmPayment(context.Background(), holder, order.ID, orders.ConfirmPaymentRequest{})
			var expired *apperrors.ReservationExpiredError
			if err != nil && !assert.ErrorAs(t, err, &expired) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			due, err := h.System.FindExpired(context.Background(), 10)
			if err != nil {
				return err
			}
			for i := range due {
				if _, err := h.System.Expire(context.Background(), &due[i]); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, g.Wait())

		current, err := h.orders.GetOrder(context.Background(), holder, order.ID)
		require.NoError(t, err)
		statuses := h.seatStatuses(t, 2)

		switch current.Status {
		case orders.StatusPaid:
			for _, status := range statuses {
				assert.Equal(t, inventory.SeatStatusSold, status)
			}
			assert.Empty(t, h.authority.Refunds(intent.IntentID))
		case orders.StatusRefunded:
			for _, status := range statuses {
				assert.Equal(t, inventory.SeatStatusAvailable, status)
			}
			assert.Len(t, h.authority.Refunds(intent.IntentID), 1)
		default:
			t.Fatalf("unexpected order status %s", current.Status)
		}
	}
}

func TestConfirmPaymentRejectsForeignReference(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 4}, nil)
	alice := access.SessionHolder("alice")
	order, _ := h.checkout(t, alice, 1)

	// Bob pays for his own order and tries to use that payment for Alice's
	bob := access.SessionHolder("bob")
	bobReservation, err := h.Reservations.Reserve(context.Background(), bob, reservations.ReserveRequest{
		ShowID:  h.Show.Show.ID.String(),
		SeatIDs: []string{h.Show.Seats[3].ID.String()},
	})
	require.NoError(t, err)
	bobOrder, _, err := h.orders.CreateOrder(context.Background(), bob,
		orders.CreateOrderRequest{ReservationToken: bobReservation.Token}, "")
	require.NoError(t, err)
	bobIntent, err := h.payments.CreateIntent(context.Background(), bob, bobOrder.ID, "")
	require.NoError(t, err)
	h.authority.Succeed(bobIntent.IntentID)

	_, err = h.orders.ConfirmPayment(context.Background(), alice, order.ID,
		orders.ConfirmPaymentRequest{PaymentReference: bobIntent.IntentID})
	var paymentErr *apperrors.PaymentError
	require.ErrorAs(t, err, &paymentErr)
	assert.True(t, paymentErr.BadReference)
	assert.Equal(t, 400, apperrors.StatusOf(err))

	_, err = h.orders.ConfirmPayment(context.Background(), alice, order.ID,
		orders.ConfirmPaymentRequest{PaymentReference: "pi_does_not_exist"})
	require.ErrorAs(t, err, &paymentErr)
	assert.True(t, paymentErr.BadReference)
}

func TestCancelOrder(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 3}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 2)
	ctx := context.Background()

	cancelled, err := h.orders.CancelOrder(ctx, holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	for _, ticket := range cancelled.Tickets {
		assert.Equal(t, orders.TicketStatusVoid, ticket.Status)
	}
	for _, status := range h.seatStatuses(t, 2) {
		assert.Equal(t, inventory.SeatStatusReserved, status)
	}

	again, err := h.orders.CancelOrder(ctx, holder, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, again.Status)

	_, err = h.orders.CancelOrder(ctx, access.SessionHolder("guest-2"), order.ID)
	var forbidden *apperrors.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)

	// Confirming an unpaid cancelled order is a state conflict
	_, err = h.orders.ConfirmPayment(ctx, holder, order.ID, orders.ConfirmPaymentRequest{PaymentReference: intent.IntentID})
	var state *apperrors.OrderStateError
	assert.ErrorAs(t, err, &state)
}

func TestScanTicketOnce(t *testing.T) {
	h := newOrderHarness(t, testutil.ShowOptions{Seats: 2}, nil)
	holder := access.SessionHolder("guest-1")
	order, intent := h.checkout(t, holder, 1)
	h.authority.Succeed(intent.IntentID)
	ctx := context.Background()

	paid, err := h.orders.ConfirmPayment(ctx, holder, order.ID, orders.ConfirmPaymentRequest{})
	require.NoError(t, err)
	code := paid.Tickets[0].ScanCode

	scan, err := h.orders.ScanTicket(ctx, orders.ScanTicketRequest{ScanCode: code}, "user:staff-1")
	require.NoError(t, err)
	assert.NotNil(t, scan.Ticket.ScannedAt)
	assert.Equal(t, order.ID, scan.OrderID)

	_, err = h.orders.ScanTicket(ctx, orders.ScanTicketRequest{ScanCode: code}, "user:staff-1")
	var scanned *orders.TicketScannedError
	require.ErrorAs(t, err, &scanned)
	assert.Equal(t, 409, apperrors.StatusOf(err))

	_, err = h.orders.ScanTicket(ctx, orders.ScanTicketRequest{ScanCode: "TKT-unknown"}, "user:staff-1")
	var notFound *apperrors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
