package reservations_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type harness struct {
	db        *gorm.DB
	show      *testutil.ShowFixture
	clock     *clock.Manual
	guard     *inventory.Guard
	inventory inventory.Service
	listeners *reservations.Listeners
	svc       reservations.Service
	system    reservations.SystemService
}

func bookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MaxSeatsPerReservation: 10,
		ReservationTTL:         10 * time.Minute,
		ExtensionDuration:      5 * time.Minute,
		MaxExtensions:          3,
		Currency:               "USD",
	}
}

func newHarness(t *testing.T, seats int) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	h := &harness{
		db:        db,
		show:      testutil.SeedShow(t, db, testutil.ShowOptions{Seats: seats}),
		clock:     clock.NewManual(time.Now().UTC().Truncate(time.Microsecond)),
		listeners: reservations.NewListeners(),
	}
	h.guard = inventory.NewGuard(db, h.clock)
	h.inventory = inventory.NewService(inventory.NewRepository(db), h.guard, nil, 0)
	sink := audit.NewGormSink(db)
	h.svc = reservations.NewService(db, reservations.NewRepository(db), h.inventory, h.guard, h.listeners, h.clock, sink, bookingConfig())
	h.system = reservations.NewSystemService(db, reservations.NewSystemRepository(db), h.guard, h.listeners, h.clock, sink)
	return h
}

func (h *harness) reserve(t *testing.T, holder access.Holder, n int) *reservations.ReservationResponse {
	t.Helper()
	res, err := h.svc.Reserve(context.Background(), holder, reservations.ReserveRequest{
		ShowID:  h.show.Show.ID.String(),
		SeatIDs: h.show.SeatIDStrings(n),
	})
	require.NoError(t, err)
	return res
}

func session(name string) access.Holder {
	return access.SessionHolder(name)
}

func TestReserveFlipsSeatsAndReturnsToken(t *testing.T) {
	h := newHarness(t, 4)

	res := h.reserve(t, session("alice"), 2)

	assert.NotEmpty(t, res.Token)
	assert.Len(t, res.Seats, 2)
	assert.True(t, res.ExpiresAt.Equal(h.clock.Now().Add(10*time.Minute)))
	for _, seat := range res.Seats {
		assert.Equal(t, inventory.SeatStatusReserved, seat.Status)
	}
	assert.Equal(t, int64(2), testutil.CountSeats(t, h.db, h.show.Show.ID, inventory.SeatStatusAvailable))
}

func TestReserveSameSeatExactlyOneWinner(t *testing.T) {
	for _, n := range []int{2, 5, 10, 50} {
		t.Run(fmt.Sprintf("contenders=%d", n), func(t *testing.T) {
			h := newHarness(t, 3)
			seat := h.show.SeatIDStrings(1)

			errs := make([]error, n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				i := i
				g.Go(func() error {
					_, errs[i] = h.svc.Reserve(context.Background(), session(fmt.Sprintf("s-%d", i)), reservations.ReserveRequest{
						ShowID:  h.show.Show.ID.String(),
						SeatIDs: seat,
					})
					return nil
				})
			}
			require.NoError(t, g.Wait())

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
					continue
				}
				var unavailable *apperrors.SeatsUnavailableError
				assert.ErrorAs(t, err, &unavailable)
			}
			assert.Equal(t, 1, wins)

			var active int64
			require.NoError(t, h.db.Model(&reservations.SeatReservation{}).Where("is_active = ?", true).Count(&active).Error)
			assert.Equal(t, int64(1), active, "losers must leave no reservation behind")
		})
	}
}

func TestReserveDisjointSeatsAllSucceed(t *testing.T) {
	h := newHarness(t, 20)
	ids := h.show.SeatIDStrings(20)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		i := i
		g.Go(func() error {
			_, err := h.svc.Reserve(context.Background(), session(fmt.Sprintf("s-%d", i)), reservations.ReserveRequest{
				ShowID:  h.show.Show.ID.String(),
				SeatIDs: ids[i : i+1],
			})
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(20), testutil.CountSeats(t, h.db, h.show.Show.ID, inventory.SeatStatusReserved))
}

func TestReserveRejectsSecondActiveReservation(t *testing.T) {
	h := newHarness(t, 4)
	first := h.reserve(t, session("alice"), 1)

	_, err := h.svc.Reserve(context.Background(), session("alice"), reservations.ReserveRequest{
		ShowID:  h.show.Show.ID.String(),
		SeatIDs: []string{h.show.Seats[3].ID.String()},
	})
	var dup *apperrors.DuplicateReservationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Token, dup.Token)
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
}

func TestReserveReclaimsOwnStaleReservation(t *testing.T) {
	h := newHarness(t, 4)
	h.reserve(t, session("alice"), 2)

	h.clock.Advance(11 * time.Minute)

	res, err := h.svc.Reserve(context.Background(), session("alice"), reservations.ReserveRequest{
		ShowID:  h.show.Show.ID.String(),
		SeatIDs: []string{h.show.Seats[3].ID.String()},
	})
	require.NoError(t, err)
	assert.Len(t, res.Seats, 1)

	statuses := testutil.SeatStatuses(t, h.db, h.show.SeatIDs(4))
	assert.Equal(t, inventory.SeatStatusAvailable, statuses[h.show.Seats[0].ID])
	assert.Equal(t, inventory.SeatStatusAvailable, statuses[h.show.Seats[1].ID])
	assert.Equal(t, inventory.SeatStatusReserved, statuses[h.show.Seats[3].ID])
}

func TestReserveValidation(t *testing.T) {
	h := newHarness(t, 12)
	ctx := context.Background()

	_, err := h.svc.Reserve(ctx, session("alice"), reservations.ReserveRequest{
		ShowID:  h.show.Show.ID.String(),
		SeatIDs: h.show.SeatIDStrings(11),
	})
	var invalid *apperrors.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "seat_ids", invalid.Field)

	_, err = h.svc.Reserve(ctx, access.Holder{}, reservations.ReserveRequest{
		ShowID:  h.show.Show.ID.String(),
		SeatIDs: h.show.SeatIDStrings(1),
	})
	require.ErrorAs(t, err, &invalid)

	scheduled := testutil.SeedShow(t, h.db, testutil.ShowOptions{Seats: 1, Status: inventory.ShowStatusScheduled})
	_, err = h.svc.Reserve(ctx, session("alice"), reservations.ReserveRequest{
		ShowID:  scheduled.Show.ID.String(),
		SeatIDs: scheduled.SeatIDStrings(1),
	})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "show_not_on_sale", invalid.Code())
}

func TestExtendStopsAtMaximum(t *testing.T) {
	h := newHarness(t, 2)
	holder := session("alice")
	res := h.reserve(t, holder, 1)
	ctx := context.Background()

	expiresAt := res.ExpiresAt
	for i := 1; i <= 3; i++ {
		ext, err := h.svc.Extend(ctx, holder, res.Token)
		require.NoError(t, err)
		expiresAt = expiresAt.Add(5 * time.Minute)
		assert.True(t, ext.ExpiresAt.Equal(expiresAt))
		assert.Equal(t, i, ext.ExtensionsUsed)
	}

	_, err := h.svc.Extend(ctx, holder, res.Token)
	var invalid *apperrors.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "max_extensions_reached", invalid.Code())

	status, err := h.svc.Status(ctx, holder, res.Token)
	require.NoError(t, err)
	assert.True(t, status.ExpiresAt.Equal(expiresAt), "rejected extension must not move the deadline")
	assert.Equal(t, 0, status.ExtensionsRemaining)

	var seat inventory.ShowSeat
	require.NoError(t, h.db.First(&seat, "id = ?", h.show.Seats[0].ID).Error)
	require.NotNil(t, seat.ReservedUntil)
	assert.True(t, seat.ReservedUntil.Equal(expiresAt))
}

func TestExtendAfterExpiryIsGone(t *testing.T) {
	h := newHarness(t, 2)
	holder := session("alice")
	res := h.reserve(t, holder, 1)

	h.clock.Advance(10*time.Minute + time.Second)

	_, err := h.svc.Extend(context.Background(), holder, res.Token)
	var expired *apperrors.ReservationExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, http.StatusGone, apperrors.StatusOf(err))

	_, err = h.svc.Extend(context.Background(), holder, "rsv_unknown")
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestConcurrentExtendsNeverExceedMaximum(t *testing.T) {
	h := newHarness(t, 1)
	holder := session("alice")
	res := h.reserve(t, holder, 1)

	var g errgroup.Group
	results := make([]error, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = h.svc.Extend(context.Background(), holder, res.Token)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 3, ok)

	status, err := h.svc.Status(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, status.ExtensionsUsed)
	assert.True(t, status.ExpiresAt.Equal(res.ExpiresAt.Add(15*time.Minute)))
}

type recordingListener struct {
	reasons []reservations.DeactivationReason
}

func (l *recordingListener) OnReservationReleased(ctx context.Context, r *reservations.SeatReservation, reason reservations.DeactivationReason) error {
	l.reasons = append(l.reasons, reason)
	return nil
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newHarness(t, 3)
	listener := &recordingListener{}
	h.listeners.Register(listener)
	holder := session("alice")
	res := h.reserve(t, holder, 2)

	first, err := h.svc.Release(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.SeatsReleased)
	assert.False(t, first.AlreadyReleased)

	second, err := h.svc.Release(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.True(t, second.AlreadyReleased)
	assert.Zero(t, second.SeatsReleased)

	assert.Equal(t, []reservations.DeactivationReason{reservations.ReasonReleased}, listener.reasons)
	assert.Equal(t, int64(3), testutil.CountSeats(t, h.db, h.show.Show.ID, inventory.SeatStatusAvailable))

	status, err := h.svc.Status(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "released", status.State)
	assert.True(t, status.Expired)
}

func TestTokenOfAnotherHolderIsForbidden(t *testing.T) {
	h := newHarness(t, 2)
	res := h.reserve(t, session("alice"), 1)

	_, err := h.svc.Release(context.Background(), session("mallory"), res.Token)
	var forbidden *apperrors.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	userHolder := access.UserHolder(uuid.New())
	_, err = h.svc.Status(context.Background(), userHolder, res.Token)
	require.ErrorAs(t, err, &forbidden)

	assert.Equal(t, int64(1), testutil.CountSeats(t, h.db, h.show.Show.ID, inventory.SeatStatusReserved))
}

func TestStatusReportsRemainingTime(t *testing.T) {
	h := newHarness(t, 2)
	holder := session("alice")
	res := h.reserve(t, holder, 2)

	h.clock.Advance(4 * time.Minute)

	status, err := h.svc.Status(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "active", status.State)
	assert.Equal(t, int64(360), status.RemainingSeconds)
	assert.False(t, status.Expired)
	assert.Equal(t, 3, status.ExtensionsRemaining)
	assert.Len(t, status.Seats, 2)

	h.clock.Advance(7 * time.Minute)
	status, err = h.svc.Status(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "expired", status.State)
	assert.Zero(t, status.RemainingSeconds)
}

func TestReserveCartCompensatesEarlierShows(t *testing.T) {
	h := newHarness(t, 3)
	other := testutil.SeedShow(t, h.db, testutil.ShowOptions{Seats: 2})
	ctx := context.Background()

	// Someone else already holds the second show's seat
	_, err := h.svc.Reserve(ctx, session("bob"), reservations.ReserveRequest{
		ShowID:  other.Show.ID.String(),
		SeatIDs: other.SeatIDStrings(1),
	})
	require.NoError(t, err)

	_, err = h.svc.ReserveCart(ctx, session("alice"), reservations.CartRequest{
		Items: []reservations.CartItem{
			{ShowID: h.show.Show.ID.String(), SeatIDs: h.show.SeatIDStrings(2)},
			{ShowID: other.Show.ID.String(), SeatIDs: other.SeatIDStrings(1)},
		},
	})

	var cartErr *reservations.CartError
	require.ErrorAs(t, err, &cartErr)
	assert.Equal(t, 1, cartErr.Index)
	assert.Len(t, cartErr.Compensated, 1)
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))

	var unavailable *apperrors.SeatsUnavailableError
	assert.ErrorAs(t, err, &unavailable)

	assert.Equal(t, int64(3), testutil.CountSeats(t, h.db, h.show.Show.ID, inventory.SeatStatusAvailable))

	var compensated reservations.SeatReservation
	require.NoError(t, h.db.First(&compensated, "token = ?", cartErr.Compensated[0]).Error)
	assert.False(t, compensated.IsActive)
	assert.Equal(t, reservations.ReasonCompensated, compensated.DeactivationReason)
}

func TestReserveCartSucceedsAcrossShows(t *testing.T) {
	h := newHarness(t, 2)
	other := testutil.SeedShow(t, h.db, testutil.ShowOptions{Seats: 2})

	res, err := h.svc.ReserveCart(context.Background(), session("alice"), reservations.CartRequest{
		Items: []reservations.CartItem{
			{ShowID: h.show.Show.ID.String(), SeatIDs: h.show.SeatIDStrings(1)},
			{ShowID: other.Show.ID.String(), SeatIDs: other.SeatIDStrings(2)},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Reservations, 2)
	assert.NotEqual(t, res.Reservations[0].Token, res.Reservations[1].Token)
}

func TestCheckoutReservation(t *testing.T) {
	h := newHarness(t, 3)
	holder := session("alice")
	res := h.reserve(t, holder, 2)

	checkout, err := h.svc.CheckoutReservation(context.Background(), holder, res.Token)
	require.NoError(t, err)
	assert.Len(t, checkout.Seats, 2)
	assert.Equal(t, res.Token, checkout.Reservation.Token)

	h.clock.Advance(10*time.Minute + time.Second)
	_, err = h.svc.CheckoutReservation(context.Background(), holder, res.Token)
	var expired *apperrors.ReservationExpiredError
	assert.ErrorAs(t, err, &expired)
}

func TestSystemExpireRunsOnce(t *testing.T) {
	h := newHarness(t, 2)
	listener := &recordingListener{}
	h.listeners.Register(listener)
	h.reserve(t, session("alice"), 2)
	ctx := context.Background()

	due, err := h.system.FindExpired(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	h.clock.Advance(10*time.Minute + time.Second)
	due, err = h.system.FindExpired(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	first, err := h.system.Expire(ctx, &due[0])
	require.NoError(t, err)
	assert.True(t, first.Expired)
	assert.Equal(t, int64(2), first.SeatsReleased)

	second, err := h.system.Expire(ctx, &due[0])
	require.NoError(t, err)
	assert.False(t, second.Expired)

	var entries int64
	require.NoError(t, h.db.Model(&audit.AuditLogEntry{}).
		Where("entity_id = ? AND action = ?", due[0].ID, audit.ActionReservationExpired).
		Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
	assert.Equal(t, []reservations.DeactivationReason{reservations.ReasonExpired}, listener.reasons)
}

func TestCompleteCheckoutBlocksLaterExpiry(t *testing.T) {
	h := newHarness(t, 1)
	h.reserve(t, session("alice"), 1)
	ctx := context.Background()

	var reservation reservations.SeatReservation
	require.NoError(t, h.db.First(&reservation).Error)

	done, err := h.system.CompleteCheckout(ctx, reservation.ID, "session:alice")
	require.NoError(t, err)
	assert.True(t, done)

	again, err := h.system.CompleteCheckout(ctx, reservation.ID, "session:alice")
	require.NoError(t, err)
	assert.False(t, again)

	h.clock.Advance(time.Hour)
	result, err := h.system.Expire(ctx, &reservation)
	require.NoError(t, err)
	assert.False(t, result.Expired)
}
