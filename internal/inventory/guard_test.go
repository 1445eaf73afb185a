package inventory_test

import (
	"context"
	"testing"
	"time"

	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/transaction"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*inventory.Guard, *testutil.ShowFixture, func() map[uuid.UUID]inventory.SeatStatus) {
	t.Helper()
	db := testutil.NewDB(t)
	fixture := testutil.SeedShow(t, db, testutil.ShowOptions{Seats: 4})
	guard := inventory.NewGuard(db, clock.NewSystem())
	statuses := func() map[uuid.UUID]inventory.SeatStatus {
		return testutil.SeatStatuses(t, db, fixture.SeatIDs(4))
	}
	return guard, fixture, statuses
}

func TestTryReserveIsAllOrNothing(t *testing.T) {
	guard, fixture, statuses := newGuard(t)
	ctx := context.Background()
	until := time.Now().Add(time.Minute)
	seats := fixture.SeatIDs(4)

	first := uuid.New()
	require.NoError(t, guard.TryReserve(ctx, fixture.Show.ID, seats[:2], first, until))

	// Overlaps seat 1 with the first reservation
	second := uuid.New()
	err := guard.TryReserve(ctx, fixture.Show.ID, []uuid.UUID{seats[1], seats[2], seats[3]}, second, until)

	var unavailable *apperrors.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uuid.UUID{seats[1]}, unavailable.SeatIDs)

	got := statuses()
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[0]])
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[1]])
	assert.Equal(t, inventory.SeatStatusAvailable, got[seats[2]], "partial change must be rolled back")
	assert.Equal(t, inventory.SeatStatusAvailable, got[seats[3]], "partial change must be rolled back")
}

func TestTryReserveRejectsSeatOfAnotherShow(t *testing.T) {
	guard, fixture, _ := newGuard(t)

	stranger := uuid.New()
	err := guard.TryReserve(context.Background(), fixture.Show.ID,
		[]uuid.UUID{fixture.Seats[0].ID, stranger}, uuid.New(), time.Now().Add(time.Minute))

	var unavailable *apperrors.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uuid.UUID{stranger}, unavailable.SeatIDs)
}

func TestReleaseOnlyTouchesOwnReservedSeats(t *testing.T) {
	guard, fixture, statuses := newGuard(t)
	ctx := context.Background()
	until := time.Now().Add(time.Minute)
	seats := fixture.SeatIDs(4)

	mine, theirs := uuid.New(), uuid.New()
	require.NoError(t, guard.TryReserve(ctx, fixture.Show.ID, seats[:2], mine, until))
	require.NoError(t, guard.TryReserve(ctx, fixture.Show.ID, seats[2:], theirs, until))

	// One of mine is sold before the release arrives
	require.NoError(t, guard.MarkSold(ctx, fixture.Show.ID, mine, seats[:1], uuid.New()))

	released, err := guard.Release(ctx, fixture.Show.ID, mine, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	got := statuses()
	assert.Equal(t, inventory.SeatStatusSold, got[seats[0]])
	assert.Equal(t, inventory.SeatStatusAvailable, got[seats[1]])
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[2]])
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[3]])

	again, err := guard.Release(ctx, fixture.Show.ID, mine, nil)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestMarkSoldRequiresOwnership(t *testing.T) {
	guard, fixture, statuses := newGuard(t)
	ctx := context.Background()
	seats := fixture.SeatIDs(2)

	owner := uuid.New()
	require.NoError(t, guard.TryReserve(ctx, fixture.Show.ID, seats, owner, time.Now().Add(time.Minute)))

	err := guard.MarkSold(ctx, fixture.Show.ID, uuid.New(), seats, uuid.New())
	var unavailable *apperrors.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ElementsMatch(t, seats, unavailable.SeatIDs)

	got := statuses()
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[0]])
	assert.Equal(t, inventory.SeatStatusReserved, got[seats[1]])
}

func TestGuardJoinsCallerTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	fixture := testutil.SeedShow(t, db, testutil.ShowOptions{Seats: 2})
	guard := inventory.NewGuard(db, clock.NewSystem())
	seats := fixture.SeatIDs(2)

	err := transaction.Run(context.Background(), db, func(ctx context.Context) error {
		if err := guard.TryReserve(ctx, fixture.Show.ID, seats, uuid.New(), time.Now().Add(time.Minute)); err != nil {
			return err
		}
		return apperrors.Validation("contact", "caller failed after reserving")
	})
	require.Error(t, err)

	assert.Equal(t, int64(2), testutil.CountSeats(t, db, fixture.Show.ID, inventory.SeatStatusAvailable))
}

func TestHoldAndUnhold(t *testing.T) {
	guard, fixture, statuses := newGuard(t)
	ctx := context.Background()
	seats := fixture.SeatIDs(2)

	require.NoError(t, guard.Hold(ctx, fixture.Show.ID, seats))
	assert.Equal(t, inventory.SeatStatusHeld, statuses()[seats[0]])

	err := guard.TryReserve(ctx, fixture.Show.ID, seats[:1], uuid.New(), time.Now().Add(time.Minute))
	var unavailable *apperrors.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)

	require.NoError(t, guard.Unhold(ctx, fixture.Show.ID, seats))
	assert.Equal(t, inventory.SeatStatusAvailable, statuses()[seats[1]])
}

func TestExtendHoldMovesReservedUntil(t *testing.T) {
	db := testutil.NewDB(t)
	fixture := testutil.SeedShow(t, db, testutil.ShowOptions{Seats: 2})
	guard := inventory.NewGuard(db, clock.NewSystem())
	ctx := context.Background()

	reservationID := uuid.New()
	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, guard.TryReserve(ctx, fixture.Show.ID, fixture.SeatIDs(2), reservationID, start))

	later := start.Add(5 * time.Minute)
	n, err := guard.ExtendHold(ctx, fixture.Show.ID, reservationID, later)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var seat inventory.ShowSeat
	require.NoError(t, db.First(&seat, "id = ?", fixture.Seats[0].ID).Error)
	require.NotNil(t, seat.ReservedUntil)
	assert.True(t, seat.ReservedUntil.Equal(later))
}
