package reservations

import (
	"context"
	"fmt"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/transaction"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"gorm.io/gorm"
)

// Service is the holder-facing reservation API
type Service interface {
	Reserve(ctx context.Context, holder access.Holder, req ReserveRequest) (*ReservationResponse, error)
	ReserveCart(ctx context.Context, holder access.Holder, req CartRequest) (*CartResponse, error)
	Extend(ctx context.Context, holder access.Holder, token string) (*ExtendResponse, error)
	Release(ctx context.Context, holder access.Holder, token string) (*ReleaseResponse, error)
	Status(ctx context.Context, holder access.Holder, token string) (*StatusResponse, error)

	// CheckoutReservation validates that the reservation is live, owned by holder
	// and still holds every one of its seats.
	CheckoutReservation(ctx context.Context, holder access.Holder, token string) (*Checkout, error)
}

type service struct {
	db        *gorm.DB
	repo      Repository
	inventory inventory.Service
	guard     *inventory.Guard
	listeners *Listeners
	clock     clock.Clock
	sink      audit.Sink
	cfg       config.BookingConfig
}

// NewService creates the holder-facing reservation service
func NewService(
	db *gorm.DB,
	repo Repository,
	inventoryService inventory.Service,
	guard *inventory.Guard,
	listeners *Listeners,
	clk clock.Clock,
	sink audit.Sink,
	cfg config.BookingConfig,
) Service {
	return &service{
		db:        db,
		repo:      repo,
		inventory: inventoryService,
		guard:     guard,
		listeners: listeners,
		clock:     clk,
		sink:      sink,
		cfg:       cfg,
	}
}

// NewToken returns an opaque, unguessable reservation token
func NewToken() string {
	return "rsv_" + shortuuid.New()
}

func (s *service) Reserve(ctx context.Context, holder access.Holder, req ReserveRequest) (*ReservationResponse, error) {
	if !holder.Valid() {
		return nil, apperrors.Validation("holder", "a user or session is required")
	}

	showID, err := uuid.Parse(req.ShowID)
	if err != nil {
		return nil, apperrors.Validation("show_id", "invalid show ID")
	}
	seatIDs, err := inventory.ParseSeatIDs(req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if len(seatIDs) > s.cfg.MaxSeatsPerReservation {
		return nil, apperrors.Validation("seat_ids",
			fmt.Sprintf("at most %d seats can be reserved at once", s.cfg.MaxSeatsPerReservation))
	}

	show, err := s.inventory.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !show.IsOnSale(now) {
		return nil, &apperrors.ValidationError{
			Field:   "show_id",
			Reason:  "show_not_on_sale",
			Message: "show is not on sale",
		}
	}

	reservation := &SeatReservation{
		Token:        NewToken(),
		ShowID:       showID,
		HolderKey:    holder.Key(),
		UserID:       holder.UserID,
		SessionID:    holder.SessionID,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		ExpiresAt:    now.Add(s.cfg.ReservationTTL),
		IsActive:     true,
	}
	for _, id := range seatIDs {
		reservation.Seats = append(reservation.Seats, ReservationSeat{ShowSeatID: id})
	}

	err = transaction.Run(ctx, s.db, func(ctx context.Context) error {
		existing, err := s.repo.FindActiveForShow(ctx, holder, showID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.IsLive(now) {
				return &apperrors.DuplicateReservationError{ShowID: showID, Token: existing.Token}
			}
			// Past its deadline but not swept yet
			if _, _, err := s.deactivate(ctx, holder, existing, ReasonExpired, now); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, reservation); err != nil {
			if transaction.IsUniqueViolation(err) {
				return &apperrors.DuplicateReservationError{ShowID: showID}
			}
			return apperrors.Storage("create reservation", err)
		}

		if err := s.guard.TryReserve(ctx, showID, seatIDs, reservation.ID, reservation.ExpiresAt); err != nil {
			return err
		}

		audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityReservation, reservation.ID,
			audit.ActionReservationCreated, holder.Key(), map[string]interface{}{
				"show_id":    showID.String(),
				"seat_ids":   req.SeatIDs,
				"expires_at": reservation.ExpiresAt,
			}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().LogReservationCreated(ctx, reservation.ID.String(), showID.String(), holder.Key(), len(seatIDs))

	seats, err := s.inventory.GetShowSeats(ctx, showID, seatIDs)
	if err != nil {
		return nil, err
	}
	return &ReservationResponse{
		Token:     reservation.Token,
		ShowID:    showID.String(),
		ExpiresAt: reservation.ExpiresAt,
		Seats:     seatViews(seats),
	}, nil
}

func (s *service) ReserveCart(ctx context.Context, holder access.Holder, req CartRequest) (*CartResponse, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.Validation("items", "cart is empty")
	}
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if seen[item.ShowID] {
			return nil, apperrors.Validation("items", "each show may appear only once in a cart")
		}
		seen[item.ShowID] = true
	}

	created := make([]ReservationResponse, 0, len(req.Items))
	for i, item := range req.Items {
		res, err := s.Reserve(ctx, holder, ReserveRequest{
			ShowID:         item.ShowID,
			SeatIDs:        item.SeatIDs,
			ContactRequest: req.ContactRequest,
		})
		if err != nil {
			cartErr := &CartError{Index: i, ShowID: item.ShowID, Err: err}
			cartErr.Compensated, cartErr.CompensationFailed = s.compensate(ctx, holder, created)
			return nil, cartErr
		}
		created = append(created, *res)
	}

	return &CartResponse{Reservations: created}, nil
}

// compensate releases the cart's earlier reservations in reverse order
func (s *service) compensate(ctx context.Context, holder access.Holder, created []ReservationResponse) (done, failed []string) {
	done = []string{}
	for i := len(created) - 1; i >= 0; i-- {
		token := created[i].Token
		err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
			reservation, err := s.repo.FindByToken(ctx, holder, token)
			if err != nil {
				return err
			}
			_, _, err = s.deactivate(ctx, holder, reservation, ReasonCompensated, s.clock.Now())
			return err
		})
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "cart compensation failed", err, map[string]interface{}{
				"token": token,
			})
			failed = append(failed, token)
			continue
		}
		done = append(done, token)
	}
	return done, failed
}

func (s *service) Extend(ctx context.Context, holder access.Holder, token string) (*ExtendResponse, error) {
	reservation, err := s.repo.FindByToken(ctx, holder, token)
	if err != nil {
		return nil, err
	}

	// Optimistic on extension_count; each lost race re-reads and re-checks
	for attempt := 0; attempt <= s.cfg.MaxExtensions; attempt++ {
		now := s.clock.Now()
		if !reservation.IsLive(now) {
			return nil, &apperrors.ReservationExpiredError{Token: token}
		}
		if reservation.ExtensionCount >= s.cfg.MaxExtensions {
			return nil, &apperrors.ValidationError{
				Field:   "token",
				Reason:  "max_extensions_reached",
				Message: fmt.Sprintf("reservation can be extended at most %d times", s.cfg.MaxExtensions),
			}
		}

		expiresAt := reservation.ExpiresAt.Add(s.cfg.ExtensionDuration)
		var extended bool
		err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
			ok, err := s.repo.Extend(ctx, holder, reservation.ID, reservation.ExtensionCount, expiresAt, now)
			if err != nil || !ok {
				return err
			}
			if _, err := s.guard.ExtendHold(ctx, reservation.ShowID, reservation.ID, expiresAt); err != nil {
				return err
			}
			extended = true
			audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityReservation, reservation.ID,
				audit.ActionReservationExtended, holder.Key(), map[string]interface{}{
					"expires_at":      expiresAt,
					"extension_count": reservation.ExtensionCount + 1,
				}))
			return nil
		})
		if err != nil {
			return nil, err
		}

		if extended {
			used := reservation.ExtensionCount + 1
			return &ExtendResponse{
				Token:               token,
				ExpiresAt:           expiresAt,
				ExtensionsUsed:      used,
				ExtensionsRemaining: s.cfg.MaxExtensions - used,
			}, nil
		}

		if reservation, err = s.repo.FindByToken(ctx, holder, token); err != nil {
			return nil, err
		}
	}

	return nil, apperrors.Storage("extend reservation", fmt.Errorf("too many concurrent extensions"))
}

func (s *service) Release(ctx context.Context, holder access.Holder, token string) (*ReleaseResponse, error) {
	result := &ReleaseResponse{Token: token}

	err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
		reservation, err := s.repo.FindByToken(ctx, holder, token)
		if err != nil {
			return err
		}
		released, changed, err := s.deactivate(ctx, holder, reservation, ReasonReleased, s.clock.Now())
		if err != nil {
			return err
		}
		result.SeatsReleased = released
		result.AlreadyReleased = !changed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Status(ctx context.Context, holder access.Holder, token string) (*StatusResponse, error) {
	reservation, err := s.repo.FindByToken(ctx, holder, token)
	if err != nil {
		return nil, err
	}

	seats, err := s.inventory.GetShowSeats(ctx, reservation.ShowID, reservation.SeatIDs())
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	live := reservation.IsLive(now)
	var remaining int64
	if live {
		remaining = int64(reservation.ExpiresAt.Sub(now).Seconds())
	}

	return &StatusResponse{
		Token:               reservation.Token,
		ShowID:              reservation.ShowID.String(),
		State:               reservation.State(now),
		ExpiresAt:           reservation.ExpiresAt,
		RemainingSeconds:    remaining,
		Expired:             !live,
		ExtensionsUsed:      reservation.ExtensionCount,
		ExtensionsRemaining: max(0, s.cfg.MaxExtensions-reservation.ExtensionCount),
		Seats:               seatViews(seats),
	}, nil
}

func (s *service) CheckoutReservation(ctx context.Context, holder access.Holder, token string) (*Checkout, error) {
	reservation, err := s.repo.FindByToken(ctx, holder, token)
	if err != nil {
		return nil, err
	}
	if !reservation.IsLive(s.clock.Now()) {
		return nil, &apperrors.ReservationExpiredError{Token: token}
	}

	ids := reservation.SeatIDs()
	seats, err := s.inventory.GetShowSeats(ctx, reservation.ShowID, ids)
	if err != nil {
		return nil, err
	}

	held := make(map[uuid.UUID]bool, len(seats))
	for _, seat := range seats {
		if seat.Status == inventory.SeatStatusReserved && seat.ReservedBy != nil && *seat.ReservedBy == reservation.ID {
			held[seat.ID] = true
		}
	}
	var lost []uuid.UUID
	for _, id := range ids {
		if !held[id] {
			lost = append(lost, id)
		}
	}
	if len(lost) > 0 || len(ids) == 0 {
		return nil, &apperrors.SeatsUnavailableError{ShowID: reservation.ShowID, SeatIDs: lost}
	}

	return &Checkout{Reservation: reservation, Seats: seats}, nil
}

// deactivate ends the reservation on behalf of holder. changed is false when
// it was already inactive, which makes every caller idempotent.
func (s *service) deactivate(ctx context.Context, holder access.Holder, reservation *SeatReservation, reason DeactivationReason, now time.Time) (released int64, changed bool, err error) {
	changed, err = s.repo.Deactivate(ctx, holder, reservation.ID, reason, now)
	if err != nil || !changed {
		return 0, changed, err
	}

	released, err = freeSeats(ctx, s.guard, s.listeners, s.sink, reservation, reason, holder.Key())
	return released, true, err
}
