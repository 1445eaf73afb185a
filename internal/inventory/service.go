package inventory

import (
	"context"
	"time"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/transaction"
	"boxoffice/pkg/cache"

	"github.com/google/uuid"
)

type Service interface {
	// Read side
	GetShow(ctx context.Context, showID uuid.UUID) (*Show, error)
	GetSeatMap(ctx context.Context, showID string) (*SeatMapResponse, error)
	GetShowSeats(ctx context.Context, showID uuid.UUID, ids []uuid.UUID) ([]ShowSeat, error)
	GetSeatsForReservation(ctx context.Context, reservationID uuid.UUID) ([]ShowSeat, error)

	// House seats (admin)
	HoldSeats(ctx context.Context, showID string, req SeatHoldRequest) (*HoldResponse, error)
	ReleaseHeldSeats(ctx context.Context, showID string, req SeatHoldRequest) (*HoldResponse, error)
}

type service struct {
	repo         Repository
	guard        *Guard
	cacheService cache.Service
	seatMapTTL   time.Duration
}

// NewService builds the inventory service. cacheService may be nil, in which case
// seat maps are always read from the database.
func NewService(repo Repository, guard *Guard, cacheService cache.Service, seatMapTTL time.Duration) Service {
	if seatMapTTL <= 0 {
		seatMapTTL = constants.TTL_SEAT_MAP
	}
	return &service{
		repo:         repo,
		guard:        guard,
		cacheService: cacheService,
		seatMapTTL:   seatMapTTL,
	}
}

func (s *service) GetShow(ctx context.Context, showID uuid.UUID) (*Show, error) {
	show, err := s.repo.GetShowByID(ctx, showID)
	if err != nil {
		if transaction.IsNotFound(err) {
			return nil, apperrors.NotFound("show", showID.String())
		}
		return nil, apperrors.Storage("get show", err)
	}
	return show, nil
}

func (s *service) GetSeatMap(ctx context.Context, showID string) (*SeatMapResponse, error) {
	id, err := uuid.Parse(showID)
	if err != nil {
		return nil, apperrors.Validation("show_id", "invalid show ID")
	}

	if s.cacheService == nil {
		return s.buildSeatMap(ctx, id)
	}

	var seatMap SeatMapResponse
	err = s.cacheService.GetOrSet(ctx, constants.BuildSeatMapKey(id.String()), s.seatMapTTL, func() (interface{}, error) {
		return s.buildSeatMap(ctx, id)
	}, &seatMap)
	if err != nil {
		return nil, err
	}
	return &seatMap, nil
}

func (s *service) buildSeatMap(ctx context.Context, showID uuid.UUID) (*SeatMapResponse, error) {
	show, err := s.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	seats, err := s.repo.GetShowSeats(ctx, showID)
	if err != nil {
		return nil, apperrors.Storage("get seat map", err)
	}

	seatMap := &SeatMapResponse{
		ShowID:   show.ID.String(),
		Title:    show.Title,
		Venue:    show.Venue,
		StartsAt: show.StartsAt,
		Status:   show.Status,
		Counts: map[SeatStatus]int{
			SeatStatusAvailable: 0,
			SeatStatusReserved:  0,
			SeatStatusSold:      0,
			SeatStatusHeld:      0,
		},
		Seats: make([]SeatView, 0, len(seats)),
	}
	for i := range seats {
		seatMap.Counts[seats[i].Status]++
		seatMap.Seats = append(seatMap.Seats, seats[i].ToView())
	}
	return seatMap, nil
}

func (s *service) GetShowSeats(ctx context.Context, showID uuid.UUID, ids []uuid.UUID) ([]ShowSeat, error) {
	seats, err := s.repo.GetShowSeatsByIDs(ctx, showID, ids)
	if err != nil {
		return nil, apperrors.Storage("get show seats", err)
	}
	return seats, nil
}

func (s *service) GetSeatsForReservation(ctx context.Context, reservationID uuid.UUID) ([]ShowSeat, error) {
	seats, err := s.repo.GetSeatsReservedBy(ctx, reservationID)
	if err != nil {
		return nil, apperrors.Storage("get reserved seats", err)
	}
	return seats, nil
}

//  HOUSE SEATS

func (s *service) HoldSeats(ctx context.Context, showID string, req SeatHoldRequest) (*HoldResponse, error) {
	show, ids, err := s.parseHoldRequest(ctx, showID, req)
	if err != nil {
		return nil, err
	}

	if err := s.guard.Hold(ctx, show.ID, ids); err != nil {
		return nil, err
	}
	return &HoldResponse{ShowID: show.ID.String(), SeatIDs: req.SeatIDs, Status: SeatStatusHeld}, nil
}

func (s *service) ReleaseHeldSeats(ctx context.Context, showID string, req SeatHoldRequest) (*HoldResponse, error) {
	show, ids, err := s.parseHoldRequest(ctx, showID, req)
	if err != nil {
		return nil, err
	}

	if err := s.guard.Unhold(ctx, show.ID, ids); err != nil {
		return nil, err
	}
	return &HoldResponse{ShowID: show.ID.String(), SeatIDs: req.SeatIDs, Status: SeatStatusAvailable}, nil
}

func (s *service) parseHoldRequest(ctx context.Context, showID string, req SeatHoldRequest) (*Show, []uuid.UUID, error) {
	id, err := uuid.Parse(showID)
	if err != nil {
		return nil, nil, apperrors.Validation("show_id", "invalid show ID")
	}
	ids, err := ParseSeatIDs(req.SeatIDs)
	if err != nil {
		return nil, nil, err
	}

	show, err := s.GetShow(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return show, ids, nil
}

// ParseSeatIDs parses show seat ids, rejecting malformed and repeated ids
func ParseSeatIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, apperrors.Validation("seat_ids", "at least one seat is required")
	}

	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, apperrors.Validation("seat_ids", "invalid seat ID: "+r)
		}
		if seen[id] {
			return nil, apperrors.Validation("seat_ids", "seat requested more than once: "+r)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
