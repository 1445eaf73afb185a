package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists orders, items and tickets. Every method joins the
// transaction carried by ctx.
type Repository interface {
	Create(ctx context.Context, order *TicketOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*TicketOrder, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*TicketOrder, error)
	FindLiveByReservation(ctx context.Context, reservationID uuid.UUID) (*TicketOrder, error)
	FindPendingByReservation(ctx context.Context, reservationID uuid.UUID) ([]TicketOrder, error)
	Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, set map[string]interface{}) (bool, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error

	IssueTickets(ctx context.Context, orderID uuid.UUID, codes func() string, now time.Time) (int, error)
	VoidTickets(ctx context.Context, orderID uuid.UUID, now time.Time) (int64, error)
	FindTicketByScanCode(ctx context.Context, code string) (*Ticket, error)
	MarkScanned(ctx context.Context, ticketID uuid.UUID, by string, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, order *TicketOrder) error {
	if err := transaction.DB(ctx, r.db).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*TicketOrder, error) {
	var order TicketOrder
	err := transaction.DB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("seat_label") }).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB { return db.Order("seat_label") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// The finders below return (nil, nil) when nothing matches.

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*TicketOrder, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *repository) FindLiveByReservation(ctx context.Context, reservationID uuid.UUID) (*TicketOrder, error) {
	return r.findOne(ctx, "reservation_id = ? AND status IN ?", reservationID, []Status{StatusPending, StatusPaid})
}

func (r *repository) findOne(ctx context.Context, query string, args ...interface{}) (*TicketOrder, error) {
	var ids []uuid.UUID
	err := transaction.DB(ctx, r.db).
		Model(&TicketOrder{}).
		Where(query, args...).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, ids[0])
}

func (r *repository) FindPendingByReservation(ctx context.Context, reservationID uuid.UUID) ([]TicketOrder, error) {
	var orders []TicketOrder
	err := transaction.DB(ctx, r.db).
		Where("reservation_id = ? AND status = ?", reservationID, StatusPending).
		Find(&orders).Error
	return orders, err
}

// Transition moves the order to status to when it is currently in one of from.
// It reports whether the row changed.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, set map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range set {
		updates[k] = v
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	result := transaction.DB(ctx, r.db).
		Model(&TicketOrder{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("order %s: %w", to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	return transaction.DB(ctx, r.db).
		Model(&TicketOrder{}).
		Where("id = ?", id).
		Update("payment_intent_id", intentID).Error
}

// IssueTickets gives every placeholder ticket of the order a scan code
func (r *repository) IssueTickets(ctx context.Context, orderID uuid.UUID, codes func() string, now time.Time) (int, error) {
	db := transaction.DB(ctx, r.db)

	var pending []Ticket
	if err := db.Where("order_id = ? AND status = ?", orderID, TicketStatusPending).Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("load tickets: %w", err)
	}

	for _, ticket := range pending {
		code := codes()
		err := db.Model(&Ticket{}).
			Where("id = ? AND status = ?", ticket.ID, TicketStatusPending).
			Updates(map[string]interface{}{
				"status":     TicketStatusIssued,
				"scan_code":  code,
				"issued_at":  now,
				"updated_at": now,
			}).Error
		if err != nil {
			return 0, fmt.Errorf("issue ticket: %w", err)
		}
	}
	return len(pending), nil
}

func (r *repository) VoidTickets(ctx context.Context, orderID uuid.UUID, now time.Time) (int64, error) {
	result := transaction.DB(ctx, r.db).
		Model(&Ticket{}).
		Where("order_id = ? AND status = ?", orderID, TicketStatusPending).
		Updates(map[string]interface{}{
			"status":     TicketStatusVoid,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("void tickets: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) FindTicketByScanCode(ctx context.Context, code string) (*Ticket, error) {
	var ticket Ticket
	err := transaction.DB(ctx, r.db).First(&ticket, "scan_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return &ticket, nil
}

// MarkScanned sets scanned_at once; false means the ticket was already scanned
func (r *repository) MarkScanned(ctx context.Context, ticketID uuid.UUID, by string, now time.Time) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&Ticket{}).
		Where("id = ? AND status = ? AND scanned_at IS NULL", ticketID, TicketStatusIssued).
		Updates(map[string]interface{}{
			"scanned_at": now,
			"scanned_by": by,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("scan ticket: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
