package payments

import (
	"context"
	"fmt"

	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, intent *PaymentIntent) error
	FindByIdempotencyKey(ctx context.Context, key string) (*PaymentIntent, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*PaymentIntent, error)
	FindByProviderID(ctx context.Context, providerIntentID string) (*PaymentIntent, error)
	ClaimKey(ctx context.Context, id uuid.UUID, key string) (bool, error)
	UpdateStatus(ctx context.Context, providerIntentID string, status IntentStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, intent *PaymentIntent) error {
	if err := transaction.DB(ctx, r.db).Create(intent).Error; err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

// The finders return (nil, nil) when nothing matches.

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*PaymentIntent, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*PaymentIntent, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *repository) FindByProviderID(ctx context.Context, providerIntentID string) (*PaymentIntent, error) {
	return r.findOne(ctx, "provider_intent_id = ?", providerIntentID)
}

func (r *repository) findOne(ctx context.Context, query string, arg interface{}) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := transaction.DB(ctx, r.db).Where(query, arg).First(&intent).Error
	if err != nil {
		if transaction.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find payment intent: %w", err)
	}
	return &intent, nil
}

// ClaimKey attaches key to an intent that has none yet
func (r *repository) ClaimKey(ctx context.Context, id uuid.UUID, key string) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&PaymentIntent{}).
		Where("id = ? AND idempotency_key IS NULL", id).
		Update("idempotency_key", key)
	if result.Error != nil {
		return false, fmt.Errorf("claim idempotency key: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, providerIntentID string, status IntentStatus) error {
	err := transaction.DB(ctx, r.db).
		Model(&PaymentIntent{}).
		Where("provider_intent_id = ?", providerIntentID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("update payment intent status: %w", err)
	}
	return nil
}
