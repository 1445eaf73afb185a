package orders

import (
	"context"

	"boxoffice/internal/payments"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
)

// PaymentAdapter adapts the order service to the payment layer's interfaces
type PaymentAdapter struct {
	service Service
	repo    Repository
}

func NewPaymentAdapter(service Service, repo Repository) *PaymentAdapter {
	return &PaymentAdapter{service: service, repo: repo}
}

// OrderForPayment implements payments.OrderSource
func (a *PaymentAdapter) OrderForPayment(ctx context.Context, holder access.Holder, orderID uuid.UUID) (*payments.OrderSnapshot, error) {
	order, err := a.repo.GetByID(ctx, orderID)
	if transaction.IsNotFound(err) {
		return nil, apperrors.NotFound("order", orderID.String())
	}
	if err != nil {
		return nil, apperrors.Storage("get order", err)
	}
	if !holder.Owns(order.HolderKey) {
		return nil, &apperrors.ForbiddenError{Resource: "order"}
	}

	return &payments.OrderSnapshot{
		ID:         order.ID,
		Status:     order.Status.String(),
		TotalCents: order.TotalAmountCents,
		Currency:   order.Currency,
	}, nil
}

// AttachPaymentIntent implements payments.OrderSource
func (a *PaymentAdapter) AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, providerIntentID string) error {
	return a.repo.SetPaymentIntent(ctx, orderID, providerIntentID)
}

// ConfirmFromWebhook implements payments.Confirmer
func (a *PaymentAdapter) ConfirmFromWebhook(ctx context.Context, orderID uuid.UUID, providerIntentID string) error {
	_, err := a.service.ConfirmPaymentSystem(ctx, orderID, providerIntentID)
	return err
}
