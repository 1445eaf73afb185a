package payments

import (
	"context"
	"errors"
	"strings"
	"sync"

	"boxoffice/internal/shared/apperrors"

	"github.com/lithammer/shortuuid/v3"
)

// SandboxAuthority is an in-memory charge authority for development and tests.
// With AutoSucceed set, intents report success once created.
type SandboxAuthority struct {
	AutoSucceed bool

	mu          sync.Mutex
	intents     map[string]*Intent
	byKey       map[string]string
	refunds     map[string][]Refund
	refundByKey map[string]Refund
	creates     int
	unavailable bool
}

func NewSandboxAuthority() *SandboxAuthority {
	return &SandboxAuthority{
		intents:     make(map[string]*Intent),
		byKey:       make(map[string]string),
		refunds:     make(map[string][]Refund),
		refundByKey: make(map[string]Refund),
	}
}

var errSandboxDown = errors.New("sandbox authority is unavailable")

func (s *SandboxAuthority) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return nil, &apperrors.UpstreamError{Service: "charge authority", Err: errSandboxDown}
	}
	if id, ok := s.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return s.copyOf(id), nil
	}

	s.creates++
	id := "pi_" + shortuuid.New()
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + shortuuid.New(),
		Status:       IntentRequiresPayment,
		AmountCents:  params.AmountCents,
		Currency:     strings.ToUpper(params.Currency),
		Metadata:     map[string]string{"order_id": params.OrderID},
	}
	if s.AutoSucceed {
		intent.Status = IntentSucceeded
		intent.AmountReceivedCents = intent.AmountCents
	}
	s.intents[id] = intent
	if params.IdempotencyKey != "" {
		s.byKey[params.IdempotencyKey] = id
	}
	return s.copyOf(id), nil
}

func (s *SandboxAuthority) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return nil, &apperrors.UpstreamError{Service: "charge authority", Err: errSandboxDown}
	}
	if _, ok := s.intents[intentID]; !ok {
		return nil, ErrIntentNotFound
	}
	return s.copyOf(intentID), nil
}

func (s *SandboxAuthority) Refund(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return nil, &apperrors.UpstreamError{Service: "charge authority", Err: errSandboxDown}
	}
	if refund, ok := s.refundByKey[idempotencyKey]; ok && idempotencyKey != "" {
		return &refund, nil
	}
	if _, ok := s.intents[intentID]; !ok {
		return nil, ErrIntentNotFound
	}

	refund := Refund{ID: "re_" + shortuuid.New(), IntentID: intentID, AmountCents: amountCents, Status: "succeeded"}
	s.refunds[intentID] = append(s.refunds[intentID], refund)
	if idempotencyKey != "" {
		s.refundByKey[idempotencyKey] = refund
	}
	return &refund, nil
}

// Succeed marks the intent as paid in full
func (s *SandboxAuthority) Succeed(intentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentID]; ok {
		intent.Status = IntentSucceeded
		intent.AmountReceivedCents = intent.AmountCents
	}
}

// SucceedWithAmount marks the intent as paid with a specific amount
func (s *SandboxAuthority) SucceedWithAmount(intentID string, amountCents int64, currency string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentID]; ok {
		intent.Status = IntentSucceeded
		intent.AmountReceivedCents = amountCents
		intent.Currency = currency
	}
}

// Decline records a failed attempt. A terminal decline cancels the intent.
func (s *SandboxAuthority) Decline(intentID, reason string, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentID]; ok {
		intent.LastError = reason
		intent.Status = IntentRequiresPayment
		if terminal {
			intent.Status = IntentCanceled
		}
	}
}

// SetUnavailable makes every call fail as if the authority were unreachable
func (s *SandboxAuthority) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// Refunds lists refunds issued for an intent
func (s *SandboxAuthority) Refunds(intentID string) []Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Refund(nil), s.refunds[intentID]...)
}

// CreateCount is the number of distinct intents created
func (s *SandboxAuthority) CreateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func (s *SandboxAuthority) copyOf(id string) *Intent {
	intent := *s.intents[id]
	intent.Metadata = make(map[string]string, len(s.intents[id].Metadata))
	for k, v := range s.intents[id].Metadata {
		intent.Metadata[k] = v
	}
	return &intent
}
