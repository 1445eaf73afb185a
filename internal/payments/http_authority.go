package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/config"
)

const authorityService = "charge authority"

// HTTPAuthority talks to a REST charge authority. Every mutating call carries
// an Idempotency-Key header.
type HTTPAuthority struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPAuthority(cfg config.PaymentConfig) *HTTPAuthority {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAuthority{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAuthority) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", strings.ToLower(params.Currency))
	form.Set("metadata[order_id]", params.OrderID)

	var intent Intent
	if err := a.do(ctx, http.MethodPost, "/v1/payment_intents", params.IdempotencyKey, form, &intent); err != nil {
		return nil, err
	}
	intent.Currency = strings.ToUpper(intent.Currency)
	return &intent, nil
}

func (a *HTTPAuthority) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	if err := a.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), "", nil, &intent); err != nil {
		return nil, err
	}
	intent.Currency = strings.ToUpper(intent.Currency)
	return &intent, nil
}

func (a *HTTPAuthority) Refund(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))

	var refund Refund
	if err := a.do(ctx, http.MethodPost, "/v1/refunds", idempotencyKey, form, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (a *HTTPAuthority) do(ctx context.Context, method, path, idempotencyKey string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &apperrors.UpstreamError{Service: authorityService, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &apperrors.UpstreamError{Service: authorityService, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrIntentNotFound
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return &apperrors.UpstreamError{Service: authorityService, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%s %s rejected with status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &apperrors.UpstreamError{Service: authorityService, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
