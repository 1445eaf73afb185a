package payments_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"boxoffice/internal/payments"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAuthorityCreateIntent(t *testing.T) {
	var seenKey, seenAuth, seenOrder string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		seenKey = r.Header.Get("Idempotency-Key")
		seenAuth = r.Header.Get("Authorization")
		seenOrder = r.PostForm.Get("metadata[order_id]")
		amount, _ := strconv.ParseInt(r.PostForm.Get("amount"), 10, 64)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"client_secret": "pi_123_secret",
			"status":        "requires_payment_method",
			"amount":        amount,
			"currency":      r.PostForm.Get("currency"),
			"metadata":      map[string]string{"order_id": seenOrder},
		})
	}))
	defer server.Close()

	authority := payments.NewHTTPAuthority(config.PaymentConfig{BaseURL: server.URL, APIKey: "sk_test"})
	intent, err := authority.CreateIntent(context.Background(), payments.CreateIntentParams{
		AmountCents:    4500,
		Currency:       "USD",
		OrderID:        "order-1",
		IdempotencyKey: "order_order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, int64(4500), intent.AmountCents)
	assert.Equal(t, "USD", intent.Currency)
	assert.Equal(t, "order-1", intent.OrderID())
	assert.Equal(t, "order_order-1", seenKey)
	assert.Equal(t, "Bearer sk_test", seenAuth)
}

func TestHTTPAuthorityRetrieveIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payment_intents/pi_ok":
			w.Write([]byte(`{"id":"pi_ok","status":"succeeded","amount":4500,"amount_received":4500,"currency":"usd","metadata":{"order_id":"o-1"}}`))
		case "/v1/payment_intents/pi_busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/v1/payment_intents/pi_bad":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	authority := payments.NewHTTPAuthority(config.PaymentConfig{BaseURL: server.URL + "/"})
	ctx := context.Background()

	intent, err := authority.RetrieveIntent(ctx, "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, payments.IntentSucceeded, intent.Status)
	assert.Equal(t, int64(4500), intent.AmountReceivedCents)
	assert.Equal(t, "USD", intent.Currency)
	assert.Equal(t, "o-1", intent.OrderID())

	_, err = authority.RetrieveIntent(ctx, "pi_missing")
	assert.ErrorIs(t, err, payments.ErrIntentNotFound)

	_, err = authority.RetrieveIntent(ctx, "pi_busy")
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusOf(err))

	_, err = authority.RetrieveIntent(ctx, "pi_bad")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
}

func TestHTTPAuthorityUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	authority := payments.NewHTTPAuthority(config.PaymentConfig{BaseURL: server.URL})
	_, err := authority.Refund(context.Background(), "pi_1", 100, "refund_1")

	var upstream *apperrors.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}
