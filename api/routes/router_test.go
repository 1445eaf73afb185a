package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/api/routes"
	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/validation"
	"boxoffice/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type app struct {
	engine    *gin.Engine
	authority *payments.SandboxAuthority
	show      *testutil.ShowFixture
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Register()

	db := testutil.NewDB(t)
	cfg := &config.Config{
		APIPrefix:  "/api",
		APIVersion: "v1",
		JWT:        config.JWTConfig{Secret: "test-secret"},
		Booking:    testutil.BookingConfig(),
		Payment: config.PaymentConfig{
			Provider:         "sandbox",
			WebhookSecret:    "whsec_test",
			WebhookTolerance: 5 * time.Minute,
		},
	}

	a := &app{
		engine:    gin.New(),
		authority: payments.NewSandboxAuthority(),
		show:      testutil.SeedShow(t, db, testutil.ShowOptions{Seats: 3, PriceCents: 2000}),
	}
	router := routes.NewRouter(cfg, &database.DB{SQL: db}, audit.NewGormSink(db), a.authority)
	router.SetupRoutes(a.engine)
	require.NotNil(t, router.Jobs())
	return a
}

// call sends a guest request and decodes the envelope data into out when given
func (a *app) call(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, "guest-e2e")
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return rec.Code
}

func TestHealthRoutes(t *testing.T) {
	a := newApp(t)

	for _, path := range []string{"/health", "/ping", "/status"} {
		rec := httptest.NewRecorder()
		a.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestCheckoutThroughTheAPI(t *testing.T) {
	a := newApp(t)
	showID := a.show.Show.ID.String()

	var reservation reservations.ReservationResponse
	code := a.call(t, http.MethodPost, "/api/v1/reservations", map[string]interface{}{
		"show_id":  showID,
		"seat_ids": a.show.SeatIDStrings(2),
	}, &reservation)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, reservation.Token)

	var order orders.OrderResponse
	code = a.call(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"reservation_token": reservation.Token,
		"customer_name":     "Guest Buyer",
		"customer_email":    "guest@example.com",
	}, &order)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, int64(4000), order.TotalAmountCents)
	assert.Equal(t, orders.StatusPending, order.Status)

	var intent payments.IntentResponse
	code = a.call(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment-intent", nil, &intent)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(4000), intent.AmountCents)

	// Not paid yet
	assert.Equal(t, http.StatusPaymentRequired, a.call(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", nil, nil))

	a.authority.Succeed(intent.IntentID)

	var paid orders.OrderResponse
	code = a.call(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/confirm", nil, &paid)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, orders.StatusPaid, paid.Status)
	require.Len(t, paid.Tickets, 2)
	for _, ticket := range paid.Tickets {
		assert.Equal(t, orders.TicketStatusIssued, ticket.Status)
		assert.NotEmpty(t, ticket.ScanCode)
	}

	var seatMap inventory.SeatMapResponse
	code = a.call(t, http.MethodGet, "/api/v1/shows/"+showID+"/seats", nil, &seatMap)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, seatMap.Counts[inventory.SeatStatusSold])
	assert.Equal(t, 1, seatMap.Counts[inventory.SeatStatusAvailable])

	// The reservation was consumed by checkout
	assert.Equal(t, http.StatusGone, a.call(t, http.MethodPost, "/api/v1/reservations/"+reservation.Token+"/extend", nil, nil))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodPost, "/api/v1/admin/sweeps", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(t, http.MethodPost, "/api/v1/tickets/scan", map[string]string{"scan_code": "TKT-x"}, nil))
}
