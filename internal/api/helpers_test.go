package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"renthaus/internal/config"
	"renthaus/internal/database"
	"renthaus/internal/domain"
	"renthaus/internal/models"
	"renthaus/internal/paystack"
	"renthaus/internal/repository"
	"renthaus/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "sk_test_renthaus"
	customerToken = "customer-token"
	otherToken    = "other-token"
	vendorToken   = "vendor-token"
	adminToken    = "admin-token"
)

var bookingDays = []string{"2099-06-10", "2099-06-11", "2099-06-12", "2099-06-13"}

type staticVerifier map[string]*models.Identity

func (v staticVerifier) Verify(_ context.Context, token string) (*models.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return id, nil
}

// fakePaystack answers initialize and verify. A reference counts as paid once
// markPaid was called for it.
type fakePaystack struct {
	mu     sync.Mutex
	paid   map[string]int64
	outage bool
}

func (f *fakePaystack) setOutage(down bool) {
	f.mu.Lock()
	f.outage = down
	f.mu.Unlock()
}

func (f *fakePaystack) markPaid(reference string, kobo int64) {
	f.mu.Lock()
	f.paid[reference] = kobo
	f.mu.Unlock()
}

func (f *fakePaystack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	down := f.outage
	f.mu.Unlock()
	if down {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/transaction/initialize":
		var body struct {
			Reference string `json:"reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.test/" + body.Reference,
				"access_code":       "ac_" + body.Reference,
				"reference":         body.Reference,
			},
		})
	case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		f.mu.Lock()
		amount, ok := f.paid[ref]
		f.mu.Unlock()
		status := "abandoned"
		if ok {
			status = "success"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"reference": ref,
				"status":    status,
				"amount":    amount,
				"currency":  "NGN",
				"paid_at":   "2099-06-01T10:00:00.000Z",
				"metadata":  map[string]any{"orderId": ref},
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	db      *database.DB
	gateway *fakePaystack
	server  *httptest.Server
	ready   error
}

type envOption func(*config.APIConfig, *Deps)

func setupEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	seed(t, db)

	env := &testEnv{db: db, gateway: &fakePaystack{paid: map[string]int64{}}}
	gatewaySrv := httptest.NewServer(env.gateway)
	t.Cleanup(gatewaySrv.Close)

	gateway := paystack.New(config.PaystackConfig{SecretKey: testSecret, BaseURL: gatewaySrv.URL, Timeout: 2 * time.Second}, &logger)
	availability := service.NewAvailabilityService(db, time.UTC, 30)
	guard := repository.NewMemoryGuardRepository()

	deps := Deps{
		Orders:        service.NewOrderService(db, availability, guard, nil, nil, time.Hour, &logger),
		Payments:      service.NewPaymentService(db, gateway, nil, nil, &logger),
		Notifications: service.NewNotificationService(db, db, nil, &logger),
		Availability:  availability,
		Vendors:       service.NewVendorService(db, availability, nil, &logger),
		Reports:       service.NewReportService(db, time.UTC),
		Verifier: staticVerifier{
			customerToken: {UID: "C1", Email: "c1@example.com", Role: models.RoleCustomer},
			otherToken:    {UID: "C2", Email: "c2@example.com", Role: models.RoleCustomer},
			vendorToken:   {UID: "V1", Email: "v1@example.com", Role: models.RoleVendor},
			adminToken:    {UID: "A1", Email: "admin@example.com", Role: models.RoleAdmin},
		},
		Guard:         guard,
		WebhookSecret: testSecret,
		Ready:         func(context.Context) error { return env.ready },
	}
	cfg := config.APIConfig{}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	env.server = httptest.NewServer(NewServer(cfg, deps, &logger).Handler())
	t.Cleanup(env.server.Close)
	return env
}

func seed(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertProduct(ctx, &models.Product{
		ID:              "P1",
		VendorID:        "V1",
		Title:           "Marquee tent",
		DailyPrice:      decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(500),
		Available:       true,
	}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{
		UID:                "V1",
		Email:              "v1@example.com",
		Role:               models.RoleVendor,
		RegistrationStatus: models.RegistrationApproved,
		Verified:           true,
	}))
	for _, d := range bookingDays {
		require.NoError(t, db.SetSlotAvailability(ctx, "P1", d, true))
	}
}

// call sends a JSON request and decodes a JSON object response.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	resp := e.raw(t, method, path, token, body, nil)
	defer resp.Body.Close()

	out := map[string]any{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (e *testEnv) raw(t *testing.T, method, path, token string, body any, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func booking(start, end string) map[string]any {
	return map[string]any{"productId": "P1", "startDate": start, "endDate": end}
}

// createOrder books the first three days and returns the order id.
func (e *testEnv) createOrder(t *testing.T) string {
	t.Helper()
	code, body := e.call(t, http.MethodPost, "/api/orders/create", customerToken, booking("2099-06-10", "2099-06-12"))
	require.Equal(t, http.StatusCreated, code, body)
	return body["orderId"].(string)
}

// payOrder confirms the order through the gateway.
func (e *testEnv) payOrder(t *testing.T, orderID string) {
	t.Helper()
	e.gateway.markPaid(orderID, 350000)
	code, body := e.call(t, http.MethodGet, "/api/payment/paystack?reference="+orderID, "", nil)
	require.Equal(t, http.StatusOK, code, body)
}
