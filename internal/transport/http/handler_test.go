package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/order-sync-service/internal/config"
	"github.com/asquebay/order-sync-service/internal/gateway"
	"github.com/asquebay/order-sync-service/internal/lib/logger"
	"github.com/asquebay/order-sync-service/internal/model"
	"github.com/asquebay/order-sync-service/internal/repository/snapshot"
	"github.com/asquebay/order-sync-service/internal/service"
)

var testAuth = config.Auth{Username: "admin", Password: "password123"}

type fakeService struct {
	orders  []model.OrderDetail
	readErr error
	findErr error
	syncErr error
	run     model.SyncRun
	runErr  error

	gotRange   model.WorthRange
	gotWindow  model.DateWindow
	gotTrigger model.SyncTrigger
	gotRunID   uuid.UUID
}

func (f *fakeService) ReadSnapshot(_ context.Context, rng model.WorthRange) ([]model.OrderDetail, error) {
	f.gotRange = rng
	if f.readErr != nil {
		return nil, f.readErr
	}
	return rng.Filter(f.orders), nil
}

func (f *fakeService) FindOrderByID(_ context.Context, id model.ID) (model.OrderDetail, error) {
	if f.findErr != nil {
		return model.OrderDetail{}, f.findErr
	}
	for _, o := range f.orders {
		if o.OrderID == id {
			return o, nil
		}
	}
	return model.OrderDetail{}, fmt.Errorf("find: %w", snapshot.ErrOrderNotFound)
}

func (f *fakeService) Sync(_ context.Context, trigger model.SyncTrigger, window model.DateWindow, rng model.WorthRange) (model.SyncRun, error) {
	f.gotTrigger = trigger
	f.gotWindow = window
	f.gotRange = rng
	run := model.NewSyncRun(trigger, window, time.Now())
	if f.syncErr != nil {
		run.Fail(f.syncErr, time.Now())
		return run, f.syncErr
	}
	run.Succeed(len(f.orders), 0, time.Now())
	return run, nil
}

func (f *fakeService) GetRun(id uuid.UUID) (model.SyncRun, error) {
	f.gotRunID = id
	return f.run, f.runErr
}

func (f *fakeService) LatestRun() (model.SyncRun, error) {
	return f.run, f.runErr
}

func testOrders() []model.OrderDetail {
	return []model.OrderDetail{
		{OrderID: "A1", Products: []model.Product{{ProductID: "P1", Quantity: 2}}, OrderWorth: decimal.RequireFromString("50")},
		{OrderID: "A2", Products: []model.Product{{ProductID: "P2", Quantity: 1}}, OrderWorth: decimal.RequireFromString("150.5")},
		model.DegradedOrder("A3", errors.New("timeout")),
	}
}

func newTestHandler(svc OrderService) *Handler {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return NewHandler(svc, testAuth, logger.Discard(),
		WithClock(func() time.Time { return now }),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		})),
	)
}

func do(t *testing.T, h http.Handler, method, target string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authed {
		req.SetBasicAuth(testAuth.Username, testAuth.Password)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestBasicAuth(t *testing.T) {
	h := newTestHandler(&fakeService{orders: testOrders()})

	tests := []struct {
		name string
		user string
		pass string
		set  bool
	}{
		{"no credentials", "", "", false},
		{"wrong password", "admin", "nope", true},
		{"wrong user", "root", "password123", true},
	}

	for _, path := range []string{"/api/orders", "/healthz", "/metrics", "/unknown"} {
		for _, tt := range tests {
			t.Run(path+" "+tt.name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.set {
					req.SetBasicAuth(tt.user, tt.pass)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				assert.Equal(t, `Basic realm="orders"`, rec.Header().Get("WWW-Authenticate"))
				assert.Equal(t, "unauthorized", errorBody(t, rec))
			})
		}
	}
}

func TestListOrders(t *testing.T) {
	svc := &fakeService{orders: testOrders()}
	h := newTestHandler(svc)

	rec := do(t, h, http.MethodGet, "/api/orders", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "A1", got[0]["orderID"])
	assert.Equal(t, 50.0, got[0]["orderWorth"])
	assert.Equal(t, "timeout", got[2]["error"])
	assert.NotContains(t, got[0], "error")
}

func TestListOrdersWorthFilter(t *testing.T) {
	svc := &fakeService{orders: testOrders()}
	h := newTestHandler(svc)

	rec := do(t, h, http.MethodGet, "/api/orders?minWorth=100&maxWorth=200", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.OrderDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, model.ID("A2"), got[0].OrderID)
	require.NotNil(t, svc.gotRange.Min)
	assert.Equal(t, "100", svc.gotRange.Min.String())
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	h := newTestHandler(&fakeService{orders: testOrders()})

	rec := do(t, h, http.MethodGet, "/api/orders?minWorth=1000", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListOrdersErrors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		readErr error
		status  int
		message string
	}{
		{"invalid min", "/api/orders?minWorth=abc", nil, http.StatusBadRequest, ""},
		{"not synced", "/api/orders", fmt.Errorf("read: %w", snapshot.ErrNotSynced), http.StatusNotFound, "orders snapshot not found, run the sync first"},
		{"corrupt", "/api/orders", fmt.Errorf("read: %w", snapshot.ErrCorrupt), http.StatusInternalServerError, "orders snapshot is corrupt"},
		{"unexpected", "/api/orders", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeService{readErr: tt.readErr})

			rec := do(t, h, http.MethodGet, tt.target, true)
			assert.Equal(t, tt.status, rec.Code)
			msg := errorBody(t, rec)
			if tt.message != "" {
				assert.Equal(t, tt.message, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestGetOrderByID(t *testing.T) {
	h := newTestHandler(&fakeService{orders: testOrders()})

	rec := do(t, h, http.MethodGet, "/api/orders/A2", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.OrderDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "150.5", got.OrderWorth.String())

	rec = do(t, h, http.MethodGet, "/api/orders/ZZ", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order not found", errorBody(t, rec))
}

func TestSyncOrdersDefaultsToDailyWindow(t *testing.T) {
	svc := &fakeService{orders: testOrders()}
	h := newTestHandler(svc)

	rec := do(t, h, http.MethodPost, "/api/orders/sync", true)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, model.TriggerManual, svc.gotTrigger)
	assert.Equal(t, "2024-03-14", svc.gotWindow.From.Format(model.DateLayout))
	assert.Equal(t, "2024-03-15", svc.gotWindow.To.Format(model.DateLayout))
	assert.True(t, svc.gotRange.IsZero())

	var run model.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, model.SyncSucceeded, run.Status)
	assert.Equal(t, 3, run.Orders)
}

func TestSyncOrdersWithParams(t *testing.T) {
	svc := &fakeService{orders: testOrders()}
	h := newTestHandler(svc)

	rec := do(t, h, http.MethodPost, "/api/orders/sync?from=2024-01-01&to=2024-01-31&minWorth=10", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01-01", svc.gotWindow.From.Format(model.DateLayout))
	assert.Equal(t, "2024-01-31", svc.gotWindow.To.Format(model.DateLayout))
	require.NotNil(t, svc.gotRange.Min)
	assert.Nil(t, svc.gotRange.Max)
}

func TestSyncOrdersErrors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		syncErr error
		status  int
		message string
	}{
		{"bad from", "/api/orders/sync?from=15.03.2024", nil, http.StatusBadRequest, ""},
		{"from after to", "/api/orders/sync?from=2024-03-20&to=2024-03-10", nil, http.StatusBadRequest, "invalid date window: from date must not be after to date"},
		{"bad worth", "/api/orders/sync?maxWorth=x", nil, http.StatusBadRequest, ""},
		{"no orders", "/api/orders/sync", fmt.Errorf("sync: %w", service.ErrNoOrders), http.StatusNotFound, "no orders found for the given date range"},
		{
			"search failed",
			"/api/orders/sync",
			fmt.Errorf("sync: %w: %w", service.ErrNoOrders, gateway.ErrRemote),
			http.StatusNotFound,
			"no orders found for the given date range",
		},
		{"remote", "/api/orders/sync", fmt.Errorf("sync: %w", gateway.ErrRemote), http.StatusBadGateway, "remote api error"},
		{"persistence", "/api/orders/sync", fmt.Errorf("sync: %w", snapshot.ErrPersistence), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeService{syncErr: tt.syncErr})

			rec := do(t, h, http.MethodPost, tt.target, true)
			assert.Equal(t, tt.status, rec.Code)
			msg := errorBody(t, rec)
			if tt.message != "" {
				assert.Equal(t, tt.message, msg)
			}
		})
	}
}

func TestSyncRuns(t *testing.T) {
	run := model.NewSyncRun(model.TriggerSchedule, model.DailyWindow(time.Now()), time.Now())
	svc := &fakeService{run: run}
	h := newTestHandler(svc)

	rec := do(t, h, http.MethodGet, "/api/sync/runs/latest", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)

	rec = do(t, h, http.MethodGet, "/api/sync/runs/"+run.ID.String(), true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, run.ID, svc.gotRunID)

	rec = do(t, h, http.MethodGet, "/api/sync/runs/not-a-uuid", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.runErr = fmt.Errorf("get: %w", service.ErrRunNotFound)
	rec = do(t, h, http.MethodGet, "/api/sync/runs/latest", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "sync run not found", errorBody(t, rec))
}

func TestHealthzMetricsAndFallbacks(t *testing.T) {
	h := newTestHandler(&fakeService{})

	rec := do(t, h, http.MethodGet, "/healthz", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")

	rec = do(t, h, http.MethodGet, "/nope", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/orders", true)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(config.HTTPServer{Port: l.Addr().String(), Timeout: time.Second}, newTestHandler(&fakeService{}))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+l.Addr().String()+"/healthz", nil)
	require.NoError(t, err)
	req.SetBasicAuth(testAuth.Username, testAuth.Password)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
