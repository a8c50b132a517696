package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asquebay/order-sync-service/internal/config"
	"github.com/asquebay/order-sync-service/internal/gateway"
	"github.com/asquebay/order-sync-service/internal/model"
	"github.com/asquebay/order-sync-service/internal/repository/snapshot"
	"github.com/asquebay/order-sync-service/internal/service"
)

// OrderService определяет интерфейс для сервиса, с которым работает хэндлер
// Это позволяет хэндлеру не зависеть от конкретной реализации сервиса
type OrderService interface {
	ReadSnapshot(ctx context.Context, rng model.WorthRange) ([]model.OrderDetail, error)
	FindOrderByID(ctx context.Context, id model.ID) (model.OrderDetail, error)
	Sync(ctx context.Context, trigger model.SyncTrigger, window model.DateWindow, rng model.WorthRange) (model.SyncRun, error)
	GetRun(id uuid.UUID) (model.SyncRun, error)
	LatestRun() (model.SyncRun, error)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	service OrderService
	auth    config.Auth
	log     *slog.Logger
	router  *mux.Router
	handler http.Handler
	metrics http.Handler
	now     func() time.Time
}

// Option настраивает Handler
type Option func(*Handler)

// WithMetricsHandler подменяет обработчик /metrics
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithClock подменяет часы, по которым считается окно синхронизации по умолчанию
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler создает новый экземпляр Handler
// все запросы проходят через Basic-авторизацию и логирование
func NewHandler(service OrderService, auth config.Auth, log *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		auth:    auth,
		log:     log,
		router:  mux.NewRouter(),
		metrics: promhttp.Handler(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registerRoutes()
	h.handler = h.logRequests(h.basicAuth(h.router))
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	api := h.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/sync", h.syncOrders).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", h.getOrderByID).Methods(http.MethodGet)
	api.HandleFunc("/sync/runs/latest", h.latestRun).Methods(http.MethodGet)
	api.HandleFunc("/sync/runs/{id}", h.getRun).Methods(http.MethodGet)

	h.router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	h.router.Handle("/metrics", h.metrics).Methods(http.MethodGet)

	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondError(w, http.StatusNotFound, "not found")
	})
	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	rng, err := parseWorthRange(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.service.ReadSnapshot(r.Context(), rng)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrderByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	order, err := h.service.FindOrderByID(r.Context(), model.ID(id))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

func (h *Handler) syncOrders(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rng, err := parseWorthRange(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// обрыв соединения клиентом не должен прерывать запись снапшота
	ctx := context.WithoutCancel(r.Context())

	run, err := h.service.Sync(ctx, model.TriggerManual, window, rng)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handler) latestRun(w http.ResponseWriter, _ *http.Request) {
	run, err := h.service.LatestRun()
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.service.GetRun(id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseWindow(r *http.Request) (model.DateWindow, error) {
	q := r.URL.Query()
	return model.ParseWindow(q.Get("from"), q.Get("to"), h.now())
}

func parseWorthRange(r *http.Request) (model.WorthRange, error) {
	q := r.URL.Query()
	return model.ParseWorthRange(q.Get("minWorth"), q.Get("maxWorth"))
}

// respondServiceError переводит ошибку сервиса в HTTP-статус
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoOrders):
		h.respondError(w, http.StatusNotFound, service.ErrNoOrders.Error())
	case errors.Is(err, snapshot.ErrNotSynced):
		h.respondError(w, http.StatusNotFound, snapshot.ErrNotSynced.Error())
	case errors.Is(err, snapshot.ErrOrderNotFound), errors.Is(err, gateway.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrRunNotFound):
		h.respondError(w, http.StatusNotFound, service.ErrRunNotFound.Error())
	case errors.Is(err, gateway.ErrRemote):
		h.log.Error("remote api error", slog.String("error", err.Error()))
		h.respondError(w, http.StatusBadGateway, gateway.ErrRemote.Error())
	case errors.Is(err, snapshot.ErrCorrupt):
		h.log.Error("corrupt snapshot", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, snapshot.ErrCorrupt.Error())
	default:
		h.log.Error("internal server error", slog.String("error", err.Error()))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
