package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/asquebay/order-sync-service/internal/metrics"
	"github.com/asquebay/order-sync-service/internal/model"
)

var (
	// ErrNoOrders — поиск не дал ни одного заказа за окно (или сам поиск упал)
	// пустой результат считается ошибкой, а не пустым успехом
	ErrNoOrders = errors.New("no orders found for the given date range")
	// ErrRunNotFound — в реестре нет запуска с таким ID
	ErrRunNotFound = errors.New("sync run not found")
)

// OrderService инкапсулирует логику синхронизации заказов и запросов к снапшоту
type OrderService struct {
	gateway OrderGateway
	store   SnapshotStore
	runs    RunRegistry
	sinks   []SnapshotSink
	metrics *metrics.SyncMetrics
	log     *slog.Logger
	now     func() time.Time
}

// Option настраивает OrderService
type Option func(*OrderService)

// WithSinks добавляет получателей успешно записанного снапшота
func WithSinks(sinks ...SnapshotSink) Option {
	return func(s *OrderService) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithMetrics подключает метрики
func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

// WithClock подменяет часы; нужен в тестах
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		s.now = now
	}
}

// NewOrderService создаёт новый экземпляр сервиса заказов
// он принимает интерфейсы, а не конкретные типы, для гибкости и тестируемости
func NewOrderService(gateway OrderGateway, store SnapshotStore, runs RunRegistry, log *slog.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		gateway: gateway,
		store:   store,
		runs:    runs,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchOrdersWithDetails находит заказы за окно, параллельно получает их детали
// и фильтрует по стоимости
// ошибка поиска фатальна, ошибка по отдельному заказу превращается в деградировавшую запись
func (s *OrderService) FetchOrdersWithDetails(ctx context.Context, window model.DateWindow, rng model.WorthRange) ([]model.OrderDetail, error) {
	const op = "service.OrderService.FetchOrdersWithDetails"
	log := s.log.With(slog.String("op", op))

	// 1. Поиск ID заказов
	ids, err := s.gateway.SearchOrderIDs(ctx, window)
	if err != nil {
		log.Error("failed to search order ids", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNoOrders, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoOrders)
	}

	log.Info("fetching order details", slog.Int("orders_count", len(ids)))

	// 2. Детали всех заказов одновременно, без ограничения параллелизма
	// каждая горутина пишет только в свою ячейку, порядок совпадает с порядком поиска
	orders := make([]model.OrderDetail, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			order, err := s.gateway.FetchOrderDetail(ctx, id)
			if err != nil {
				// 3. Ошибка по одному заказу не прерывает пакет
				log.Warn("failed to fetch order details, keeping degraded record",
					slog.String("order_id", id.String()),
					slog.String("error", err.Error()),
				)
				s.metrics.RecordDetailFetch(metrics.FetchDegraded)
				orders[i] = model.DegradedOrder(id, err)
				return nil
			}
			s.metrics.RecordDetailFetch(metrics.FetchOK)
			orders[i] = order
			return nil
		})
	}
	// горутины всегда возвращают nil, ждём завершения всех
	_ = g.Wait()

	// 4. Фильтр по стоимости
	return rng.Filter(orders), nil
}

// Sync получает заказы за окно и перезаписывает ими снапшот
// каждый запуск сохраняется в реестре; после успешной записи снапшот уходит получателям
func (s *OrderService) Sync(ctx context.Context, trigger model.SyncTrigger, window model.DateWindow, rng model.WorthRange) (model.SyncRun, error) {
	const op = "service.OrderService.Sync"

	run := model.NewSyncRun(trigger, window, s.now())
	log := s.log.With(
		slog.String("op", op),
		slog.String("run_id", run.ID.String()),
		slog.String("trigger", string(trigger)),
	)
	s.runs.Save(run)

	log.Info("starting order sync",
		slog.String("from", window.From.Format(model.DateLayout)),
		slog.String("to", window.To.Format(model.DateLayout)),
	)

	orders, err := s.FetchOrdersWithDetails(ctx, window, rng)
	if err != nil {
		return s.fail(log, run, fmt.Errorf("%s: %w", op, err))
	}

	n, err := s.store.Write(ctx, orders)
	if err != nil {
		return s.fail(log, run, fmt.Errorf("%s: %w", op, err))
	}

	run.Succeed(n, model.CountDegraded(orders), s.now())
	s.runs.Save(run)
	s.metrics.RecordRun(string(trigger), string(run.Status), run.Duration())
	s.metrics.RecordSnapshot(n, *run.FinishedAt)

	log.Info("orders snapshot saved",
		slog.Int("orders_count", n),
		slog.Int("degraded_count", run.Degraded),
	)

	// файл — источник правды, ошибки получателей только логируем
	for _, sink := range s.sinks {
		if err := sink.OnSnapshot(ctx, run, orders); err != nil {
			log.Error("snapshot sink failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	return run, nil
}

func (s *OrderService) fail(log *slog.Logger, run model.SyncRun, err error) (model.SyncRun, error) {
	run.Fail(err, s.now())
	s.runs.Save(run)
	s.metrics.RecordRun(string(run.Trigger), string(run.Status), run.Duration())
	log.Error("order sync failed", slog.String("error", err.Error()))
	return run, err
}

// ReadSnapshot читает сохранённые заказы с фильтром по стоимости
func (s *OrderService) ReadSnapshot(ctx context.Context, rng model.WorthRange) ([]model.OrderDetail, error) {
	const op = "service.OrderService.ReadSnapshot"

	orders, err := s.store.Read(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// FindOrderByID ищет заказ в сохранённом снапшоте
func (s *OrderService) FindOrderByID(ctx context.Context, id model.ID) (model.OrderDetail, error) {
	const op = "service.OrderService.FindOrderByID"

	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// GetRun возвращает запуск синхронизации по ID
func (s *OrderService) GetRun(id uuid.UUID) (model.SyncRun, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return model.SyncRun{}, fmt.Errorf("service.OrderService.GetRun: %w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// LatestRun возвращает последний запуск синхронизации
func (s *OrderService) LatestRun() (model.SyncRun, error) {
	run, ok := s.runs.Latest()
	if !ok {
		return model.SyncRun{}, fmt.Errorf("service.OrderService.LatestRun: %w", ErrRunNotFound)
	}
	return run, nil
}
