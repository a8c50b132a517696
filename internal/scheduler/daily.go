package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asquebay/order-sync-service/internal/model"
)

// Syncer выполняет одну синхронизацию заказов
type Syncer interface {
	Sync(ctx context.Context, trigger model.SyncTrigger, window model.DateWindow, rng model.WorthRange) (model.SyncRun, error)
}

// DailyTrigger запускает синхронизацию при старте и затем каждую локальную полночь
// защиты от наложения запусков нет, пропущенные полночи не догоняются
type DailyTrigger struct {
	syncer Syncer
	log    *slog.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	loop      sync.WaitGroup
	runs      sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Option настраивает DailyTrigger
type Option func(*DailyTrigger)

// WithClock подменяет часы
func WithClock(now func() time.Time) Option {
	return func(t *DailyTrigger) {
		t.now = now
	}
}

// NewDailyTrigger создаёт триггер синхронизации
func NewDailyTrigger(syncer Syncer, log *slog.Logger, opts ...Option) *DailyTrigger {
	t := &DailyTrigger{
		syncer: syncer,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start сразу запускает синхронизацию и планирует следующие на каждую полночь
// повторный вызов ничего не делает
func (t *DailyTrigger) Start(ctx context.Context) error {
	const op = "scheduler.DailyTrigger.Start"

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	next := NextMidnight(t.now())
	t.log.Info("daily sync trigger started",
		slog.String("op", op),
		slog.Time("next_run", next),
	)

	t.fire(ctx)

	t.loop.Add(1)
	go t.runLoop(ctx)

	return nil
}

// Stop останавливает таймер и ждёт завершения уже начатых синхронизаций,
// но не дольше, чем позволяет ctx
func (t *DailyTrigger) Stop(ctx context.Context) error {
	const op = "scheduler.DailyTrigger.Stop"

	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		t.loop.Wait()
		t.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.log.Info("daily sync trigger stopped", slog.String("op", op))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// RunOnce синхронизирует заказы за вчера и сегодня без фильтра по стоимости
// ошибок не возвращает: результат только логируется
func (t *DailyTrigger) RunOnce(ctx context.Context) {
	const op = "scheduler.DailyTrigger.RunOnce"
	log := t.log.With(slog.String("op", op))

	// начатая синхронизация не прерывается остановкой сервиса
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("order sync panicked", slog.Any("panic", r))
		}
	}()

	window := model.DailyWindow(t.now())
	run, err := t.syncer.Sync(ctx, model.TriggerSchedule, window, model.WorthRange{})
	if err != nil {
		log.Error("scheduled order sync failed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	log.Info("scheduled order sync finished",
		slog.String("run_id", run.ID.String()),
		slog.Int("orders", run.Orders),
		slog.Int("degraded", run.Degraded),
	)
}

func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.loop.Done()

	next := NextMidnight(t.now())
	for {
		timer := time.NewTimer(next.Sub(t.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			t.fire(ctx)
			next = followingRun(next, t.now())
		}
	}
}

// followingRun возвращает полночь после только что отработавшей fired
// часы, отставшие от fired, не дают запустить те же сутки повторно;
// убежавшие вперед часы не догоняют пропущенные полуночи
func followingRun(fired, now time.Time) time.Time {
	next := NextMidnight(fired)
	if !next.After(now) {
		next = NextMidnight(now)
	}
	return next
}

// каждый запуск в своей горутине
func (t *DailyTrigger) fire(ctx context.Context) {
	t.runs.Add(1)
	go func() {
		defer t.runs.Done()
		t.RunOnce(ctx)
	}()
}

// NextMidnight возвращает начало следующих суток в часовом поясе now
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
