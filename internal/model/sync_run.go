package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncTrigger — источник запуска синхронизации
type SyncTrigger string

const (
	TriggerSchedule SyncTrigger = "schedule"
	TriggerManual   SyncTrigger = "manual"
	TriggerEvent    SyncTrigger = "event"
)

// SyncStatus — состояние запуска синхронизации
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncSucceeded SyncStatus = "succeeded"
	SyncFailed    SyncStatus = "failed"
)

// SyncRun описывает один запуск синхронизации
// заказы здесь не хранятся, только метаданные
type SyncRun struct {
	ID         uuid.UUID   `json:"id"`
	Trigger    SyncTrigger `json:"trigger"`
	Window     DateWindow  `json:"window"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Status     SyncStatus  `json:"status"`
	Orders     int         `json:"orders"`
	Degraded   int         `json:"degraded"`
	Error      string      `json:"error,omitempty"`
}

// NewSyncRun создаёт запуск в состоянии running
func NewSyncRun(trigger SyncTrigger, window DateWindow, now time.Time) SyncRun {
	return SyncRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Window:    window,
		StartedAt: now,
		Status:    SyncRunning,
	}
}

// Succeed переводит запуск в succeeded
func (r *SyncRun) Succeed(orders, degraded int, now time.Time) {
	r.Status = SyncSucceeded
	r.Orders = orders
	r.Degraded = degraded
	r.FinishedAt = &now
}

// Fail переводит запуск в failed
func (r *SyncRun) Fail(err error, now time.Time) {
	r.Status = SyncFailed
	r.Error = err.Error()
	r.FinishedAt = &now
}

// Duration возвращает длительность завершённого запуска
func (r SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
