package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/asquebay/order-sync-service/internal/model"
)

// OrderGateway определяет контракт для внешнего API заказов
type OrderGateway interface {
	SearchOrderIDs(ctx context.Context, window model.DateWindow) ([]model.ID, error)
	FetchOrderDetail(ctx context.Context, id model.ID) (model.OrderDetail, error)
}

// SnapshotStore определяет контракт для хранилища снапшота
type SnapshotStore interface {
	Write(ctx context.Context, orders []model.OrderDetail) (int, error)
	Read(ctx context.Context, rng model.WorthRange) ([]model.OrderDetail, error)
	FindByID(ctx context.Context, id model.ID) (model.OrderDetail, error)
}

// RunRegistry определяет контракт для реестра запусков синхронизации
type RunRegistry interface {
	Save(run model.SyncRun)
	Get(id uuid.UUID) (model.SyncRun, bool)
	Latest() (model.SyncRun, bool)
}

// SnapshotSink получает каждый успешно записанный снапшот
// (публикация события в кафку, зеркало в postgres)
type SnapshotSink interface {
	Name() string
	OnSnapshot(ctx context.Context, run model.SyncRun, orders []model.OrderDetail) error
}
