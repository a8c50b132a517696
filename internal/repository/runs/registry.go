package runs

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/asquebay/order-sync-service/internal/model"
)

// Registry — потокобезопасный in-memory реестр запусков синхронизации
// хранит только метаданные запусков, заказы здесь не кэшируются
// после рестарта процесса история теряется
type Registry struct {
	// ключ — uuid.UUID (ID запуска), значение — model.SyncRun
	storage sync.Map
	latest  atomic.Value
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{}
}

// Save добавляет или обновляет запуск и помечает его последним
func (r *Registry) Save(run model.SyncRun) {
	r.storage.Store(run.ID, run)
	r.latest.Store(run.ID)
}

// Get возвращает запуск по ID
func (r *Registry) Get(id uuid.UUID) (model.SyncRun, bool) {
	value, ok := r.storage.Load(id)
	if !ok {
		return model.SyncRun{}, false
	}

	run, ok := value.(model.SyncRun)
	return run, ok
}

// Latest возвращает последний сохранённый запуск
func (r *Registry) Latest() (model.SyncRun, bool) {
	id, ok := r.latest.Load().(uuid.UUID)
	if !ok {
		return model.SyncRun{}, false
	}
	return r.Get(id)
}
