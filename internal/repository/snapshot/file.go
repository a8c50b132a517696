package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/asquebay/order-sync-service/internal/model"
)

var (
	// ErrNotSynced — файла снапшота ещё нет, синхронизация не запускалась
	ErrNotSynced = errors.New("orders snapshot not found, run the sync first")
	// ErrCorrupt — файл снапшота не удалось разобрать
	ErrCorrupt = errors.New("orders snapshot is corrupt")
	// ErrPersistence — не удалось записать снапшот
	ErrPersistence = errors.New("failed to persist orders snapshot")
	// ErrOrderNotFound — в снапшоте нет заказа с таким ID
	ErrOrderNotFound = errors.New("order not found in snapshot")
)

// FileStore хранит последний результат синхронизации в одном JSON-файле
// каждая запись полностью перезаписывает файл
// блокировок нет: чтение во время записи может увидеть недописанный файл
type FileStore struct {
	path string
}

// NewFileStore создаёт хранилище снапшота по указанному пути
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path возвращает путь к файлу снапшота
func (s *FileStore) Path() string {
	return s.path
}

// Write сериализует заказы и перезаписывает файл снапшота
// возвращает число записанных заказов
func (s *FileStore) Write(_ context.Context, orders []model.OrderDetail) (n int, err error) {
	const op = "repository.snapshot.FileStore.Write"

	if orders == nil {
		orders = []model.OrderDetail{}
	}

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
	// файл закрывается на любом пути выхода, ошибка закрытия не теряется
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			n, err = 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, cerr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
	}

	return len(orders), nil
}

// Read читает снапшот и применяет фильтр по стоимости
func (s *FileStore) Read(_ context.Context, rng model.WorthRange) ([]model.OrderDetail, error) {
	const op = "repository.snapshot.FileStore.Read"

	orders, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rng.Filter(orders), nil
}

// FindByID возвращает первый заказ с указанным ID
func (s *FileStore) FindByID(_ context.Context, id model.ID) (model.OrderDetail, error) {
	const op = "repository.snapshot.FileStore.FindByID"

	orders, err := s.load()
	if err != nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, o := range orders {
		if o.OrderID == id {
			return o, nil
		}
	}

	return model.OrderDetail{}, fmt.Errorf("%s: %w: %s", op, ErrOrderNotFound, id)
}

func (s *FileStore) load() ([]model.OrderDetail, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotSynced
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var orders []model.OrderDetail
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	// верхний уровень файла — всегда массив, null означает повреждённый файл
	if orders == nil {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrCorrupt)
	}

	return orders, nil
}
