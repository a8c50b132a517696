package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/order-sync-service/internal/model"
)

const (
	ordersTable   = "snapshot_orders"
	productsTable = "snapshot_products"
)

// Schema создаёт таблицы зеркала, если их ещё нет
const Schema = `
CREATE TABLE IF NOT EXISTS snapshot_orders (
	position    INT PRIMARY KEY,
	order_id    TEXT NOT NULL,
	order_worth NUMERIC(14, 2) NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	run_id      UUID NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_products (
	order_position INT NOT NULL REFERENCES snapshot_orders (position) ON DELETE CASCADE,
	line           INT NOT NULL,
	product_id     TEXT NOT NULL,
	quantity       INT NOT NULL,
	PRIMARY KEY (order_position, line)
);
`

// OrderMirror зеркалирует снапшот заказов в PostgreSQL
// содержимое таблиц заменяется целиком, как и файл снапшота
// источник правды — файл, из зеркала сервис ничего не читает
type OrderMirror struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewOrderMirror создает новый экземпляр зеркала
func NewOrderMirror(db *pgxpool.Pool) *OrderMirror {
	return &OrderMirror{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Migrate создаёт таблицы зеркала
func (m *OrderMirror) Migrate(ctx context.Context) error {
	const op = "repository.postgres.OrderMirror.Migrate"

	if _, err := m.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Name используется в логах
func (m *OrderMirror) Name() string {
	return "postgres"
}

// OnSnapshot заменяет содержимое зеркала снапшотом в рамках одной транзакции
func (m *OrderMirror) OnSnapshot(ctx context.Context, run model.SyncRun, orders []model.OrderDetail) error {
	const op = "repository.postgres.OrderMirror.OnSnapshot"

	stmts, err := m.replaceStatements(run, orders)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.sql, st.args...); err != nil {
			return fmt.Errorf("%s: failed to %s: %w", op, st.what, err)
		}
	}

	// если все прошло успешно, подтверждаем транзакцию
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}
	return nil
}

type statement struct {
	what string
	sql  string
	args []any
}

// replaceStatements строит запросы полной замены снапшота:
// очистка, затем заказы и товары пачками
func (m *OrderMirror) replaceStatements(run model.SyncRun, orders []model.OrderDetail) ([]statement, error) {
	var stmts []statement

	// 1. Очищаем предыдущий снапшот, товары удалятся каскадно
	sql, args, err := m.sq.Delete(ordersTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete query: %w", err)
	}
	stmts = append(stmts, statement{what: "clear " + ordersTable, sql: sql, args: args})

	if len(orders) == 0 {
		return stmts, nil
	}

	// 2. Заказы и товары одной вставкой на таблицу
	ordersInsert := m.sq.Insert(ordersTable).Columns("position", "order_id", "order_worth", "error", "run_id")
	productsInsert := m.sq.Insert(productsTable).Columns("order_position", "line", "product_id", "quantity")
	hasProducts := false

	for i, o := range orders {
		ordersInsert = ordersInsert.Values(i, o.OrderID.String(), o.OrderWorth.String(), o.Error, run.ID.String())
		for line, p := range o.Products {
			productsInsert = productsInsert.Values(i, line, p.ProductID.String(), p.Quantity)
			hasProducts = true
		}
	}

	sql, args, err = ordersInsert.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s insert query: %w", ordersTable, err)
	}
	stmts = append(stmts, statement{what: "insert into " + ordersTable, sql: sql, args: args})

	// 3. Товары, если они вообще есть
	if hasProducts {
		sql, args, err = productsInsert.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build %s insert query: %w", productsTable, err)
		}
		stmts = append(stmts, statement{what: "insert into " + productsTable, sql: sql, args: args})
	}

	return stmts, nil
}
