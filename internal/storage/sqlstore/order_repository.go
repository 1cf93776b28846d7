package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// itemsInsertBatch ограничивает число позиций в одном INSERT.
const itemsInsertBatch = 500

// UpdateStep: шаг транзакции Update, попадает в текст ошибки.
type UpdateStep string

const (
	StepBegin       UpdateStep = "begin"
	StepOrderRow    UpdateStep = "order_row"
	StepItemsDelete UpdateStep = "items_delete"
	StepItemsInsert UpdateStep = "items_insert"
	StepCommit      UpdateStep = "commit"
)

type orderRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// NewOrderRepository создаёт SQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB(), dialect: store.Dialect(), sb: store.sb}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (err error) {
	head, items := toRows(order)

	tx, err := r.db.BeginTx(ctx, r.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("begin create order %s: %w", order.ID, classify(err))
	}
	defer func() {
		if err != nil {
			err = rollback(tx, err)
		}
	}()

	query, args, err := r.sb.Insert("orders").
		Columns("id", "customer_id", "total").
		Values(head.ID, head.CustomerID, head.Total).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert order: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, classify(err))
	}

	if err = r.insertItems(ctx, tx, items); err != nil {
		return fmt.Errorf("insert items of order %s: %w", order.ID, classify(err))
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order %s: %w", order.ID, classify(err))
	}

	return nil
}

// Update заменяет набор позиций заказа целиком в одной транзакции.
// Строка заказа обновляется первой: это и проверка существования (0 строк дают
// ErrOrderNotFound без единой записи), и блокировка строки до коммита.
func (r *orderRepository) Update(ctx context.Context, order domain.Order) (err error) {
	head, items := toRows(order)

	tx, err := r.db.BeginTx(ctx, r.dialect.txOptions())
	if err != nil {
		return aborted(StepBegin, order.ID, err)
	}
	defer func() {
		if err != nil {
			err = rollback(tx, err)
		}
	}()

	query, args, err := r.sb.Update("orders").
		Set("customer_id", head.CustomerID).
		Set("total", head.Total).
		Where(sq.Eq{"id": head.ID}).
		ToSql()
	if err != nil {
		return aborted(StepOrderRow, order.ID, fmt.Errorf("build update order: %w", err))
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return aborted(StepOrderRow, order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return aborted(StepOrderRow, order.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update order %s: %w", order.ID, domain.ErrOrderNotFound)
	}

	query, args, err = r.sb.Delete("order_items").
		Where(sq.Eq{"order_id": head.ID}).
		ToSql()
	if err != nil {
		return aborted(StepItemsDelete, order.ID, fmt.Errorf("build delete order items: %w", err))
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return aborted(StepItemsDelete, order.ID, err)
	}

	if err = r.insertItems(ctx, tx, items); err != nil {
		return aborted(StepItemsInsert, order.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return aborted(StepCommit, order.ID, err)
	}

	return nil
}

func (r *orderRepository) Find(ctx context.Context, id string) (domain.Order, error) {
	orders, err := r.selectOrders(ctx, sq.Eq{"o.id": id})
	if err != nil {
		return domain.Order{}, fmt.Errorf("find order %s: %w", id, err)
	}
	if len(orders) == 0 {
		return domain.Order{}, fmt.Errorf("find order %s: %w", id, domain.ErrOrderNotFound)
	}
	return orders[0], nil
}

func (r *orderRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := r.selectOrders(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("find all orders: %w", err)
	}
	return orders, nil
}

// selectOrders читает заказы с позициями одним запросом и собирает агрегаты.
// Любая ошибка чтения даёт ErrStorageUnavailable, частичный результат не возвращается.
func (r *orderRepository) selectOrders(ctx context.Context, where sq.Sqlizer) ([]domain.Order, error) {
	builder := r.sb.Select(joinedColumns...).
		From("orders o").
		LeftJoin("order_items i ON i.order_id = o.id").
		OrderBy("o.id ASC", "i.line_no ASC")
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select orders: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	joined := make([]joinedRow, 0)
	for rows.Next() {
		row, err := scanJoinedRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan order row: %w", domain.ErrStorageUnavailable, err)
		}
		joined = append(joined, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate order rows: %w", domain.ErrStorageUnavailable, err)
	}

	return assembleOrders(joined), nil
}

func (r *orderRepository) insertItems(ctx context.Context, tx *sql.Tx, items []itemRow) error {
	for start := 0; start < len(items); start += itemsInsertBatch {
		end := min(start+itemsInsertBatch, len(items))

		builder := r.sb.Insert("order_items").
			Columns("id", "order_id", "product_id", "name", "price", "quantity", "line_no")
		for _, item := range items[start:end] {
			builder = builder.Values(item.ID, item.OrderID, item.ProductID, item.Name, item.Price, item.Quantity, item.LineNo)
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("build insert order items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func aborted(step UpdateStep, orderID string, cause error) error {
	return fmt.Errorf("%w: update order %s at step %s: %w", domain.ErrTransactionAborted, orderID, step, classify(cause))
}

var _ domain.OrderRepository = (*orderRepository)(nil)
