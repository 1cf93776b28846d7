package sqlstore

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRow: проекция заказа на таблицу orders.
type orderRow struct {
	ID         string
	CustomerID string
	Total      decimal.Decimal
}

// itemRow: проекция позиции на таблицу order_items.
type itemRow struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	LineNo    int
}

// joinedRow: одна строка LEFT JOIN orders/order_items. item == nil у заказа без позиций.
type joinedRow struct {
	order orderRow
	item  *itemRow
}

// toRows раскладывает агрегат на строки. Total пересчитывается здесь,
// поэтому записанная сумма всегда равна сумме позиций на момент записи.
func toRows(order domain.Order) (orderRow, []itemRow) {
	items := make([]itemRow, 0, len(order.Items))
	for i, item := range order.Items {
		items = append(items, itemRow{
			ID:        item.ID,
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			LineNo:    i,
		})
	}

	return orderRow{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total(),
	}, items
}

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Items:      make([]domain.OrderItem, 0),
	}
}

func (r itemRow) toDomain() domain.OrderItem {
	return domain.OrderItem{
		ID:        r.ID,
		Name:      r.Name,
		Price:     r.Price,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// joinedColumns должны совпадать по порядку со scanJoinedRow.
var joinedColumns = []string{
	"o.id", "o.customer_id",
	"i.id", "i.product_id", "i.name", "i.price", "i.quantity", "i.line_no",
}

func scanJoinedRow(scanner rowScanner) (joinedRow, error) {
	var (
		row       joinedRow
		itemID    sql.NullString
		productID sql.NullString
		name      sql.NullString
		price     decimal.NullDecimal
		quantity  sql.NullInt64
		lineNo    sql.NullInt64
	)

	if err := scanner.Scan(
		&row.order.ID, &row.order.CustomerID,
		&itemID, &productID, &name, &price, &quantity, &lineNo,
	); err != nil {
		return joinedRow{}, err
	}

	if itemID.Valid {
		row.item = &itemRow{
			ID:        itemID.String,
			OrderID:   row.order.ID,
			ProductID: productID.String,
			Name:      name.String,
			Price:     price.Decimal,
			Quantity:  int(quantity.Int64),
			LineNo:    int(lineNo.Int64),
		}
	}

	return row, nil
}

// assembleOrders восстанавливает агрегаты из строк JOIN. Порядок заказов
// и позиций берётся из порядка строк, который задаёт ORDER BY запроса.
func assembleOrders(rows []joinedRow) []domain.Order {
	orders := make([]domain.Order, 0)
	index := make(map[string]int)

	for _, row := range rows {
		pos, ok := index[row.order.ID]
		if !ok {
			orders = append(orders, row.order.toDomain())
			pos = len(orders) - 1
			index[row.order.ID] = pos
		}
		if row.item != nil {
			orders[pos].Items = append(orders[pos].Items, row.item.toDomain())
		}
	}

	return orders
}
