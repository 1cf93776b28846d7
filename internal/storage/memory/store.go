package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Store: общее in-memory хранилище для репозиториев заказов, клиентов и товаров.
// Один мьютекс на всё хранилище даёт те же ссылочные проверки, что и внешние ключи в SQL.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	// itemOwner: id позиции -> id заказа. Идентификаторы позиций уникальны глобально.
	itemOwner map[string]string
}

// NewStore создаёт пустое хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		itemOwner: make(map[string]string),
	}
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *Store) Ping(context.Context) error {
	return nil
}

func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}
