package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// orderRepositoryInMemory: in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов поверх общего Store.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("insert order %s: %w", order.ID, domain.ErrDuplicateIdentity)
	}
	if err := s.checkItemsLocked(order); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	s.putLocked(order)
	return nil
}

// Update целиком заменяет заказ. Все проверки выполняются до первой записи,
// поэтому при ошибке состояние не меняется.
func (r *orderRepositoryInMemory) Update(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: update order %s: %w", domain.ErrTransactionAborted, order.ID, err)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.ID]
	if !ok {
		return fmt.Errorf("update order %s: %w", order.ID, domain.ErrOrderNotFound)
	}
	if err := s.checkItemsLocked(order); err != nil {
		return fmt.Errorf("%w: update order %s: %w", domain.ErrTransactionAborted, order.ID, err)
	}

	for _, item := range current.Items {
		delete(s.itemOwner, item.ID)
	}
	s.putLocked(order)
	return nil
}

// Find возвращает копию заказа или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Find(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("find order %s: %w", id, domain.ErrOrderNotFound)
	}
	return cloneOrder(order), nil
}

// FindAll возвращает копии всех заказов, отсортированные по ID.
func (r *orderRepositoryInMemory) FindAll(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		result = append(result, cloneOrder(order))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// checkItemsLocked повторяет ограничения SQL-схемы: клиент и товары существуют,
// id позиций не заняты другими заказами и не повторяются.
func (s *Store) checkItemsLocked(order domain.Order) error {
	if _, ok := s.customers[order.CustomerID]; !ok {
		return fmt.Errorf("%w: customer %s does not exist", domain.ErrConstraintViolation, order.CustomerID)
	}

	seen := make(map[string]struct{}, len(order.Items))
	for _, item := range order.Items {
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: item %s", domain.ErrDuplicateIdentity, item.ID)
		}
		seen[item.ID] = struct{}{}

		if owner, taken := s.itemOwner[item.ID]; taken && owner != order.ID {
			return fmt.Errorf("%w: item %s belongs to order %s", domain.ErrDuplicateIdentity, item.ID, owner)
		}
		if _, ok := s.products[item.ProductID]; !ok {
			return fmt.Errorf("%w: product %s does not exist", domain.ErrConstraintViolation, item.ProductID)
		}
		if item.Quantity <= 0 || item.Price.IsNegative() {
			return fmt.Errorf("%w: item %s", domain.ErrConstraintViolation, item.ID)
		}
	}
	return nil
}

func (s *Store) putLocked(order domain.Order) {
	stored := cloneOrder(order)
	for _, item := range stored.Items {
		s.itemOwner[item.ID] = stored.ID
	}
	s.orders[stored.ID] = stored
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
