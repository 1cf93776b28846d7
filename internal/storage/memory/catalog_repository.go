package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepositoryInMemory{store: store}
}

func (r *customerRepositoryInMemory) Create(_ context.Context, customer domain.Customer) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[customer.ID]; exists {
		return fmt.Errorf("insert customer %s: %w", customer.ID, domain.ErrDuplicateIdentity)
	}
	s.customers[customer.ID] = customer
	return nil
}

func (r *customerRepositoryInMemory) Find(_ context.Context, id string) (domain.Customer, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("find customer %s: %w", id, domain.ErrCustomerNotFound)
	}
	return customer, nil
}

type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return fmt.Errorf("insert product %s: %w", product.ID, domain.ErrDuplicateIdentity)
	}
	s.products[product.ID] = product
	return nil
}

func (r *productRepositoryInMemory) Find(_ context.Context, id string) (domain.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("find product %s: %w", id, domain.ErrProductNotFound)
	}
	return product, nil
}

var (
	_ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
	_ domain.ProductRepository  = (*productRepositoryInMemory)(nil)
)
