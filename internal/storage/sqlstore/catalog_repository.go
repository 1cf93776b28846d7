package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type customerRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewCustomerRepository создаёт SQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB(), sb: store.sb}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	query, args, err := r.sb.Insert("customers").
		Columns("id", "name", "street", "street_number", "zip", "city").
		Values(
			customer.ID, customer.Name,
			customer.Address.Street, customer.Address.Number, customer.Address.Zip, customer.Address.City,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert customer: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert customer %s: %w", customer.ID, classify(err))
	}
	return nil
}

func (r *customerRepository) Find(ctx context.Context, id string) (domain.Customer, error) {
	query, args, err := r.sb.Select("id", "name", "street", "street_number", "zip", "city").
		From("customers").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Customer{}, fmt.Errorf("build select customer: %w", err)
	}

	var c domain.Customer
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.Name, &c.Address.Street, &c.Address.Number, &c.Address.Zip, &c.Address.City,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, fmt.Errorf("find customer %s: %w", id, domain.ErrCustomerNotFound)
		}
		return domain.Customer{}, fmt.Errorf("find customer %s: %w: %w", id, domain.ErrStorageUnavailable, err)
	}
	return c, nil
}

type productRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewProductRepository создаёт SQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB(), sb: store.sb}
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	query, args, err := r.sb.Insert("products").
		Columns("id", "name", "price").
		Values(product.ID, product.Name, product.Price).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert product: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert product %s: %w", product.ID, classify(err))
	}
	return nil
}

func (r *productRepository) Find(ctx context.Context, id string) (domain.Product, error) {
	query, args, err := r.sb.Select("id", "name", "price").
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Product{}, fmt.Errorf("build select product: %w", err)
	}

	var p domain.Product
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("find product %s: %w", id, domain.ErrProductNotFound)
		}
		return domain.Product{}, fmt.Errorf("find product %s: %w: %w", id, domain.ErrStorageUnavailable, err)
	}
	return p, nil
}

var (
	_ domain.CustomerRepository = (*customerRepository)(nil)
	_ domain.ProductRepository  = (*productRepository)(nil)
)
