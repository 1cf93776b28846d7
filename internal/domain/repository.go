package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ и все его позиции. ErrDuplicateIdentity, если ID занят.
	Create(ctx context.Context, order Order) error
	// Update атомарно заменяет набор позиций и обновляет строку заказа.
	// ErrOrderNotFound, если заказа нет; ErrTransactionAborted, если упал любой шаг.
	Update(ctx context.Context, order Order) error
	// Find возвращает заказ со всеми позициями или ErrOrderNotFound.
	Find(ctx context.Context, id string) (Order, error)
	// FindAll возвращает все заказы целиком либо ошибку, частичного результата не бывает.
	FindAll(ctx context.Context) ([]Order, error)
}

// CustomerRepository: хранилище клиентов; для заказов нужны только ссылки на них.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	Find(ctx context.Context, id string) (Customer, error)
}

// ProductRepository: хранилище товаров.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Find(ctx context.Context, id string) (Product, error)
}
