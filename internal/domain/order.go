package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

// maxAmount: первое значение, не помещающееся в колонки NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// validateAmount проверяет, что сумма хранится без округления.
func validateAmount(amount decimal.Decimal) []error {
	var errs []error
	if !amount.Equal(amount.Truncate(moneyScale)) {
		errs = append(errs, ErrPriceScale)
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		errs = append(errs, ErrAmountOutOfRange)
	}
	return errs
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции уникален в таблице позиций, но семантически принадлежит заказу.
	ID string
	// Name: снимок названия товара на момент добавления в заказ.
	Name string
	// Price: снимок цены за единицу; не ссылка на текущую цену товара.
	Price decimal.Decimal
	// ProductID: ссылка на товар, не принадлежит заказу.
	ProductID string
	// Quantity: количество единиц, строго больше нуля.
	Quantity int
}

// Total возвращает стоимость позиции: price * quantity.
func (i OrderItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order: корень агрегата: заказ и его позиции.
type Order struct {
	ID         string
	CustomerID string
	Items      []OrderItem
}

// NewOrderItem собирает позицию и проверяет её инварианты.
func NewOrderItem(id, name string, price decimal.Decimal, productID string, quantity int) (OrderItem, error) {
	item := OrderItem{
		ID:        id,
		Name:      name,
		Price:     price,
		ProductID: productID,
		Quantity:  quantity,
	}
	if errs := item.validate(); len(errs) > 0 {
		return OrderItem{}, errors.Join(errs...)
	}
	return item, nil
}

// NewOrder собирает заказ и возвращает все нарушенные инварианты разом.
func NewOrder(id, customerID string, items []OrderItem) (Order, error) {
	order := Order{
		ID:         id,
		CustomerID: customerID,
		Items:      append([]OrderItem(nil), items...),
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Order{}, errors.Join(errs...)
	}
	return order, nil
}

// Total пересчитывает сумму заказа по позициям. Источник истины здесь позиции,
// колонка total в хранилище лишь денормализованная копия.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Total())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
// Пустой список позиций допустим.
func (o Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.ID) == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if strings.TrimSpace(o.CustomerID) == "" {
		errs = append(errs, ErrCustomerRequired)
	}

	seen := make(map[string]struct{}, len(o.Items))
	for _, item := range o.Items {
		errs = append(errs, item.validate()...)
		if _, dup := seen[item.ID]; dup {
			errs = append(errs, ErrItemIDDuplicate)
		}
		seen[item.ID] = struct{}{}
	}
	if o.Total().Abs().GreaterThanOrEqual(maxAmount) {
		errs = append(errs, ErrAmountOutOfRange)
	}

	return errs
}

func (i OrderItem) validate() []error {
	var errs []error
	if strings.TrimSpace(i.ID) == "" {
		errs = append(errs, ErrItemIDRequired)
	}
	if strings.TrimSpace(i.ProductID) == "" {
		errs = append(errs, ErrProductRequired)
	}
	if i.Quantity <= 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}
	if i.Price.IsNegative() {
		errs = append(errs, ErrItemPriceInvalid)
	}
	errs = append(errs, validateAmount(i.Price)...)
	return errs
}
