package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Address: value object адреса клиента.
type Address struct {
	Street string
	Number int
	Zip    string
	City   string
}

// Validate проверяет, что адрес заполнен.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" || a.Number <= 0 ||
		strings.TrimSpace(a.Zip) == "" || strings.TrimSpace(a.City) == "" {
		return ErrAddressInvalid
	}
	return nil
}

// Customer: внешний для заказа агрегат, заказ хранит только его ID.
type Customer struct {
	ID      string
	Name    string
	Address Address
}

// NewCustomer собирает клиента и проверяет его инварианты.
func NewCustomer(id, name string, address Address) (Customer, error) {
	var errs []error
	if strings.TrimSpace(id) == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if err := address.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Customer{}, errors.Join(errs...)
	}
	return Customer{ID: id, Name: name, Address: address}, nil
}

// Product: внешний для заказа агрегат. Имя и цена копируются в позицию заказа.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// NewProduct собирает товар и проверяет его инварианты.
func NewProduct(id, name string, price decimal.Decimal) (Product, error) {
	var errs []error
	if strings.TrimSpace(id) == "" {
		errs = append(errs, ErrProductRequired)
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if price.IsNegative() {
		errs = append(errs, ErrItemPriceInvalid)
	}
	errs = append(errs, validateAmount(price)...)
	if len(errs) > 0 {
		return Product{}, errors.Join(errs...)
	}
	return Product{ID: id, Name: name, Price: price}, nil
}

// NewItem снимает копию имени и цены товара в новую позицию заказа.
func (p Product) NewItem(itemID string, quantity int) (OrderItem, error) {
	return NewOrderItem(itemID, p.Name, p.Price, p.ID, quantity)
}
