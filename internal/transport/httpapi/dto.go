package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type addressDTO struct {
	Street string `json:"street" validate:"required"`
	Number int    `json:"number" validate:"gt=0"`
	Zip    string `json:"zip"    validate:"required"`
	City   string `json:"city"   validate:"required"`
}

type createCustomerRequest struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"    validate:"required"`
	Address addressDTO `json:"address" validate:"required"`
}

type customerResponse struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Address addressDTO `json:"address"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:   c.ID,
		Name: c.Name,
		Address: addressDTO{
			Street: c.Address.Street,
			Number: c.Address.Number,
			Zip:    c.Address.Zip,
			City:   c.Address.City,
		},
	}
}

type createProductRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"  validate:"required"`
	Price decimal.Decimal `json:"price"`
}

type productResponse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Price: p.Price}
}

// itemRequest ссылается на товар; имя и цена берутся из каталога.
type itemRequest struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"   validate:"gt=0"`
}

type createOrderRequest struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customer_id" validate:"required"`
	Items      []itemRequest `json:"items"       validate:"dive"`
}

type updateOrderRequest struct {
	CustomerID string        `json:"customer_id" validate:"required"`
	Items      []itemRequest `json:"items"       validate:"dive"`
}

type itemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

type orderResponse struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Items      []itemResponse  `json:"items"`
	Total      decimal.Decimal `json:"total"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, itemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Total:     item.Total(),
		})
	}
	return orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Items:      items,
		Total:      o.Total(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
