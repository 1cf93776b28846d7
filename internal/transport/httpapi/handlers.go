package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const maxBodyBytes = 1 << 20

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	return h.validate.Struct(dst)
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := domain.NewCustomer(idOrNew(req.ID), req.Name, domain.Address{
		Street: req.Address.Street,
		Number: req.Address.Number,
		Zip:    req.Address.Zip,
		City:   req.Address.City,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.repos.Customers.Create(r.Context(), customer); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.repos.Customers.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := domain.NewProduct(idOrNew(req.ID), req.Name, req.Price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.repos.Products.Create(r.Context(), product); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.repos.Products.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.buildOrder(r.Context(), idOrNew(req.ID), req.CustomerID, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.repos.Orders.Create(r.Context(), order); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.buildOrder(r.Context(), chi.URLParam(r, "id"), req.CustomerID, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.repos.Orders.Update(r.Context(), order); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.repos.Orders.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repos.Orders.FindAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildOrder снимает имя и цену каждого товара из каталога в позиции заказа.
func (h *handler) buildOrder(ctx context.Context, id, customerID string, reqItems []itemRequest) (domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(reqItems))
	for i, reqItem := range reqItems {
		product, err := h.repos.Products.Find(ctx, reqItem.ProductID)
		if err != nil {
			if domain.IsNotFound(err) {
				return domain.Order{}, fmt.Errorf("%w: item %d references unknown product %s",
					domain.ErrConstraintViolation, i, reqItem.ProductID)
			}
			return domain.Order{}, err
		}

		item, err := product.NewItem(idOrNew(reqItem.ID), reqItem.Quantity)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, item)
	}

	return domain.NewOrder(id, customerID, items)
}
