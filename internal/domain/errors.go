package domain

import (
	"errors"
	"fmt"
)

// Ошибки валидации агрегатов.
var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора позиции.
	ErrItemIDRequired = errors.New("item id is required")
	// Ошибка повторяющегося идентификатора позиции внутри заказа.
	ErrItemIDDuplicate = errors.New("item id must be unique within the order")
	// Ошибка отсутствующей ссылки на товар.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка цены с дробной частью мельче копейки.
	ErrPriceScale = errors.New("price must have at most two decimal places")
	// Ошибка суммы, не помещающейся в NUMERIC(14,2).
	ErrAmountOutOfRange = errors.New("amount is out of range")
	// Ошибка отсутствующего имени клиента или товара.
	ErrNameRequired = errors.New("name is required")
	// Ошибка неполного адреса клиента.
	ErrAddressInvalid = errors.New("address is incomplete")
)

// Ошибки хранилища. Репозитории всегда возвращают одну из них (возможно, обёрнутую),
// вызывающий код проверяет их через errors.Is.
var (
	// ErrDuplicateIdentity: запись с таким идентификатором уже существует.
	ErrDuplicateIdentity = errors.New("duplicate identity")
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation: хранилище отвергло запись (например, нет клиента или товара).
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrTransactionAborted: шаг многострочной записи упал, транзакция откатилась.
	ErrTransactionAborted = errors.New("transaction aborted")
	// ErrStorageUnavailable: хранилище недоступно или чтение не удалось.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
)

// IsNotFound проверяет, что ошибка означает отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateIdentity проверяет конфликт идентификаторов.
func IsDuplicateIdentity(err error) bool {
	return errors.Is(err, ErrDuplicateIdentity)
}

// IsTransactionAborted проверяет, что многострочная запись была откатена.
func IsTransactionAborted(err error) bool {
	return errors.Is(err, ErrTransactionAborted)
}

// IsValidation проверяет, что ошибка означает нарушение инвариантов агрегата.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrOrderIDRequired, ErrCustomerRequired, ErrItemIDRequired, ErrItemIDDuplicate,
		ErrProductRequired, ErrItemQtyInvalid, ErrItemPriceInvalid, ErrPriceScale, ErrAmountOutOfRange,
		ErrNameRequired, ErrAddressInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
