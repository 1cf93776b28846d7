package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

var errMalformedBody = errors.New("malformed request body")

// statusFor сопоставляет ошибку HTTP-статусу. Конкретная причина важнее факта
// отката: aborted с нарушением ограничения отдаёт 422, а не 500.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, errMalformedBody), errors.As(err, &validationErrs), domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
