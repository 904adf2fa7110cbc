package helpers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/observability/logger"
)

// Standard Error Responses

var (
	ErrInvalidJSON         = &HTTPError{Code: "invalid_json", Message: "Invalid JSON format", Status: http.StatusBadRequest}
	ErrBadRequest          = &HTTPError{Code: "bad_request", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized        = &HTTPError{Code: "unauthorized", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden           = &HTTPError{Code: "forbidden", Message: "Forbidden", Status: http.StatusForbidden}
	ErrNotFound            = &HTTPError{Code: "not_found", Message: "Not found", Status: http.StatusNotFound}
	ErrTooManyRequests     = &HTTPError{Code: "too_many_requests", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrInternalServerError = &HTTPError{Code: "internal_error", Message: "Internal server error", Status: http.StatusInternalServerError}
)

// HTTPError es el error estándar de la API.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail devuelve una copia con detalle específico.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	return &HTTPError{
		Code:    e.Code,
		Message: e.Message,
		Detail:  detail,
		Status:  e.Status,
	}
}

// FromDomain mapea la taxonomía de errores del dominio a respuestas HTTP.
// Nunca filtra el detalle interno: "credencial inválida" y "cuenta
// deshabilitada" le llegan igual al cliente.
func FromDomain(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	var rl *autherr.RateLimitError
	if errors.As(err, &rl) {
		return ErrTooManyRequests
	}
	switch {
	case errors.Is(err, autherr.ErrAuthentication):
		return ErrUnauthorized
	case errors.Is(err, autherr.ErrTenantIsolation):
		// Recurso ajeno e inexistente: indistinguibles.
		return ErrNotFound
	case errors.Is(err, autherr.ErrAuthorization):
		return ErrForbidden
	case errors.Is(err, autherr.ErrRateLimited):
		return ErrTooManyRequests
	default:
		return ErrInternalServerError
	}
}

// WriteError escribe el error mapeado. Los rate limits llevan Retry-After.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := FromDomain(err)
	if httpErr == ErrInternalServerError {
		logger.From(r.Context()).Error("request failed", logger.Err(err))
	}
	var rl *autherr.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}
