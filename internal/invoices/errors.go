package invoices

import (
	"errors"
	"net/http"
)

// Domain errors for invoice operations.
var (
	ErrNotFound      = errors.New("invoice not found")
	ErrDuplicate     = errors.New("invoice already exists")
	ErrStateConflict = errors.New("illegal status transition")
	ErrDecisionTaken = errors.New("invoice already decided by a different actor")
	ErrMissingActor  = errors.New("decision actor is required")
	ErrMissingReason = errors.New("rejection reason is required")
	ErrEmptyBatch    = errors.New("export batch contains no invoices")
)

// MapHTTPStatus maps invoice domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrStateConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrDecisionTaken) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrMissingActor) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrMissingReason) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrEmptyBatch) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
