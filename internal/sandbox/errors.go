package sandbox

import (
	"errors"
	"net/http"
)

// Domain errors for sandbox operations.
var (
	ErrNotFound     = errors.New("experiment not found")
	ErrDuplicate    = errors.New("experiment already exists")
	ErrMissingBatch = errors.New("batch name is required")
	ErrMissingModel = errors.New("model name is required")
)

// MapHTTPStatus maps sandbox domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrMissingBatch) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrMissingModel) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
