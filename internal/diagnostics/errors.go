package diagnostics

import (
	"errors"
	"net/http"
)

// Domain errors for journal operations.
var (
	ErrEmptyRecord   = errors.New("diagnostic record has no entries")
	ErrInvalidFilter = errors.New("invalid diagnostic filter")
)

// MapHTTPStatus maps journal errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidFilter) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
