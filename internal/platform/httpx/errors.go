// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by HTTP handlers.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("malformed request")
)

// ErrorMapping binds a sentinel error to an HTTP status and problem title.
type ErrorMapping struct {
	Err    error
	Status int
	Title  string
}

var baseMappings = []ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrValidation, Status: http.StatusUnprocessableEntity, Title: "Validation Failed"},
	{Err: ErrBadRequest, Status: http.StatusBadRequest, Title: "Bad Request"},
}

// RespondError maps err to an RFC7807 response. Package specific mappings are
// consulted first; unknown errors become a 500 without leaking details.
func RespondError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	for _, m := range append(mappings, baseMappings...) {
		if errors.Is(err, m.Err) {
			Problem(w, m.Status, m.Title, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
