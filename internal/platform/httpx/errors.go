// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrBadRequest marks malformed request bodies or path parameters.
var ErrBadRequest = shared.NewError(shared.ErrValidation, "bad request")

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807. Integrity
// and internal failures never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := shared.KindOf(err)
	switch {
	case status == http.StatusInternalServerError:
		Problem(w, status, "Internal Error", "")
	case errors.Is(err, shared.ErrTransient):
		w.Header().Set("Retry-After", "1")
		Problem(w, status, "Retry Later", err.Error())
	default:
		ProblemKind(w, status, string(kind), http.StatusText(status), err.Error())
	}
}
