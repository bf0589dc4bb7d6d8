package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cheems/transit/internal/models"
	pkghttp "github.com/cheems/transit/pkg/http"
)

// writeServiceError maps sentinel errors from the service layer onto HTTP
// responses. Messages of unexpected errors are never echoed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, clientMessage(err, models.ErrNotFound))
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, clientMessage(err, models.ErrBadRequest))
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "unauthorized")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "forbidden")
	default:
		pkghttp.WriteInternalError(w, "internal server error")
	}
}

// clientMessage strips the sentinel prefix from a wrapped error, leaving the
// detail the service attached ("bad request: field name required" becomes
// "field name required").
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 200)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func isConflict(err error) bool {
	return errors.Is(err, models.ErrConflict)
}
