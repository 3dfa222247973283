package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/middleware"
	"delixmi-order-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

var errMissingParam = errors.New("missing param")

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := chi.URLParam(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	return strconv.ParseInt(value, 10, 64)
}

// requirePrincipal resolves the authenticated principal or answers the
// request itself. Handlers behind RequireAuth always find one; this guards
// against wiring mistakes.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization token required")
		return nil, false
	}
	return principal, true
}

func nullableText(value pgtype.Text) any {
	if !value.Valid {
		return nil
	}
	return value.String
}

func nullableTime(value pgtype.Timestamptz) any {
	if !value.Valid {
		return nil
	}
	return value.Time
}

// readPagination parses page/pageSize query params with sane bounds.
func readPagination(r *http.Request) (limit, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if size < 1 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
