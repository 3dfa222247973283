package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"delixmi-order-services/internal/auth"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func GetPrincipal(ctx context.Context) (*auth.Principal, bool) {
	value := ctx.Value(principalContextKey)
	if value == nil {
		return nil, false
	}
	p, ok := value.(*auth.Principal)
	return p, ok
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}

// RequireAuth verifies the bearer token and resolves the principal's role
// bindings from the database. Role bindings in the database are authoritative;
// the token only carries identity.
func RequireAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenMissing):
					writeAuthError(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization token required")
				case errors.Is(err, auth.ErrTokenExpired):
					writeAuthError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Authorization token expired")
				default:
					writeAuthError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authorization token invalid")
				}
				return
			}

			principal, err := LoadPrincipal(r.Context(), db, claims.UserID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					writeAuthError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authorization token invalid")
					return
				}
				writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve account")
				return
			}
			if !principal.IsActive {
				writeAuthError(w, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "Account is inactive")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole gates a subtree to principals carrying at least one of the
// given roles. Target-scoped decisions still go through auth.Evaluate inside
// the handler.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization token required")
				return
			}
			if !principal.HasRole(roles...) && !principal.HasRole(auth.RoleSuperAdmin) {
				writeAuthError(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func LoadPrincipal(ctx context.Context, db *pgxpool.Pool, userID int64) (*auth.Principal, error) {
	principal := &auth.Principal{UserID: userID}

	if err := db.QueryRow(ctx, `select is_active from users where id = $1`, userID).Scan(&principal.IsActive); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `
		select r.name, ur.restaurant_id, ur.branch_id
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name         string
			restaurantID pgtype.Int8
			branchID     pgtype.Int8
		)
		if err := rows.Scan(&name, &restaurantID, &branchID); err != nil {
			return nil, err
		}
		binding := auth.RoleBinding{Role: auth.Role(name)}
		if restaurantID.Valid {
			binding.RestaurantID = &restaurantID.Int64
		}
		if branchID.Valid {
			binding.BranchID = &branchID.Int64
		}
		principal.Bindings = append(principal.Bindings, binding)
	}

	return principal, rows.Err()
}
