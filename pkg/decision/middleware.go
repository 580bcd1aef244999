package decision

import (
	"context"
	"net/http"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/rbac"
	"github.com/tenantguard/iamcore/pkg/tenancy"
)

type contextKey string

const principalKey contextKey = "iamcore_principal"

// WithPrincipal attaches an authenticated principal to the context.
// Authentication itself happens upstream; this module only consumes the
// result.
func WithPrincipal(ctx context.Context, principal *rbac.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the principal set by WithPrincipal.
func PrincipalFromContext(ctx context.Context) *rbac.Principal {
	if p, ok := ctx.Value(principalKey).(*rbac.Principal); ok {
		return p
	}
	return nil
}

// RequirePermission returns middleware gating a route on the decider.
// Tenant context is resolved from the request (path var, header, query,
// home-tenant claim). Denials map to 403 for missing permissions and 404
// for tenant boundary violations, preserving cross-tenant opacity.
func RequirePermission(d *Decider, mode Mode, required ...catalog.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			tenantID, _, err := tenancy.ResolveFromRequest(r, principal)
			if err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}

			result, err := d.Decide(r.Context(), Check{
				Principal:     principal,
				Required:      required,
				Mode:          mode,
				TenantContext: tenantID,
			})
			if err != nil {
				http.Error(w, "authorization check failed", http.StatusInternalServerError)
				return
			}

			if !result.Allowed {
				switch result.Code {
				case "NOT_FOUND":
					http.Error(w, "not found", http.StatusNotFound)
				case "VALIDATION":
					http.Error(w, "bad request", http.StatusBadRequest)
				default:
					http.Error(w, "insufficient permissions", http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
