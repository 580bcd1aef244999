package tenancy

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tenantguard/iamcore/pkg/errdefs"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

// TenantHeader is the header carrying an explicit tenant id.
const TenantHeader = "X-Tenant-ID"

// tenantVar is the route variable and query parameter name for tenant ids.
const tenantVar = "tenant_id"

// ContextSources holds the pre-extracted candidate values a tenant id may
// be resolved from, in precedence order: path parameter, header, query
// parameter, then the principal's own home-tenant claim.
type ContextSources struct {
	PathParam  string
	Header     string
	QueryParam string
	Principal  *rbac.Principal
}

// Resolve returns the tenant id from the first non-empty source in the
// precedence list, or false when no source yields one. The first non-empty
// source wins outright: a malformed explicit value is a validation failure,
// never a fall-through to a lower-precedence source.
func Resolve(sources ContextSources) (int64, bool, error) {
	for _, raw := range []string{sources.PathParam, sources.Header, sources.QueryParam} {
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false, errdefs.Validation("malformed tenant id %q", raw)
		}
		return id, true, nil
	}
	if sources.Principal != nil && sources.Principal.TenantID != nil {
		return *sources.Principal.TenantID, true, nil
	}
	return 0, false, nil
}

// ResolveFromRequest extracts the candidate set from an HTTP request and
// resolves it. The mux route variable takes precedence over the header and
// query parameter.
func ResolveFromRequest(r *http.Request, principal *rbac.Principal) (int64, bool, error) {
	return Resolve(ContextSources{
		PathParam:  mux.Vars(r)[tenantVar],
		Header:     r.Header.Get(TenantHeader),
		QueryParam: r.URL.Query().Get(tenantVar),
		Principal:  principal,
	})
}
