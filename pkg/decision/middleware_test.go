package decision

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/errdefs"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, d *Decider, principal *rbac.Principal, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	router.Handle("/tenants/{tenant_id}/audit", RequirePermission(d, ModeAll, permAuditRead)(okHandler()))

	r := httptest.NewRequest("GET", target, nil)
	if principal != nil {
		r = r.WithContext(WithPrincipal(r.Context(), principal))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestRequirePermissionAllows(t *testing.T) {
	d := NewDecider(&staticSource{set: rbac.NewPermissionSet(permAuditRead)}, &staticGuard{})
	w := serve(t, d, customer(1), "/tenants/1/audit")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	d := NewDecider(&staticSource{}, &staticGuard{})
	w := serve(t, d, nil, "/tenants/1/audit")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermissionForbidden(t *testing.T) {
	d := NewDecider(&staticSource{set: rbac.NewPermissionSet()}, &staticGuard{})
	w := serve(t, d, customer(1), "/tenants/1/audit")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermissionCrossTenantLooksLikeMissingResource(t *testing.T) {
	guard := &staticGuard{err: errdefs.TenantAccessDenied("cross tenant")}
	d := NewDecider(&staticSource{set: rbac.NewPermissionSet(permAuditRead)}, guard)
	w := serve(t, d, customer(1), "/tenants/2/audit")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequirePermissionMalformedTenant(t *testing.T) {
	// A garbled tenant id is rejected outright rather than resolved from a
	// lower-precedence source.
	d := NewDecider(&staticSource{set: rbac.NewPermissionSet(permAuditRead)}, &staticGuard{})
	w := serve(t, d, customer(1), "/tenants/not-a-number/audit")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := &rbac.Principal{ID: 42, Tier: catalog.TierAdvisor}
	ctx := WithPrincipal(httptest.NewRequest("GET", "/", nil).Context(), p)
	assert.Equal(t, p, PrincipalFromContext(ctx))
	assert.Nil(t, PrincipalFromContext(httptest.NewRequest("GET", "/", nil).Context()))
}
