package tenancy

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantguard/iamcore/pkg/catalog"
	"github.com/tenantguard/iamcore/pkg/errdefs"
	"github.com/tenantguard/iamcore/pkg/rbac"
)

func TestResolvePrecedence(t *testing.T) {
	tid := int64(9)
	principal := &rbac.Principal{ID: 1, Tier: catalog.TierCustomer, TenantID: &tid}

	// Path parameter wins over everything
	id, ok, err := Resolve(ContextSources{PathParam: "1", Header: "2", QueryParam: "3", Principal: principal})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	// Header beats query and claim
	id, ok, err = Resolve(ContextSources{Header: "2", QueryParam: "3", Principal: principal})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	// Query beats the claim
	id, ok, err = Resolve(ContextSources{QueryParam: "3", Principal: principal})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	// Claim is the fallback
	id, ok, err = Resolve(ContextSources{Principal: principal})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}

func TestResolveNoSource(t *testing.T) {
	_, ok, err := Resolve(ContextSources{})
	require.NoError(t, err)
	assert.False(t, ok)

	// Platform principals carry no home tenant claim
	_, ok, err = Resolve(ContextSources{Principal: &rbac.Principal{ID: 1, Tier: catalog.TierPlatformAdmin}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMalformedValueFails(t *testing.T) {
	// A malformed explicit source never falls through to the next one.
	_, ok, err := Resolve(ContextSources{PathParam: "not-a-number", Header: "4"})
	assert.False(t, ok)
	assert.True(t, errdefs.IsValidation(err))

	tid := int64(9)
	_, ok, err = Resolve(ContextSources{
		Header:    "abc",
		Principal: &rbac.Principal{ID: 1, Tier: catalog.TierCustomer, TenantID: &tid},
	})
	assert.False(t, ok)
	assert.True(t, errdefs.IsValidation(err))
}

func TestResolveFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/tenants/12/roles?tenant_id=99", nil)
	r.Header.Set(TenantHeader, "50")
	r = mux.SetURLVars(r, map[string]string{"tenant_id": "12"})

	id, ok, err := ResolveFromRequest(r, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	// Without the route var the header wins
	r2 := httptest.NewRequest("GET", "/roles?tenant_id=99", nil)
	r2.Header.Set(TenantHeader, "50")
	id, ok, err = ResolveFromRequest(r2, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(50), id)
}
