package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry("site")

	require.NoError(t, r.Register("page-fti", "fti", "page", "dynamic"))

	reg, ok := r.Lookup("fti", "page")
	require.True(t, ok)
	assert.Equal(t, "page-fti", reg.Component)
	assert.Equal(t, "dynamic", reg.Info)

	_, ok = r.Lookup("fti", "news")
	assert.False(t, ok)
	assert.Nil(t, r.Query("factory", "page"))

	assert.Error(t, r.Register(nil, "fti", "x", ""))
	assert.Error(t, r.Register("x", "", "x", ""))
}

func TestRegistry_BasesAreConsultedButNotMutated(t *testing.T) {
	global := NewRegistry("global")
	site := NewRegistry("site", global)

	require.NoError(t, global.Register("global-factory", "factory", "page", "manual"))

	reg, ok := site.Lookup("factory", "page")
	require.True(t, ok)
	assert.Equal(t, "global-factory", reg.Component)

	_, ok = site.LookupLocal("factory", "page")
	assert.False(t, ok)

	assert.False(t, site.Unregister("factory", "page"))
	_, ok = global.LookupLocal("factory", "page")
	assert.True(t, ok)

	require.NoError(t, site.Register("local-factory", "factory", "page", "dynamic"))
	assert.Equal(t, "local-factory", site.Query("factory", "page"))
	assert.Equal(t, "global-factory", global.Query("factory", "page"))
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry("site")
	require.NoError(t, r.Register("x", "fti", "page", ""))

	assert.True(t, r.Unregister("fti", "page"))
	assert.False(t, r.Unregister("fti", "page"))
	assert.Empty(t, r.Registrations())
}

func TestRegistry_Registrations(t *testing.T) {
	global := NewRegistry("global")
	site := NewRegistry("site", global)

	require.NoError(t, site.Register("b", "fti", "b", ""))
	require.NoError(t, site.Register("a", "fti", "a", ""))
	require.NoError(t, site.Register("f", "factory", "a", ""))
	require.NoError(t, global.Register("global-a", "fti", "a", ""))
	require.NoError(t, global.Register("c", "fti", "c", ""))

	regs := site.Registrations()
	require.Len(t, regs, 3)
	assert.Equal(t, "factory", regs[0].Provided)
	assert.Equal(t, "a", regs[1].Name)
	assert.Equal(t, "b", regs[2].Name)

	all := site.All("fti")
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Component)
	assert.Equal(t, "c", all[2].Component)
}
