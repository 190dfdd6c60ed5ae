package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ByKey(t *testing.T) {
	c := Default()

	d, err := c.ByKey("starter")
	require.NoError(t, err)
	assert.Equal(t, "Starter", d.DisplayName)
	assert.Equal(t, 2, d.PackAllotment.NativeInstances)

	_, err = c.ByKey("enterprise")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_ByName_CaseInsensitive(t *testing.T) {
	c := Default()

	for _, name := range []string{"Pro", "pro", "PRO", "  Pro  "} {
		d, err := c.ByName(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, "pro", d.Key)
	}

	_, err := c.ByName("Ultimate")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_TotalPrice(t *testing.T) {
	c := Default()

	total, err := c.TotalPrice("pro", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(29970), total)

	_, err = c.TotalPrice("nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_List_PreservesOrder(t *testing.T) {
	c := NewCatalog(
		Definition{Key: "b", DisplayName: "B"},
		Definition{Key: "a", DisplayName: "A"},
	)

	defs := c.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "b", defs[0].Key)
	assert.Equal(t, "a", defs[1].Key)
}

func TestAllotment_Of(t *testing.T) {
	a := Allotment{
		NativeInstances:   1,
		ExternalInstances: 2,
		InternalAgents:    3,
		ExternalAgents:    4,
	}

	assert.Equal(t, 1, a.Of(ResourceNativeInstances))
	assert.Equal(t, 2, a.Of(ResourceExternalInstances))
	assert.Equal(t, 3, a.Of(ResourceInternalAgents))
	assert.Equal(t, 4, a.Of(ResourceExternalAgents))
	assert.Equal(t, 0, a.Of(Resource("unknown")))
}

func TestResource_Valid(t *testing.T) {
	for _, r := range Resources {
		assert.True(t, r.Valid(), "resource %s", r)
	}
	assert.False(t, Resource("gpu_hours").Valid())
}
