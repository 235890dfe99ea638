package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLaunchSet(t *testing.T) {
	c := DefaultCatalog()
	names := c.DefaultLaunchSet()
	require.NotEmpty(t, names)
	for _, n := range names {
		assert.True(t, c.Contains(n))
	}
	assert.Contains(t, names, "com.balihoo.fulfillment.workers.htmlrenderer")
	assert.NotContains(t, names, "com.balihoo.fulfillment.workers.layoutrenderer")
}

func TestResolveExactMatch(t *testing.T) {
	c := DefaultCatalog()
	got := c.Resolve("com.balihoo.fulfillment.workers.htmlrenderer")
	assert.Equal(t, "com.balihoo.fulfillment.workers.htmlrenderer", got)
}

func TestResolvePartialMatch(t *testing.T) {
	c := DefaultCatalog()
	got := c.Resolve("htmlrenderer")
	assert.Equal(t, "com.balihoo.fulfillment.workers.htmlrenderer", got)
}

func TestResolvePassthrough(t *testing.T) {
	c := DefaultCatalog()
	got := c.Resolve("com.x.y.z.unknown")
	assert.Equal(t, "com.x.y.z.unknown", got)
}

func TestResolveIsIdempotent(t *testing.T) {
	c := DefaultCatalog()
	for _, input := range []string{"htmlrenderer", "com.x.y.z.unknown", "adwords"} {
		once := c.Resolve(input)
		twice := c.Resolve(once)
		assert.Equal(t, once, twice, "resolve(resolve(%q)) should equal resolve(%q)", input, input)
	}
}

func TestResolveScansInDeclaredOrder(t *testing.T) {
	// "adwords" is a substring of several entries; the first declared one wins.
	c := DefaultCatalog()
	got := c.Resolve("adwords")
	assert.Equal(t, "com.balihoo.fulfillment.workers.adwords_accountcreator", got)
}
