package cache

import (
	"testing"
	"time"

	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(1<<20, time.Minute)
	defer c.Close()

	tree := &models.Rule{Kind: models.KindStylesheet}
	key := KeyForContent("a{color:red}")
	require.NoError(t, c.Set(key, tree, 12, 0))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, tree, got)

	_, ok = c.Get(KeyForContent("b{}"))
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats["hits"])
	assert.Equal(t, uint64(1), stats["misses"])
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	// each entry costs 1024 overhead + its size
	c := NewMemoryCache(2*1024+200, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set("a", &models.Rule{}, 100, 0))
	require.NoError(t, c.Set("b", &models.Rule{}, 100, 0))
	_, _ = c.Get("a")
	require.NoError(t, c.Set("c", &models.Rule{}, 100, 0))

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(1<<20, time.Minute)
	defer c.Close()

	require.NoError(t, c.Set("k", &models.Rule{}, 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats()["entries"])
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0, 0)
	defer c.Close()

	require.NoError(t, c.Set("k", &models.Rule{}, 1, 0))
	require.NoError(t, c.Delete("k"))
	require.NoError(t, c.Delete("missing"))
	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("x", &models.Rule{}, 1, 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, int64(0), c.Stats()["size_bytes"])
}

func TestKeyForContentIsStable(t *testing.T) {
	assert.Equal(t, KeyForContent("a"), KeyForContent("a"))
	assert.NotEqual(t, KeyForContent("a"), KeyForContent("b"))
	assert.Len(t, KeyForContent(""), 64)
}
