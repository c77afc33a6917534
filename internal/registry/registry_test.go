package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/tagwatch/internal/config"
)

func TestMemoryRegistry_EnsureSeries(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	spec := SeriesSpec{
		ExternalID: "SITE.TIC-101.est_ttf",
		Name:       "TIC-101 estimated TTF",
		Unit:       "h",
		Metadata:   map[string]string{"source": "tagwatch"},
	}

	stored, created, err := r.EnsureSeries(ctx, spec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, stored.CreatedAt.IsZero())

	// Second call returns the original definition untouched
	spec.Unit = "min"
	again, created, err := r.EnsureSeries(ctx, spec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "h", again.Unit)

	// Returned copies do not alias stored state
	again.Metadata["source"] = "changed"
	got, err := r.Get(ctx, spec.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "tagwatch", got.Metadata["source"])
}

func TestMemoryRegistry_GetAndList(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	_, err := r.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSeriesNotFound))

	for _, id := range []string{"b", "a", "c"} {
		_, _, err := r.EnsureSeries(ctx, SeriesSpec{ExternalID: id})
		require.NoError(t, err)
	}

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ExternalID)
	assert.Equal(t, "c", list[2].ExternalID)
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	r := NewMemoryRegistry()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := r.EnsureSeries(context.Background(), SeriesSpec{ExternalID: "same"})
			if err == nil && c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestSeriesSpec_Validate(t *testing.T) {
	assert.Error(t, SeriesSpec{}.Validate())
	assert.Error(t, SeriesSpec{ExternalID: "  "}.Validate())
	assert.NoError(t, SeriesSpec{ExternalID: "x"}.Validate())

	_, _, err := NewMemoryRegistry().EnsureSeries(context.Background(), SeriesSpec{})
	assert.Error(t, err)
}

func TestSeriesCache(t *testing.T) {
	c := newSeriesCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.get("k")
	assert.False(t, ok)

	c.set("k", &SeriesSpec{ExternalID: "k"})
	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "k", got.ExternalID)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok, "entry should expire")

	hits, misses := c.stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)

	c.set("k", &SeriesSpec{ExternalID: "k"})
	c.remove("k")
	_, ok = c.get("k")
	assert.False(t, ok)
}

func TestSeriesCache_ZeroTTLDisables(t *testing.T) {
	c := newSeriesCache(0)
	c.set("k", &SeriesSpec{ExternalID: "k"})
	_, ok := c.get("k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	r, err := New(config.RegistryConfig{}, config.EtcdConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRegistry{}, r)

	_, err = New(config.RegistryConfig{Type: "etcd"}, config.EtcdConfig{})
	assert.Error(t, err, "etcd without endpoints")

	_, err = New(config.RegistryConfig{Type: "consul"}, config.EtcdConfig{})
	assert.Error(t, err)
}
