package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry keeps series in process memory
type MemoryRegistry struct {
	mu     sync.RWMutex
	series map[string]*SeriesSpec
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{series: make(map[string]*SeriesSpec)}
}

// EnsureSeries implements Registry
func (r *MemoryRegistry) EnsureSeries(_ context.Context, spec SeriesSpec) (*SeriesSpec, bool, error) {
	if err := spec.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.series[spec.ExternalID]; ok {
		return cloneSpec(existing), false, nil
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}
	stored := cloneSpec(&spec)
	r.series[spec.ExternalID] = stored
	return cloneSpec(stored), true, nil
}

// Get implements Registry
func (r *MemoryRegistry) Get(_ context.Context, externalID string) (*SeriesSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.series[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, externalID)
	}
	return cloneSpec(s), nil
}

// List implements Registry
func (r *MemoryRegistry) List(_ context.Context) ([]*SeriesSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*SeriesSpec, 0, len(r.series))
	for _, s := range r.series {
		out = append(out, cloneSpec(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

// Close implements Registry
func (r *MemoryRegistry) Close() error {
	return nil
}
