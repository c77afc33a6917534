// Package registry records the series that derived datapoints are pushed to,
// creating them on first use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soltixdb/tagwatch/internal/config"
)

// ErrSeriesNotFound is returned by Get for an unknown external id
var ErrSeriesNotFound = errors.New("series not found")

// SeriesSpec describes a time series
type SeriesSpec struct {
	ExternalID  string            `json:"external_id"`
	Name        string            `json:"name,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Validate checks the spec can be registered
func (s SeriesSpec) Validate() error {
	if strings.TrimSpace(s.ExternalID) == "" {
		return fmt.Errorf("series external_id is required")
	}
	return nil
}

// Registry stores series definitions
type Registry interface {
	// EnsureSeries creates the series if it does not exist and returns the
	// stored definition. created reports whether this call created it.
	EnsureSeries(ctx context.Context, spec SeriesSpec) (stored *SeriesSpec, created bool, err error)

	// Get returns a series or ErrSeriesNotFound
	Get(ctx context.Context, externalID string) (*SeriesSpec, error)

	// List returns all series sorted by external id
	List(ctx context.Context) ([]*SeriesSpec, error)

	// Close releases resources
	Close() error
}

// New creates the registry selected by cfg.Type
func New(cfg config.RegistryConfig, etcd config.EtcdConfig) (Registry, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return NewMemoryRegistry(), nil
	case "etcd":
		return NewEtcdRegistry(EtcdOptions{
			Endpoints:   etcd.Endpoints,
			DialTimeout: etcd.DialTimeout,
			Username:    etcd.Username,
			Password:    etcd.Password,
			Prefix:      cfg.Prefix,
			CacheTTL:    cfg.CacheTTL,
		})
	default:
		return nil, fmt.Errorf("unsupported registry type: %s (supported: memory, etcd)", cfg.Type)
	}
}

func cloneSpec(s *SeriesSpec) *SeriesSpec {
	out := *s
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
