package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soltixdb/tagwatch/internal/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultPrefix is the etcd key prefix for series definitions
const DefaultPrefix = "/tagwatch/series/"

// EtcdOptions configures an EtcdRegistry
type EtcdOptions struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
	Prefix      string
	CacheTTL    time.Duration
}

// EtcdRegistry stores series definitions as JSON under Prefix/<external_id>
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string
	cache  *seriesCache
}

// NewEtcdRegistry connects to etcd
func NewEtcdRegistry(opts EtcdOptions) (*EtcdRegistry, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
		Username:    opts.Username,
		Password:    opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return newEtcdRegistryWithClient(client, opts.Prefix, opts.CacheTTL), nil
}

func newEtcdRegistryWithClient(client *clientv3.Client, prefix string, ttl time.Duration) *EtcdRegistry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdRegistry{
		client: client,
		prefix: prefix,
		cache:  newSeriesCache(ttl),
	}
}

func (r *EtcdRegistry) key(externalID string) string {
	return r.prefix + externalID
}

// EnsureSeries creates the key only if it has never been written, in a single
// transaction, so concurrent callers agree on the stored definition.
func (r *EtcdRegistry) EnsureSeries(ctx context.Context, spec SeriesSpec) (*SeriesSpec, bool, error) {
	if err := spec.Validate(); err != nil {
		return nil, false, err
	}
	key := r.key(spec.ExternalID)

	if cached, ok := r.cache.get(key); ok {
		return cached, false, nil
	}

	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal series: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, utils.RegistryTimeout)
	defer cancel()

	resp, err := r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure series %s: %w", spec.ExternalID, err)
	}

	if resp.Succeeded {
		r.cache.set(key, &spec)
		return cloneSpec(&spec), true, nil
	}

	kvs := resp.Responses[0].GetResponseRange().Kvs
	if len(kvs) == 0 {
		return nil, false, fmt.Errorf("series %s vanished during ensure", spec.ExternalID)
	}
	var stored SeriesSpec
	if err := json.Unmarshal(kvs[0].Value, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal series: %w", err)
	}
	r.cache.set(key, &stored)
	return &stored, false, nil
}

// Get implements Registry
func (r *EtcdRegistry) Get(ctx context.Context, externalID string) (*SeriesSpec, error) {
	key := r.key(externalID)
	if cached, ok := r.cache.get(key); ok {
		return cached, nil
	}

	resp, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get series from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, externalID)
	}

	var spec SeriesSpec
	if err := json.Unmarshal(resp.Kvs[0].Value, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal series: %w", err)
	}
	r.cache.set(key, &spec)
	return &spec, nil
}

// List implements Registry. Entries that fail to decode are skipped.
func (r *EtcdRegistry) List(ctx context.Context) ([]*SeriesSpec, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list series from etcd: %w", err)
	}

	out := make([]*SeriesSpec, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var spec SeriesSpec
		if err := json.Unmarshal(kv.Value, &spec); err != nil {
			continue
		}
		out = append(out, &spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

// Delete removes a series
func (r *EtcdRegistry) Delete(ctx context.Context, externalID string) error {
	key := r.key(externalID)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete series from etcd: %w", err)
	}
	r.cache.remove(key)
	return nil
}

// Close implements Registry
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
