package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai/timeout"
)

// Catalog caches the snapshot of a Source for a TTL.
// Concurrent loads, including explicit reloads, share one Source call.
type Catalog struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
	loadedAt time.Time

	group singleflight.Group
}

// New creates a catalog over source. A non-positive ttl uses timeout.CatalogTTL.
func New(source Source, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = timeout.CatalogTTL
	}
	return &Catalog{source: source, ttl: ttl, now: time.Now}
}

// Snapshot returns the cached snapshot, loading it when missing or stale.
// A stale snapshot is still served if the refresh fails.
// An empty catalog is a CatalogEmpty error.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap, loadedAt := c.snapshot, c.loadedAt
	c.mu.RUnlock()

	if snap != nil && c.now().Sub(loadedAt) < c.ttl {
		return snap, nil
	}

	fresh, err := c.load(ctx)
	if err != nil {
		if snap != nil {
			slog.Warn("catalog refresh failed, serving stale snapshot", "error", err, "services", snap.Len())
			return snap, nil
		}
		return nil, err
	}
	return fresh, nil
}

// Reload forces a refresh from the source.
func (c *Catalog) Reload(ctx context.Context) (*Snapshot, error) {
	return c.load(ctx)
}

func (c *Catalog) load(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.group.Do("load", func() (any, error) {
		services, err := c.source.ListActiveServices(ctx)
		if err != nil {
			return nil, funnelerrors.CatalogEmpty(err)
		}
		if len(services) == 0 {
			return nil, funnelerrors.CatalogEmpty(nil)
		}

		snap := NewSnapshot(services)
		c.mu.Lock()
		c.snapshot = snap
		c.loadedAt = c.now()
		c.mu.Unlock()

		slog.Info("catalog loaded", "services", snap.Len())
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
