// Package cache provides the per-tenant flat resolution cache that keeps hot
// visitor-entry paths from rescanning the Flats table on every request.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gateflow-app/gateflow/domains/flats/be/repo"
)

// DefaultTTL bounds how stale a cached flat may be. A unit deactivated in
// the backing store can still resolve as active for up to this long.
const DefaultTTL = 300 * time.Second

type tenantEntry struct {
	byNo    map[string]repo.Flat
	expires time.Time
}

// Resolver caches active flats per tenant, keyed by normalized flat number.
// Cache failures never fail a request: resolution falls back to a direct
// repository scan.
type Resolver struct {
	repo   repo.Repository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantEntry
	group   singleflight.Group
}

// New constructs a Resolver. A non-positive ttl falls back to DefaultTTL.
func New(r repo.Repository, ttl time.Duration, logger *zap.Logger) *Resolver {
	if r == nil {
		panic("flats repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		repo:    r,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		tenants: make(map[string]*tenantEntry),
	}
}

// Resolve looks up a flat by reference (internal id or display number)
// within the tenant. The cached map is consulted first; on a miss the direct
// scan path decides, so inactive or newly added units are still found with
// their current state.
func (c *Resolver) Resolve(ctx context.Context, societyID, ref string) (repo.Flat, bool, error) {
	flat, found, live := c.cached(societyID, ref)
	if found {
		return flat, true, nil
	}
	if !live {
		if err := c.rebuild(ctx, societyID); err != nil {
			// Cache population is a side channel; log and keep going on the
			// direct path.
			c.logger.Warn("flat cache rebuild failed",
				zap.String("tenant", societyID), zap.Error(err))
		} else if flat, found, _ = c.cached(societyID, ref); found {
			return flat, true, nil
		}
	}

	return c.direct(ctx, societyID, ref)
}

// Warm opportunistically inserts a freshly resolved flat without triggering
// a full rebuild. It only touches tenants that already have a live entry.
func (c *Resolver) Warm(societyID string, flat repo.Flat) {
	if !flat.Active {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tenants[societyID]
	if !ok || c.now().After(entry.expires) {
		return
	}
	entry.byNo[repo.NormalizeNo(flat.FlatNo)] = flat
}

// Invalidate drops the tenant's cached entry.
func (c *Resolver) Invalidate(societyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tenants, societyID)
}

// cached resolves ref against the tenant's live entry. The map is shared
// with Warm, so the whole lookup runs under the mutex. live reports whether
// the entry exists and is within its TTL; found implies live.
func (c *Resolver) cached(societyID, ref string) (flat repo.Flat, found, live bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tenants[societyID]
	if !ok || c.now().After(entry.expires) {
		return repo.Flat{}, false, false
	}
	flat, found = lookup(entry.byNo, ref)
	return flat, found, true
}

// rebuild reads the full Flats table for the tenant and installs a fresh
// entry. Concurrent misses for the same tenant collapse into a single read.
func (c *Resolver) rebuild(ctx context.Context, societyID string) error {
	_, err, _ := c.group.Do(societyID, func() (interface{}, error) {
		flats, err := c.repo.ListBySociety(ctx, societyID)
		if err != nil {
			return nil, err
		}

		byNo := make(map[string]repo.Flat, len(flats))
		for _, flat := range flats {
			byNo[repo.NormalizeNo(flat.FlatNo)] = flat
		}

		c.mu.Lock()
		c.tenants[societyID] = &tenantEntry{byNo: byNo, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()

		return nil, nil
	})
	return err
}

// direct is the uncached resolution path: tolerant number match first, then
// internal id.
func (c *Resolver) direct(ctx context.Context, societyID, ref string) (repo.Flat, bool, error) {
	flat, ok, err := c.repo.ByNo(ctx, societyID, ref)
	if err != nil {
		return repo.Flat{}, false, err
	}
	if ok {
		c.Warm(societyID, flat)
		return flat, true, nil
	}

	flat, ok, err = c.repo.ByID(ctx, societyID, ref)
	if err != nil {
		return repo.Flat{}, false, err
	}
	if ok {
		c.Warm(societyID, flat)
	}
	return flat, ok, nil
}

func lookup(flats map[string]repo.Flat, ref string) (repo.Flat, bool) {
	if flat, ok := flats[repo.NormalizeNo(ref)]; ok {
		return flat, true
	}
	// The reference may be an internal id rather than a display number.
	for _, flat := range flats {
		if flat.FlatID == ref {
			return flat, true
		}
	}
	return repo.Flat{}, false
}
