// Package location maintains the throttled coordinate-to-place cache.
package location

import (
	"context"
	"log"
	"sync"
	"time"

	locationModel "github.com/yichenzhou/tablemate/internal/model/location"
)

// ResolveThresholdMeters is the movement below which a new fix only
// refreshes coordinates, skipping the expensive reverse-resolve call.
const ResolveThresholdMeters = 1000

// Resolver turns coordinates into place names.
type Resolver interface {
	Reverse(ctx context.Context, lat, lon float64) (city, state, country string, err error)
}

// SnapshotStore persists the last snapshot across launches. Optional.
type SnapshotStore interface {
	SaveSnapshot(snap locationModel.Snapshot) error
}

// Cache holds the last resolved location. All mutation happens on one
// dedicated worker goroutine; the last-resolved coordinate that drives
// throttling is owned exclusively by that worker.
type Cache struct {
	resolver Resolver
	store    SnapshotStore
	now      func() time.Time

	fixes chan locationModel.Fix
	done  chan struct{}

	// Worker-owned. Never touched outside the update goroutine.
	lastResolved *locationModel.Fix

	mu       sync.RWMutex
	snapshot *locationModel.Snapshot
}

// NewCache starts the update worker. Close releases it.
func NewCache(resolver Resolver, store SnapshotStore) *Cache {
	c := &Cache{
		resolver: resolver,
		store:    store,
		now:      time.Now,
		fixes:    make(chan locationModel.Fix, 16),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Seed installs a previously persisted snapshot without touching the
// throttling state, so the first live fix still resolves.
func (c *Cache) Seed(snap locationModel.Snapshot) {
	c.mu.Lock()
	if c.snapshot == nil {
		c.snapshot = &snap
	}
	c.mu.Unlock()
}

// UpdateAsync hands a fix to the worker and returns immediately. When
// the worker is backed up the fix is dropped; location sources deliver
// at an untrusted cadence and the next fix supersedes it anyway.
func (c *Cache) UpdateAsync(fix locationModel.Fix) {
	select {
	case c.fixes <- fix:
	default:
		log.Printf("[location] update queue full, dropping fix")
	}
}

// Close stops the worker.
func (c *Cache) Close() {
	close(c.done)
}

func (c *Cache) run() {
	for {
		select {
		case <-c.done:
			return
		case fix := <-c.fixes:
			c.apply(fix)
		}
	}
}

// apply processes one fix on the worker goroutine.
func (c *Cache) apply(fix locationModel.Fix) {
	if c.lastResolved != nil &&
		locationModel.DistanceMeters(fix, *c.lastResolved) < ResolveThresholdMeters {
		c.refreshCoords(fix)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	city, state, country, err := c.resolver.Reverse(ctx, fix.Latitude, fix.Longitude)
	if err != nil {
		// The cache is never left empty once a fix has been observed:
		// keep the raw coordinates and whatever place fields the last
		// successful resolution produced.
		log.Printf("[location] reverse resolve failed: %v", err)
		c.refreshCoords(fix)
		return
	}

	resolved := fix
	c.lastResolved = &resolved

	snap := locationModel.Snapshot{
		City:      city,
		State:     state,
		Country:   country,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: c.now(),
	}
	c.publish(snap)
}

// refreshCoords updates coordinates only, carrying place fields forward.
func (c *Cache) refreshCoords(fix locationModel.Fix) {
	c.mu.RLock()
	prev := c.snapshot
	c.mu.RUnlock()

	snap := locationModel.Snapshot{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: c.now(),
	}
	if prev != nil {
		snap.City = prev.City
		snap.State = prev.State
		snap.Country = prev.Country
	}
	c.publish(snap)
}

func (c *Cache) publish(snap locationModel.Snapshot) {
	c.mu.Lock()
	c.snapshot = &snap
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveSnapshot(snap); err != nil {
			log.Printf("[location] persist snapshot failed: %v", err)
		}
	}
}

// Current returns the last snapshot with coordinates rounded to
// consumer precision, or nil before the first fix.
func (c *Cache) Current() *locationModel.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	rounded := c.snapshot.Rounded()
	return &rounded
}
