// Package collections mirrors the user's saved places and concierge
// discoveries, applying optimistic mutation against the backend.
package collections

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/yichenzhou/tablemate/internal/model/place"
)

// API is the slice of the backend client the cache needs. All calls are
// fire-once; retry belongs to the caller.
type API interface {
	SavedLocations(ctx context.Context) ([]place.Place, error)
	SaveLocation(ctx context.Context, p place.Place) error
	UnsaveLocation(ctx context.Context, placeKey string) error
	Discoveries(ctx context.Context) ([]place.Discovery, error)
	AddDiscovery(ctx context.Context, d place.Discovery) error
	RemoveDiscovery(ctx context.Context, placeKey string) error
}

// Mirror persists the local sets across launches. Optional.
type Mirror interface {
	ReplaceSaved(places []place.Place) error
	PutSaved(p place.Place) error
	DeleteSaved(placeKey string) error
	ReplaceDiscoveries(discoveries []place.Discovery) error
	PutDiscovery(d place.Discovery) error
}

// Service holds both collections keyed by place key, preserving
// insertion order for display.
type Service struct {
	api    API
	mirror Mirror

	mu            sync.RWMutex
	saved         map[string]place.Place
	savedOrder    []string
	discovered    map[string]place.Discovery
	discoverOrder []string
}

// NewService builds an empty cache; call FetchAll or Seed to populate.
func NewService(api API, mirror Mirror) *Service {
	return &Service{
		api:        api,
		mirror:     mirror,
		saved:      make(map[string]place.Place),
		discovered: make(map[string]place.Discovery),
	}
}

// Seed installs locally persisted state. Used at startup before the
// first FetchAll converges on the backend's view.
func (s *Service) Seed(saved []place.Place, discoveries []place.Discovery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range saved {
		s.putSavedLocked(p)
	}
	for _, d := range discoveries {
		s.putDiscoveryLocked(d)
	}
}

// FetchAll replaces both local sets with the backend's returned sets,
// superseding any prior optimistic state. Each listing degrades
// independently: a failed call leaves that set untouched.
func (s *Service) FetchAll(ctx context.Context) error {
	saved, savedErr := s.api.SavedLocations(ctx)
	discoveries, discErr := s.api.Discoveries(ctx)

	s.mu.Lock()
	if savedErr == nil {
		s.saved = make(map[string]place.Place)
		s.savedOrder = nil
		for _, p := range saved {
			s.putSavedLocked(p)
		}
	}
	if discErr == nil {
		s.discovered = make(map[string]place.Discovery)
		s.discoverOrder = nil
		for _, d := range discoveries {
			s.putDiscoveryLocked(d)
		}
	}
	s.mu.Unlock()

	if s.mirror != nil {
		if savedErr == nil {
			if err := s.mirror.ReplaceSaved(saved); err != nil {
				log.Printf("[collections] mirror saved replace failed: %v", err)
			}
		}
		if discErr == nil {
			if err := s.mirror.ReplaceDiscoveries(discoveries); err != nil {
				log.Printf("[collections] mirror discovery replace failed: %v", err)
			}
		}
	}

	if savedErr != nil {
		return fmt.Errorf("fetch saved locations: %w", savedErr)
	}
	if discErr != nil {
		return fmt.Errorf("fetch discoveries: %w", discErr)
	}
	return nil
}

// IsFavorite reports whether the place key is in the saved set.
func (s *Service) IsFavorite(placeKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.saved[placeKey]
	return ok
}

// Favorites returns the saved set in insertion order.
func (s *Service) Favorites() []place.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]place.Place, 0, len(s.savedOrder))
	for _, key := range s.savedOrder {
		out = append(out, s.saved[key])
	}
	return out
}

// Discoveries returns the discovery set in insertion order.
func (s *Service) Discoveries() []place.Discovery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]place.Discovery, 0, len(s.discoverOrder))
	for _, key := range s.discoverOrder {
		out = append(out, s.discovered[key])
	}
	return out
}

// ToggleFavorite flips the saved state of a place.
//
// Removal is applied locally first and the unpersist failure is NOT
// rolled back; the next FetchAll re-converges. Addition is optimistic
// too, but a failed persist rolls the local addition back.
func (s *Service) ToggleFavorite(ctx context.Context, p place.Place) error {
	key := p.Key()

	s.mu.Lock()
	_, exists := s.saved[key]
	if exists {
		s.deleteSavedLocked(key)
	} else {
		s.putSavedLocked(p)
	}
	s.mu.Unlock()

	if exists {
		if s.mirror != nil {
			if err := s.mirror.DeleteSaved(key); err != nil {
				log.Printf("[collections] mirror delete failed: %v", err)
			}
		}
		if err := s.api.UnsaveLocation(ctx, key); err != nil {
			log.Printf("[collections] unpersist of %s failed, local removal stands: %v", key, err)
			return err
		}
		return nil
	}

	if err := s.api.SaveLocation(ctx, p); err != nil {
		s.mu.Lock()
		s.deleteSavedLocked(key)
		s.mu.Unlock()
		return fmt.Errorf("persist favorite %s: %w", key, err)
	}
	if s.mirror != nil {
		if err := s.mirror.PutSaved(p); err != nil {
			log.Printf("[collections] mirror put failed: %v", err)
		}
	}
	return nil
}

// AddDiscovery records a concierge mention. Idempotent by place key:
// only a genuinely new key triggers the local append and the remote
// persist. A failed persist rolls the local append back, so a
// re-delivered mention of the same key retries the persist instead of
// short-circuiting on a local-only entry.
func (s *Service) AddDiscovery(ctx context.Context, p place.Place, remark, roomID string) error {
	key := p.Key()

	s.mu.Lock()
	if _, ok := s.discovered[key]; ok {
		s.mu.Unlock()
		return nil
	}
	d := place.Discovery{Place: p, Remark: remark, RoomID: roomID}
	s.putDiscoveryLocked(d)
	s.mu.Unlock()

	if err := s.api.AddDiscovery(ctx, d); err != nil {
		s.mu.Lock()
		delete(s.discovered, key)
		s.discoverOrder = removeKey(s.discoverOrder, key)
		s.mu.Unlock()
		return fmt.Errorf("persist discovery %s: %w", key, err)
	}
	if s.mirror != nil {
		if err := s.mirror.PutDiscovery(d); err != nil {
			log.Printf("[collections] mirror discovery put failed: %v", err)
		}
	}
	return nil
}

// RemoveDiscovery drops a discovery locally and remotely. Like favorite
// removal, the local drop is not rolled back on remote failure.
func (s *Service) RemoveDiscovery(ctx context.Context, placeKey string) error {
	s.mu.Lock()
	if _, ok := s.discovered[placeKey]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.discovered, placeKey)
	s.discoverOrder = removeKey(s.discoverOrder, placeKey)
	s.mu.Unlock()

	if err := s.api.RemoveDiscovery(ctx, placeKey); err != nil {
		log.Printf("[collections] discovery unpersist of %s failed, local removal stands: %v", placeKey, err)
		return err
	}
	return nil
}

func (s *Service) putSavedLocked(p place.Place) {
	key := p.Key()
	if _, ok := s.saved[key]; !ok {
		s.savedOrder = append(s.savedOrder, key)
	}
	s.saved[key] = p
}

func (s *Service) deleteSavedLocked(key string) {
	delete(s.saved, key)
	s.savedOrder = removeKey(s.savedOrder, key)
}

func (s *Service) putDiscoveryLocked(d place.Discovery) {
	key := d.Place.Key()
	if _, ok := s.discovered[key]; !ok {
		s.discoverOrder = append(s.discoverOrder, key)
	}
	s.discovered[key] = d
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
