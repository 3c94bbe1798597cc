// Package directory maintains the merged room listing.
package directory

import (
	"context"
	"log"
	"sync"

	"github.com/yichenzhou/tablemate/internal/model/room"
)

// Lister is the slice of the backend client the directory needs.
type Lister interface {
	PublicRooms(ctx context.Context) ([]room.Room, error)
	MyRooms(ctx context.Context) ([]room.Room, error)
}

// Service merges the public and member room listings into one ordered,
// id-deduplicated set.
type Service struct {
	api Lister

	mu    sync.RWMutex
	rooms []room.Room
}

// NewService builds a directory backed by the given listing calls.
func NewService(api Lister) *Service {
	return &Service{api: api}
}

// Fetch issues both listing calls concurrently and publishes the merged
// result. Either call failing degrades that listing to empty; when both
// fail the previous state is retained and returned. Retry is the
// caller's decision.
func (s *Service) Fetch(ctx context.Context) []room.Room {
	var wg sync.WaitGroup
	var public, mine []room.Room
	var pubErr, mineErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		public, pubErr = s.api.PublicRooms(ctx)
	}()
	go func() {
		defer wg.Done()
		mine, mineErr = s.api.MyRooms(ctx)
	}()
	wg.Wait()

	if pubErr != nil {
		log.Printf("[directory] public listing failed: %v", pubErr)
		public = nil
	}
	if mineErr != nil {
		log.Printf("[directory] member listing failed: %v", mineErr)
		mine = nil
	}
	if pubErr != nil && mineErr != nil {
		return s.Rooms()
	}

	merged := merge(mine, public)

	s.mu.Lock()
	s.rooms = merged
	s.mu.Unlock()
	return s.Rooms()
}

// merge concatenates the listings, keeping the first occurrence of each
// room id in discovery order.
func merge(lists ...[]room.Room) []room.Room {
	seen := make(map[string]struct{})
	var merged []room.Room
	for _, list := range lists {
		for _, r := range list {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

// Rooms returns a copy of the current directory state.
func (s *Service) Rooms() []room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]room.Room(nil), s.rooms...)
}

// Find looks up a cached room by id.
func (s *Service) Find(roomID string) (room.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return room.Room{}, false
}
