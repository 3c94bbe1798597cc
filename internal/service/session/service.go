// Package session owns the live view of one room: the message stream,
// the typing overlay, and the subscription lifecycle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yichenzhou/tablemate/internal/model/place"
	"github.com/yichenzhou/tablemate/internal/model/room"
	"github.com/yichenzhou/tablemate/internal/realtime"
	"github.com/yichenzhou/tablemate/internal/service/presence"
)

var ErrNoActiveRoom = errors.New("no active room")

// Sender posts messages into a room.
type Sender interface {
	SendMessage(ctx context.Context, roomID, content string, userContext map[string]any) error
}

// DiscoverySink receives place results embedded in stream-delivered
// messages. Implementations dedupe by place key.
type DiscoverySink interface {
	AddDiscovery(ctx context.Context, p place.Place, remark, roomID string) error
}

// ContextSource assembles the per-request context mapping attached to
// outbound sends.
type ContextSource interface {
	Build() map[string]any
}

// Service is the per-room live session. One subscription is active at a
// time; switching rooms tears the prior one down strictly before the
// new one is established.
type Service struct {
	dialer      realtime.Dialer
	api         Sender
	tracker     *presence.Tracker
	discoveries DiscoverySink
	contexts    ContextSource

	mu       sync.Mutex
	activeID string
	sub      realtime.Subscription
	messages []room.Message
	gen      int
}

// NewService wires the session against its collaborators. discoveries
// and contexts may be nil.
func NewService(dialer realtime.Dialer, api Sender, tracker *presence.Tracker, discoveries DiscoverySink, contexts ContextSource) *Service {
	return &Service{
		dialer:      dialer,
		api:         api,
		tracker:     tracker,
		discoveries: discoveries,
		contexts:    contexts,
	}
}

// Connect makes roomID the active room. Calling it for the already
// active room is a no-op.
func (s *Service) Connect(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roomID == s.activeID && s.sub != nil {
		return nil
	}

	// The prior subscription must be fully released first; anything
	// else risks cross-room or duplicate delivery.
	s.teardownLocked()

	sub, err := s.dialer.Subscribe(roomID)
	if err != nil {
		return fmt.Errorf("connect room %s: %w", roomID, err)
	}

	s.sub = sub
	s.activeID = roomID
	s.messages = nil
	s.gen++
	s.tracker.Bind(sub)

	go s.consume(sub, roomID, s.gen)
	return nil
}

// Disconnect releases the subscription but remembers the room so
// Reconnect can restore it.
func (s *Service) Disconnect() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

// Reconnect re-establishes the last active room's subscription.
func (s *Service) Reconnect() error {
	s.mu.Lock()
	roomID := s.activeID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoActiveRoom
	}
	return s.Connect(roomID)
}

// Leave releases the subscription and forgets the room.
func (s *Service) Leave() {
	s.mu.Lock()
	s.teardownLocked()
	s.activeID = ""
	s.messages = nil
	s.mu.Unlock()
}

func (s *Service) teardownLocked() {
	if s.sub != nil {
		s.tracker.Unbind()
		if err := s.sub.Close(); err != nil {
			log.Printf("[session] close subscription: %v", err)
		}
		s.sub = nil
	}
	s.gen++
}

func (s *Service) consume(sub realtime.Subscription, roomID string, gen int) {
	for snap := range sub.Snapshots() {
		switch snap.Collection {
		case realtime.CollectionMessages:
			s.applyMessages(snap.Messages, roomID, gen)
		case realtime.CollectionTyping:
			// The check and the apply stay under one critical section;
			// a room switch between them would land a stale room's
			// typing overlay on the new room.
			s.mu.Lock()
			if gen == s.gen {
				s.tracker.Apply(snap.Typing)
			}
			s.mu.Unlock()
		}
	}
}

// applyMessages decodes one full message snapshot and replaces the
// room's list wholesale. A malformed record is skipped, never aborting
// the batch.
func (s *Service) applyMessages(records []json.RawMessage, roomID string, gen int) {
	batch := make([]room.Message, 0, len(records))
	for _, raw := range records {
		msg, err := room.DecodeMessage(raw)
		if err != nil {
			log.Printf("[session] room %s skipping record: %v", roomID, err)
			continue
		}
		batch = append(batch, msg)
	}

	s.mu.Lock()
	if gen != s.gen {
		// A stale subscription's delivery; the room has moved on.
		s.mu.Unlock()
		return
	}
	s.messages = batch
	s.mu.Unlock()

	if s.discoveries == nil {
		return
	}
	for _, msg := range batch {
		for _, p := range msg.Places {
			if err := s.discoveries.AddDiscovery(context.Background(), p, msg.Content, roomID); err != nil {
				log.Printf("[session] discovery persist failed: %v", err)
			}
		}
	}
}

// SendMessage stops the local typing broadcast, attaches a fresh
// context mapping, and posts the message. The sent copy is not rendered
// optimistically; it appears once the stream reflects it.
func (s *Service) SendMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	roomID := s.activeID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoActiveRoom
	}

	s.tracker.SetTyping(false)

	var userContext map[string]any
	if s.contexts != nil {
		userContext = s.contexts.Build()
	}
	return s.api.SendMessage(ctx, roomID, content, userContext)
}

// Messages returns a copy of the current message list.
func (s *Service) Messages() []room.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]room.Message(nil), s.messages...)
}

// ActiveRoom returns the remembered room id, empty after Leave.
func (s *Service) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}
