// Package realtime implements the push channel that keeps the local
// mirror current. The backend delivers a full-collection snapshot on
// every change, never a diff.
package realtime

import (
	"encoding/json"

	"github.com/yichenzhou/tablemate/internal/model/presence"
)

// Collection names carried on snapshot frames.
const (
	CollectionMessages = "messages"
	CollectionTyping   = "typing"
)

// Snapshot is one full-collection push for a room. Exactly one of
// Messages and Typing is populated, selected by Collection.
type Snapshot struct {
	Collection string
	Messages   []json.RawMessage
	Typing     map[string]presence.TypingRecord
}

// Subscription is a live per-room channel. Snapshots delivers pushes in
// arrival order; the channel closes when the subscription is released
// or the connection drops.
type Subscription interface {
	Snapshots() <-chan Snapshot
	// SendTyping writes the local user's typing state through the same
	// channel the presence reads arrive on.
	SendTyping(userID, displayName string, typing bool) error
	Close() error
}

// Dialer establishes room subscriptions.
type Dialer interface {
	Subscribe(roomID string) (Subscription, error)
}
