// Package presence tracks typing liveness for the active room.
package presence

import (
	"log"
	"sort"
	"sync"
	"time"

	presenceModel "github.com/yichenzhou/tablemate/internal/model/presence"
)

// BroadcastInterval is how often the local typing record is re-written
// while the user keeps typing.
const BroadcastInterval = 2 * time.Second

// Writer is the outbound half of the presence channel.
type Writer interface {
	SendTyping(userID, displayName string, typing bool) error
}

// Tracker owns the local user's typing broadcast and the read-side view
// of everyone else's. Records are never deleted locally; staleness is
// evaluated against the liveness window on every read.
type Tracker struct {
	selfID   string
	selfName string
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	writer  Writer
	records map[string]presenceModel.TypingRecord
	stop    chan struct{}
}

// NewTracker builds a tracker for the local user.
func NewTracker(selfID, selfName string) *Tracker {
	return &Tracker{
		selfID:   selfID,
		selfName: selfName,
		interval: BroadcastInterval,
		now:      time.Now,
		records:  make(map[string]presenceModel.TypingRecord),
	}
}

// Bind attaches the tracker to the active room's channel. Any prior
// broadcast is stopped and the read-side view reset; typing indicators
// must never leak across rooms.
func (t *Tracker) Bind(w Writer) {
	t.mu.Lock()
	t.stopLocked()
	t.writer = w
	t.records = make(map[string]presenceModel.TypingRecord)
	t.mu.Unlock()
}

// Unbind detaches from the room channel, stopping the broadcast first.
func (t *Tracker) Unbind() {
	t.mu.Lock()
	t.stopLocked()
	t.writer = nil
	t.records = make(map[string]presenceModel.TypingRecord)
	t.mu.Unlock()
}

// SetTyping transitions the local typing state. Starting typing writes
// the record immediately and begins the periodic re-broadcast; stopping
// writes isTyping=false once and cancels the repeating task.
func (t *Tracker) SetTyping(typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.writer
	if w == nil {
		return
	}

	if !typing {
		t.stopLocked()
		if err := w.SendTyping(t.selfID, t.selfName, false); err != nil {
			log.Printf("[presence] stop-typing write failed: %v", err)
		}
		return
	}

	if t.stop != nil {
		// Already broadcasting.
		return
	}

	if err := w.SendTyping(t.selfID, t.selfName, true); err != nil {
		log.Printf("[presence] typing write failed: %v", err)
	}

	stop := make(chan struct{})
	t.stop = stop
	go t.broadcast(w, stop)
}

func (t *Tracker) broadcast(w Writer, stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.SendTyping(t.selfID, t.selfName, true); err != nil {
				log.Printf("[presence] typing refresh failed: %v", err)
			}
		}
	}
}

func (t *Tracker) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Apply replaces the read-side view with a freshly pushed per-room
// presence collection.
func (t *Tracker) Apply(records map[string]presenceModel.TypingRecord) {
	t.mu.Lock()
	t.records = records
	t.mu.Unlock()
}

// TypingNow returns the display names of users currently typing,
// recomputed from the last push against the liveness window. The local
// user is always excluded.
func (t *Tracker) TypingNow() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var names []string
	for userID, rec := range t.records {
		if userID == t.selfID {
			continue
		}
		if rec.Live(now) {
			names = append(names, rec.DisplayName)
		}
	}
	sort.Strings(names)
	return names
}
