package presence

import "time"

// LivenessWindow is how long a typing record stays live without a
// refresh. Eviction happens on read, never by explicit deletion, so a
// crashed or disconnected peer ages out on its own.
const LivenessWindow = 5 * time.Second

// TypingRecord is the per (room, user) typing state pushed over the
// realtime channel.
type TypingRecord struct {
	IsTyping    bool      `json:"isTyping"`
	Timestamp   time.Time `json:"timestamp"`
	DisplayName string    `json:"userName"`
}

// Live reports whether the record counts as currently typing at the
// supplied instant.
func (r TypingRecord) Live(now time.Time) bool {
	return r.IsTyping && now.Sub(r.Timestamp) < LivenessWindow
}
