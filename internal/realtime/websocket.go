package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yichenzhou/tablemate/internal/backend"
	"github.com/yichenzhou/tablemate/internal/model/presence"
)

// Client dials the backend's per-room WebSocket endpoint.
type Client struct {
	baseURL string
	tokens  backend.TokenSource
	dialer  *websocket.Dialer
}

// NewClient builds a realtime client for the given ws:// or wss:// base
// URL.
func NewClient(baseURL string, tokens backend.TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

// frame is the wire shape of one push. Message collections arrive as an
// ordered array, typing collections as a map keyed by user id.
type frame struct {
	Collection string          `json:"collection"`
	Records    json.RawMessage `json:"records"`
}

type typingWrite struct {
	Collection  string `json:"collection"`
	UserID      string `json:"user_id"`
	IsTyping    bool   `json:"is_typing"`
	DisplayName string `json:"user_name"`
}

// Subscribe opens the room's push channel. The returned subscription
// owns the connection; Close releases it and closes the snapshot
// channel.
func (c *Client) Subscribe(roomID string) (Subscription, error) {
	token, err := c.tokens.Token(context.Background())
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	wsURL := fmt.Sprintf("%s/ws/%s?token=%s", c.baseURL, url.PathEscape(roomID), url.QueryEscape(token))
	conn, _, err := c.dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe to room %s: %w", roomID, err)
	}

	sub := &wsSubscription{
		roomID:    roomID,
		conn:      conn,
		snapshots: make(chan Snapshot, 8),
	}
	go sub.readLoop()
	return sub, nil
}

type wsSubscription struct {
	roomID    string
	conn      *websocket.Conn
	snapshots chan Snapshot

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *wsSubscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

func (s *wsSubscription) readLoop() {
	defer close(s.snapshots)
	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[realtime] room %s read error: %v", s.roomID, err)
			}
			return
		}

		snap, err := decodeFrame(f)
		if err != nil {
			log.Printf("[realtime] room %s dropping frame: %v", s.roomID, err)
			continue
		}
		s.snapshots <- snap
	}
}

func decodeFrame(f frame) (Snapshot, error) {
	switch f.Collection {
	case CollectionMessages:
		var records []json.RawMessage
		if err := json.Unmarshal(f.Records, &records); err != nil {
			return Snapshot{}, fmt.Errorf("malformed message records: %w", err)
		}
		return Snapshot{Collection: CollectionMessages, Messages: records}, nil
	case CollectionTyping:
		var records map[string]presence.TypingRecord
		if err := json.Unmarshal(f.Records, &records); err != nil {
			return Snapshot{}, fmt.Errorf("malformed typing records: %w", err)
		}
		return Snapshot{Collection: CollectionTyping, Typing: records}, nil
	default:
		return Snapshot{}, fmt.Errorf("unknown collection %q", f.Collection)
	}
}

func (s *wsSubscription) SendTyping(userID, displayName string, typing bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(typingWrite{
		Collection:  CollectionTyping,
		UserID:      userID,
		IsTyping:    typing,
		DisplayName: displayName,
	})
}

func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
