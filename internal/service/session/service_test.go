package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yichenzhou/tablemate/internal/model/place"
	presenceModel "github.com/yichenzhou/tablemate/internal/model/presence"
	"github.com/yichenzhou/tablemate/internal/realtime"
	"github.com/yichenzhou/tablemate/internal/service/presence"
	"github.com/yichenzhou/tablemate/internal/service/session"
)

type fakeSub struct {
	mu     sync.Mutex
	ch     chan realtime.Snapshot
	closed bool
	writes []bool
	events *eventLog
	roomID string
}

func (f *fakeSub) Snapshots() <-chan realtime.Snapshot { return f.ch }

func (f *fakeSub) SendTyping(userID, displayName string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, typing)
	return nil
}

// Close marks the subscription released without closing the snapshot
// channel, so tests can simulate an in-flight delivery from a stale
// subscription.
func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.events.add("close:" + f.roomID)
	}
	return nil
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeDialer struct {
	mu     sync.Mutex
	subs   map[string]*fakeSub
	events *eventLog
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{subs: make(map[string]*fakeSub), events: &eventLog{}}
}

func (d *fakeDialer) Subscribe(roomID string) (realtime.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub := &fakeSub{
		ch:     make(chan realtime.Snapshot, 8),
		events: d.events,
		roomID: roomID,
	}
	d.subs[roomID] = sub
	d.events.add("subscribe:" + roomID)
	return sub, nil
}

type sentMessage struct {
	roomID  string
	content string
	context map[string]any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, roomID, content string, userContext map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{roomID: roomID, content: content, context: userContext})
	return f.err
}

type fakeSink struct {
	mu    sync.Mutex
	added []place.Discovery
}

func (f *fakeSink) AddDiscovery(_ context.Context, p place.Place, remark, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, place.Discovery{Place: p, Remark: remark, RoomID: roomID})
	return nil
}

func (f *fakeSink) all() []place.Discovery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]place.Discovery(nil), f.added...)
}

type staticContext map[string]any

func (c staticContext) Build() map[string]any { return c }

func newTestService(dialer *fakeDialer, api *fakeSender, sink session.DiscoverySink) (*session.Service, *presence.Tracker) {
	tracker := presence.NewTracker("me", "Me")
	svc := session.NewService(dialer, api, tracker, sink, staticContext{"preferences": "x"})
	return svc, tracker
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true")
		}
		time.Sleep(time.Millisecond)
	}
}

func rawMessage(id, content string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"senderId":"u1","content":%q,"timestamp":"2026-03-14T12:30:00Z"}`, id, content))
}

func messagesSnapshot(records ...json.RawMessage) realtime.Snapshot {
	return realtime.Snapshot{Collection: realtime.CollectionMessages, Messages: records}
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	dialer := newFakeDialer()
	svc, _ := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	sub := dialer.subs["r1"]

	sub.ch <- messagesSnapshot(rawMessage("m1", "hi"), rawMessage("m2", "hello"))
	waitFor(t, func() bool { return len(svc.Messages()) == 2 })

	sub.ch <- messagesSnapshot(rawMessage("m1", "hi"), rawMessage("m2", "hello"), rawMessage("m3", "what's good nearby?"))
	waitFor(t, func() bool { return len(svc.Messages()) == 3 })

	got := svc.Messages()
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Fatalf("message %d = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestMalformedRecordSkippedNotFatal(t *testing.T) {
	dialer := newFakeDialer()
	svc, _ := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	sub := dialer.subs["r1"]

	sub.ch <- messagesSnapshot(
		rawMessage("m1", "hi"),
		json.RawMessage(`{"id":"broken","content":"no sender"}`),
		rawMessage("m2", "hello"),
	)
	waitFor(t, func() bool { return len(svc.Messages()) == 2 })

	got := svc.Messages()
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("unexpected surviving records: %+v", got)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	svc, _ := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("repeat Connect err: %v", err)
	}

	events := dialer.events.all()
	if len(events) != 1 || events[0] != "subscribe:r1" {
		t.Fatalf("expected a single subscribe, got %v", events)
	}
}

func TestSwitchingRoomsTearsDownBeforeSubscribing(t *testing.T) {
	dialer := newFakeDialer()
	svc, _ := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("roomA"); err != nil {
		t.Fatalf("Connect A err: %v", err)
	}
	subA := dialer.subs["roomA"]
	subA.ch <- messagesSnapshot(rawMessage("a1", "from A"))
	waitFor(t, func() bool { return len(svc.Messages()) == 1 })

	if err := svc.Connect("roomB"); err != nil {
		t.Fatalf("Connect B err: %v", err)
	}

	events := dialer.events.all()
	want := []string{"subscribe:roomA", "close:roomA", "subscribe:roomB"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
	if !subA.isClosed() {
		t.Fatal("prior subscription must be released")
	}

	// An in-flight delivery from the stale subscription must not land.
	subA.ch <- messagesSnapshot(rawMessage("a2", "stale"), rawMessage("a3", "stale"))

	subB := dialer.subs["roomB"]
	subB.ch <- messagesSnapshot(rawMessage("b1", "from B"))
	waitFor(t, func() bool {
		msgs := svc.Messages()
		return len(msgs) == 1 && msgs[0].ID == "b1"
	})

	// Give the stale delivery a chance to (incorrectly) apply.
	time.Sleep(20 * time.Millisecond)
	if msgs := svc.Messages(); len(msgs) != 1 || msgs[0].ID != "b1" {
		t.Fatalf("stale delivery leaked into the active room: %+v", msgs)
	}
}

func TestStaleTypingSnapshotDoesNotReachTracker(t *testing.T) {
	dialer := newFakeDialer()
	svc, tracker := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("roomA"); err != nil {
		t.Fatalf("Connect A err: %v", err)
	}
	subA := dialer.subs["roomA"]

	if err := svc.Connect("roomB"); err != nil {
		t.Fatalf("Connect B err: %v", err)
	}

	// An in-flight typing delivery from the released subscription.
	subA.ch <- realtime.Snapshot{
		Collection: realtime.CollectionTyping,
		Typing: map[string]presenceModel.TypingRecord{
			"alice": {IsTyping: true, Timestamp: time.Now(), DisplayName: "Alice"},
		},
	}

	subB := dialer.subs["roomB"]
	subB.ch <- messagesSnapshot(rawMessage("b1", "from B"))
	waitFor(t, func() bool { return len(svc.Messages()) == 1 })

	time.Sleep(20 * time.Millisecond)
	if names := tracker.TypingNow(); len(names) != 0 {
		t.Fatalf("stale typing overlay leaked into the active room: %v", names)
	}
}

func TestDisconnectRemembersRoomLeaveForgets(t *testing.T) {
	dialer := newFakeDialer()
	svc, _ := newTestService(dialer, &fakeSender{}, nil)

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	svc.Disconnect()
	if got := svc.ActiveRoom(); got != "r1" {
		t.Fatalf("ActiveRoom after disconnect = %q, want r1", got)
	}
	if err := svc.Reconnect(); err != nil {
		t.Fatalf("Reconnect err: %v", err)
	}

	svc.Leave()
	if got := svc.ActiveRoom(); got != "" {
		t.Fatalf("ActiveRoom after leave = %q, want empty", got)
	}
	if err := svc.Reconnect(); err == nil {
		t.Fatal("expected Reconnect to fail after leave")
	}
}

func TestSendMessageStopsTypingAndSkipsOptimisticRender(t *testing.T) {
	dialer := newFakeDialer()
	api := &fakeSender{}
	svc, tracker := newTestService(dialer, api, nil)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	tracker.SetTyping(true)

	if err := svc.SendMessage(context.Background(), "table for four?"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	sub := dialer.subs["r1"]
	sub.mu.Lock()
	writes := append([]bool(nil), sub.writes...)
	sub.mu.Unlock()
	if len(writes) == 0 || writes[len(writes)-1] != false {
		t.Fatalf("expected a typing=false write before sending, got %v", writes)
	}

	if len(api.sent) != 1 {
		t.Fatalf("expected 1 send call, got %d", len(api.sent))
	}
	sent := api.sent[0]
	if sent.roomID != "r1" || sent.content != "table for four?" {
		t.Fatalf("unexpected send: %+v", sent)
	}
	if sent.context["preferences"] != "x" {
		t.Fatalf("context mapping not attached: %+v", sent.context)
	}

	// The sender's copy appears only once the stream reflects it.
	if got := len(svc.Messages()); got != 0 {
		t.Fatalf("message rendered optimistically: %d", got)
	}
}

func TestSendMessageWithoutRoom(t *testing.T) {
	svc, _ := newTestService(newFakeDialer(), &fakeSender{}, nil)
	if err := svc.SendMessage(context.Background(), "hello?"); err != session.ErrNoActiveRoom {
		t.Fatalf("expected ErrNoActiveRoom, got %v", err)
	}
}

func TestEmbeddedPlacesFlowToDiscoverySink(t *testing.T) {
	dialer := newFakeDialer()
	sink := &fakeSink{}
	svc, _ := newTestService(dialer, &fakeSender{}, sink)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}

	raw := json.RawMessage(`{
		"id": "m1",
		"senderId": "concierge",
		"content": "Luigi's has great reviews",
		"timestamp": "2026-03-14T12:30:00Z",
		"businesses": [{"id": "biz-1", "name": "Luigi's", "coordinates": {"latitude": 37.7749, "longitude": -122.4194}}]
	}`)
	dialer.subs["r1"].ch <- messagesSnapshot(raw)

	waitFor(t, func() bool { return len(sink.all()) == 1 })
	got := sink.all()[0]
	if got.Place.PlaceID != "biz-1" {
		t.Fatalf("unexpected place: %+v", got.Place)
	}
	if got.Remark != "Luigi's has great reviews" {
		t.Fatalf("message content must become the remark, got %q", got.Remark)
	}
	if got.RoomID != "r1" {
		t.Fatalf("unexpected room id: %q", got.RoomID)
	}
}

func TestTypingSnapshotReachesTracker(t *testing.T) {
	dialer := newFakeDialer()
	svc, tracker := newTestService(dialer, &fakeSender{}, nil)
	defer svc.Leave()

	if err := svc.Connect("r1"); err != nil {
		t.Fatalf("Connect err: %v", err)
	}

	raw := json.RawMessage(fmt.Sprintf(
		`{"collection":"typing","records":{"alice":{"isTyping":true,"timestamp":%q,"userName":"Alice"}}}`,
		time.Now().UTC().Format(time.RFC3339)))
	var f struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("fixture err: %v", err)
	}
	snap := realtime.Snapshot{Collection: realtime.CollectionTyping}
	if err := json.Unmarshal(f.Records, &snap.Typing); err != nil {
		t.Fatalf("fixture err: %v", err)
	}
	dialer.subs["r1"].ch <- snap

	waitFor(t, func() bool {
		names := tracker.TypingNow()
		return len(names) == 1 && names[0] == "Alice"
	})
}
