package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yichenzhou/tablemate/internal/model/place"
)

func TestRequestCarriesAuthHeaders(t *testing.T) {
	var gotAuth, gotClientID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClientID = r.Header.Get("X-Client-Id")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok-123"))
	if _, err := client.PublicRooms(context.Background()); err != nil {
		t.Fatalf("PublicRooms err: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotClientID == "" {
		t.Fatal("X-Client-Id must be set")
	}
}

func TestRemoteErrorDecodesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail": "not a member of this room"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	_, err := client.MyRooms(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
	if remote.Status != http.StatusForbidden || remote.Detail != "not a member of this room" {
		t.Fatalf("remote = %+v", remote)
	}
}

func TestRemoteErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	_, err := client.PublicRooms(context.Background())

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %T", err)
	}
	if remote.Status != http.StatusBadGateway || remote.Detail == "" {
		t.Fatalf("remote = %+v", remote)
	}
}

func TestSendMessagePayload(t *testing.T) {
	var gotPath string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	userContext := map[string]any{"preferences": map[string]any{"is_weekend": true}}
	if err := client.SendMessage(context.Background(), "room-1", "any good tacos?", userContext); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if gotPath != "/api/rooms/room-1/messages" {
		t.Fatalf("path = %q", gotPath)
	}
	if payload["content"] != "any good tacos?" || payload["type"] != "text" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := payload["user_context"]; !ok {
		t.Fatal("user_context must be attached when non-empty")
	}
}

func TestSendMessageOmitsEmptyContext(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	if err := client.SendMessage(context.Background(), "room-1", "hi", nil); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if _, ok := payload["user_context"]; ok {
		t.Fatal("empty user_context must be omitted")
	}
}

func TestSavedLocationsBackfillsPlaceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collections/saved" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[
			{"yelp_id": "top-1", "location": {"name": "Luigi's"}},
			{"yelp_id": "top-2", "location": {"yelp_id": "nested-2", "name": "Golden Wok"}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	places, err := client.SavedLocations(context.Background())
	if err != nil {
		t.Fatalf("SavedLocations err: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("got %d places", len(places))
	}
	if places[0].PlaceID != "top-1" {
		t.Fatalf("missing nested id must backfill from the record, got %q", places[0].PlaceID)
	}
	if places[1].PlaceID != "nested-2" {
		t.Fatalf("nested id must win, got %q", places[1].PlaceID)
	}
}

func TestDiscoveryRoundTrip(t *testing.T) {
	var addPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/collections/discoveries":
			json.NewDecoder(r.Body).Decode(&addPayload)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/api/collections/discoveries":
			w.Write([]byte(`[{"yelp_id": "biz-1", "location": {"yelp_id": "biz-1", "name": "Luigi's"}, "ai_remark": "great pasta", "room_id": "r1"}]`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/collections/discoveries/biz-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, StaticTokenSource("tok"))
	ctx := context.Background()

	err := client.AddDiscovery(ctx, place.Discovery{
		Place:  place.Place{PlaceID: "biz-1", Name: "Luigi's"},
		Remark: "great pasta",
		RoomID: "r1",
	})
	if err != nil {
		t.Fatalf("AddDiscovery err: %v", err)
	}
	if addPayload["ai_remark"] != "great pasta" || addPayload["room_id"] != "r1" {
		t.Fatalf("add payload = %v", addPayload)
	}

	discoveries, err := client.Discoveries(ctx)
	if err != nil {
		t.Fatalf("Discoveries err: %v", err)
	}
	if len(discoveries) != 1 || discoveries[0].Place.PlaceID != "biz-1" || discoveries[0].Remark != "great pasta" {
		t.Fatalf("discoveries = %+v", discoveries)
	}

	if err := client.RemoveDiscovery(ctx, "biz-1"); err != nil {
		t.Fatalf("RemoveDiscovery err: %v", err)
	}
}
