package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yichenzhou/tablemate/internal/model/place"
)

// Message types as the backend emits them.
const (
	TypeText   = "text"
	TypeSystem = "system"
	TypeMap    = "map"
)

var ErrMissingField = errors.New("message record missing required field")

// Message is one chat turn, either authored by a member or by the
// concierge. Concierge messages may carry embedded place results and
// suggested quick replies.
type Message struct {
	ID           string        `json:"id"`
	SenderID     string        `json:"sender_id"`
	Content      string        `json:"content"`
	Timestamp    time.Time     `json:"timestamp"`
	Type         string        `json:"type"`
	Places       []place.Place `json:"businesses,omitempty"`
	QuickReplies []string      `json:"quick_replies,omitempty"`
}

// wireMessage is the raw record shape pushed over the realtime channel
// and returned by the REST listing calls.
type wireMessage struct {
	ID           string         `json:"id"`
	SenderID     string         `json:"senderId"`
	SenderIDAlt  string         `json:"sender_id"`
	Content      string         `json:"content"`
	Timestamp    string         `json:"timestamp"`
	Type         string         `json:"type"`
	Businesses   []wireBusiness `json:"businesses"`
	QuickReplies []string       `json:"quick_replies"`
}

// wireBusiness mirrors the business payload attached to concierge
// messages. Nested coordinate and address objects are flattened into
// the internal place shape.
type wireBusiness struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url"`
	Rating      float64 `json:"rating"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		Address1       string   `json:"address1"`
		City           string   `json:"city"`
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

// DecodeMessage converts one raw stream record into the internal
// message shape. Records missing sender, content, or a parseable
// timestamp are rejected so the caller can skip them without aborting
// the batch.
func DecodeMessage(raw json.RawMessage) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return Message{}, fmt.Errorf("decode message record: %w", err)
	}

	sender := w.SenderID
	if sender == "" {
		sender = w.SenderIDAlt
	}
	if sender == "" {
		return Message{}, fmt.Errorf("%w: sender", ErrMissingField)
	}
	if w.Content == "" {
		return Message{}, fmt.Errorf("%w: content", ErrMissingField)
	}
	if w.Timestamp == "" {
		return Message{}, fmt.Errorf("%w: timestamp", ErrMissingField)
	}

	ts, err := time.Parse(time.RFC3339, w.Timestamp)
	if err != nil {
		// Some records omit the zone designator entirely.
		ts, err = time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(w.Timestamp, "Z"))
		if err != nil {
			return Message{}, fmt.Errorf("%w: timestamp", ErrMissingField)
		}
		ts = ts.UTC()
	}

	msgType := w.Type
	if msgType == "" {
		msgType = TypeText
	}

	msg := Message{
		ID:           w.ID,
		SenderID:     sender,
		Content:      w.Content,
		Timestamp:    ts,
		Type:         msgType,
		QuickReplies: w.QuickReplies,
	}
	for _, b := range w.Businesses {
		msg.Places = append(msg.Places, b.toPlace())
	}
	return msg, nil
}

func (b wireBusiness) toPlace() place.Place {
	address := b.Location.Address1
	if len(b.Location.DisplayAddress) > 0 {
		address = strings.Join(b.Location.DisplayAddress, ", ")
	}
	return place.Place{
		PlaceID:   b.ID,
		Name:      b.Name,
		Address:   address,
		Latitude:  b.Coordinates.Latitude,
		Longitude: b.Coordinates.Longitude,
		Rating:    b.Rating,
		ImageURL:  b.ImageURL,
	}
}
