package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yichenzhou/tablemate/internal/model/place"
)

type savedRecord struct {
	PlaceID  string      `json:"yelp_id"`
	Location place.Place `json:"location"`
}

type discoveryRecord struct {
	PlaceID  string      `json:"yelp_id"`
	Location place.Place `json:"location"`
	Remark   string      `json:"ai_remark"`
	RoomID   string      `json:"room_id"`
}

// SavedLocations lists the user's favorited places.
func (c *Client) SavedLocations(ctx context.Context) ([]place.Place, error) {
	var records []savedRecord
	if err := c.do(ctx, http.MethodGet, "/api/collections/saved", nil, &records); err != nil {
		return nil, err
	}
	places := make([]place.Place, 0, len(records))
	for _, rec := range records {
		if rec.Location.PlaceID == "" {
			rec.Location.PlaceID = rec.PlaceID
		}
		places = append(places, rec.Location)
	}
	return places, nil
}

// SaveLocation persists a favorite.
func (c *Client) SaveLocation(ctx context.Context, p place.Place) error {
	payload := map[string]any{"location": p}
	return c.do(ctx, http.MethodPost, "/api/collections/saved", payload, nil)
}

// UnsaveLocation removes a favorite by place key.
func (c *Client) UnsaveLocation(ctx context.Context, placeKey string) error {
	return c.do(ctx, http.MethodDelete, "/api/collections/saved/"+url.PathEscape(placeKey), nil, nil)
}

// Discoveries lists the places the concierge has surfaced for the user.
func (c *Client) Discoveries(ctx context.Context) ([]place.Discovery, error) {
	var records []discoveryRecord
	if err := c.do(ctx, http.MethodGet, "/api/collections/discoveries", nil, &records); err != nil {
		return nil, err
	}
	discoveries := make([]place.Discovery, 0, len(records))
	for _, rec := range records {
		if rec.Location.PlaceID == "" {
			rec.Location.PlaceID = rec.PlaceID
		}
		discoveries = append(discoveries, place.Discovery{
			Place:  rec.Location,
			Remark: rec.Remark,
			RoomID: rec.RoomID,
		})
	}
	return discoveries, nil
}

// AddDiscovery persists a concierge discovery. The backend upserts by
// place key, so duplicate submissions are tolerated.
func (c *Client) AddDiscovery(ctx context.Context, d place.Discovery) error {
	payload := map[string]any{
		"location":  d.Place,
		"ai_remark": d.Remark,
		"room_id":   d.RoomID,
	}
	return c.do(ctx, http.MethodPost, "/api/collections/discoveries", payload, nil)
}

// RemoveDiscovery deletes a discovery by place key.
func (c *Client) RemoveDiscovery(ctx context.Context, placeKey string) error {
	return c.do(ctx, http.MethodDelete, "/api/collections/discoveries/"+url.PathEscape(placeKey), nil, nil)
}
