package place

import "strconv"

// Place describes a business or point of interest surfaced by the
// concierge or saved by the user.
type Place struct {
	PlaceID   string  `json:"yelp_id,omitempty"`
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Rating    float64 `json:"rating,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Key returns the stable identifier used to deduplicate places across
// the local sets and the backend. When the external place id is absent
// the key is synthesized from name and latitude, matching the format
// the backend uses for the same fallback.
func (p Place) Key() string {
	if p.PlaceID != "" {
		return p.PlaceID
	}
	return "custom_" + p.Name + "_" + strconv.FormatFloat(p.Latitude, 'f', -1, 64)
}

// Discovery is a place the concierge mentioned in chat, annotated with
// the message content it came from and the room it was mentioned in.
type Discovery struct {
	Place  Place  `json:"location"`
	Remark string `json:"ai_remark,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}
