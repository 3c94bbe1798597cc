package profile

// Profile holds the static user fields attached to outbound concierge
// requests. It is loaded once at startup and never mutated by the sync
// engine.
type Profile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	PriceRange  string   `json:"preferred_price_range,omitempty"`
}
