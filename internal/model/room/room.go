package room

// Member is a room participant as the backend lists them.
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Room is a persistent group chat with membership and a join code.
type Room struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Members   []Member         `json:"members"`
	Messages  []Message        `json:"messages,omitempty"`
	Itinerary []map[string]any `json:"itinerary,omitempty"`
	IsPublic  bool             `json:"is_public"`
	JoinCode  string           `json:"join_code"`
	OwnerID   string           `json:"owner_id"`
}
