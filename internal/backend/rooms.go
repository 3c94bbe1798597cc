package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/yichenzhou/tablemate/internal/model/room"
)

// PublicRooms lists every public room.
func (c *Client) PublicRooms(ctx context.Context) ([]room.Room, error) {
	var rooms []room.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/public", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// MyRooms lists the rooms the authenticated user is a member of.
func (c *Client) MyRooms(ctx context.Context) ([]room.Room, error) {
	var rooms []room.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/mine", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom provisions a new room owned by the authenticated user.
func (c *Client) CreateRoom(ctx context.Context, name string, public bool) (room.Room, error) {
	payload := map[string]any{"name": name, "is_public": public}
	var created room.Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", payload, &created); err != nil {
		return room.Room{}, err
	}
	return created, nil
}

// JoinRoom joins a room by its join code.
func (c *Client) JoinRoom(ctx context.Context, code string) (room.Room, error) {
	payload := map[string]string{"code": code}
	var joined room.Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms/join", payload, &joined); err != nil {
		return room.Room{}, err
	}
	return joined, nil
}

// DeleteRoom removes a room. Only the owner may delete.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID), nil, nil)
}

// LeaveRoom removes the authenticated user from a room's membership.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/leave", nil, nil)
}

// SendMessage posts a message into a room. The persisted copy is not
// returned; the sender sees their own message once the realtime
// channel reflects it.
func (c *Client) SendMessage(ctx context.Context, roomID, content string, userContext map[string]any) error {
	payload := map[string]any{"content": content, "type": room.TypeText}
	if len(userContext) > 0 {
		payload["user_context"] = userContext
	}
	return c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/messages", payload, nil)
}
