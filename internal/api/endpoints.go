package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"petcare-console/internal/telemetry"
)

// LatestStatus fetches the most recent robot status. A null body (no
// status recorded yet) returns (nil, nil).
func (c *Client) LatestStatus(ctx context.Context) (*telemetry.StatusUpdate, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/robot/latest", nil, nil, &raw, true); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	u, err := telemetry.DecodeUpdate(raw)
	if err != nil {
		return nil, fmt.Errorf("api: decode status: %w", err)
	}
	return u, nil
}

// Control sends a move command through the backend instead of the bus.
func (c *Client) Control(ctx context.Context, cmd telemetry.ControlCommand) error {
	return c.do(ctx, http.MethodPost, "/robot/control", nil,
		ControlRequest{Linear: cmd.Linear, Angular: cmd.Angular}, nil, true)
}

// Speak asks the robot to say text.
func (c *Client) Speak(ctx context.Context, req TTSRequest) error {
	return c.do(ctx, http.MethodPost, "/robot/tts", nil, req, nil, true)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/login", nil, body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, u User) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPost, "/users", nil, u, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile renames the user.
func (c *Client) UpdateProfile(ctx context.Context, userID int64, name string) (*User, error) {
	var out User
	path := fmt.Sprintf("/users/%d/profile", userID)
	if err := c.do(ctx, http.MethodPut, path, nil, map[string]string{"name": name}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPassword checks the current password; a mismatch is an AuthError.
func (c *Client) VerifyPassword(ctx context.Context, userID int64, password string) error {
	body := map[string]any{"userId": userID, "password": password}
	return c.do(ctx, http.MethodPost, "/users/verify-password", nil, body, nil, true)
}

// ChangePassword sets a new password.
func (c *Client) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	path := fmt.Sprintf("/users/%d/password", userID)
	return c.do(ctx, http.MethodPut, path, nil, map[string]string{"newPassword": newPassword}, nil, true)
}

// DeleteUser removes the account.
func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", userID), nil, nil, nil, true)
}

// Cats lists the user's cats.
func (c *Client) Cats(ctx context.Context, userID int64) ([]Cat, error) {
	var out []Cat
	if err := c.do(ctx, http.MethodGet, "/cats", userQuery(userID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCat registers a cat.
func (c *Client) AddCat(ctx context.Context, cat NewCat) error {
	return c.do(ctx, http.MethodPost, "/cats", nil, cat, nil, true)
}

// DeleteCat removes a cat.
func (c *Client) DeleteCat(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cats/%d", id), nil, nil, nil, true)
}

// Logs lists patrol logs, newest first.
func (c *Client) Logs(ctx context.Context, userID int64) ([]PatrolLog, error) {
	var out []PatrolLog
	if err := c.do(ctx, http.MethodGet, "/logs", userQuery(userID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// AddLog stores a patrol log.
func (c *Client) AddLog(ctx context.Context, l NewPatrolLog) error {
	return c.do(ctx, http.MethodPost, "/logs", nil, l, nil, true)
}

// DeleteLog removes a patrol log.
func (c *Client) DeleteLog(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/logs/%d", id), nil, nil, nil, true)
}

// Videos lists recorded clips, newest first.
func (c *Client) Videos(ctx context.Context, userID int64) ([]Video, error) {
	var out []Video
	if err := c.do(ctx, http.MethodGet, "/videos", userQuery(userID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteVideo removes a clip.
func (c *Client) DeleteVideo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/videos/%d", id), nil, nil, nil, true)
}

// Notifications lists the server-side notifications, newest first.
func (c *Client) Notifications(ctx context.Context, userID int64) ([]RemoteNotification, error) {
	var out []RemoteNotification
	if err := c.do(ctx, http.MethodGet, "/notifications", userQuery(userID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead marks one server notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil, nil, nil, true)
}

// MarkAllNotificationsRead marks every server notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodPut, "/notifications/read-all", userQuery(userID), nil, nil, true)
}

// DeleteNotification removes one server notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", id), nil, nil, nil, true)
}

// ClearNotifications removes every server notification for the user.
func (c *Client) ClearNotifications(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/notifications/all", userQuery(userID), nil, nil, true)
}
