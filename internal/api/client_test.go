package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"petcare-console/internal/apperr"
	"petcare-console/internal/telemetry"
)

func newTestClient(t *testing.T, h http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		BaseURL: srv.URL + "/api/",
		Tokens:  TokenFunc(func() string { return token }),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLatestStatusDecodesEntity(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/robot/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id":7,"batteryLevel":64,"temperature":36.5,"isCharging":true,"x":10,"y":20,"mode":"auto","timestamp":"2026-03-02T10:15:30"}`)
	}), "tok")

	u, err := c.LatestStatus(context.Background())
	if err != nil {
		t.Fatalf("LatestStatus: %v", err)
	}
	if u == nil || u.Battery == nil || *u.Battery != 64 {
		t.Fatalf("battery not decoded: %+v", u)
	}
	if u.Charging == nil || !*u.Charging || u.Temperature == nil || *u.Temperature != 36.5 {
		t.Fatalf("extras not decoded: %+v", u)
	}
	if u.Timestamp == nil || u.Timestamp.Hour() != 10 {
		t.Fatalf("timestamp not decoded: %+v", u.Timestamp)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
}

func TestLatestStatusNullBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "null")
	}), "")
	u, err := c.LatestStatus(context.Background())
	if err != nil || u != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", u, err)
	}
}

func TestErrorMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/login":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, "bad credentials")
		case "/api/cats":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"no such user"}`)
		}
	}), "")

	_, err := c.Login(context.Background(), "a@b.c", "secret")
	if !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae := err.(*apperr.AuthError); ae.Message != "bad credentials" || ae.Status != 401 {
		t.Fatalf("unexpected auth error %+v", ae)
	}

	_, err = c.Cats(context.Background(), 1)
	he, ok := err.(*apperr.HTTPError)
	if !ok || he.Status != 400 || he.Message != "no such user" {
		t.Fatalf("expected HTTPError 400, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Videos(context.Background(), 1); !apperr.IsNetwork(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestLoginSkipsBearer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("login must not send a token, got %q", h)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "me@example.com" {
			t.Errorf("unexpected body %v", body)
		}
		_ = json.NewEncoder(w).Encode(LoginResponse{Token: "jwt", User: User{ID: 3, Name: "Mina", Email: "me@example.com"}})
	}), "stale")
	resp, err := c.Login(context.Background(), "me@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "jwt" || resp.User.ID != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCRUDRequests(t *testing.T) {
	type call struct{ method, path, query string }
	var calls []call
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path, r.URL.RawQuery})
		switch r.URL.Path {
		case "/api/logs":
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `[{"id":1,"mode":"auto","duration":"10분","detectionCount":2,"startTime":"2026-03-02T09:00:00"}]`)
				return
			}
		case "/api/notifications":
			_, _ = io.WriteString(w, `[{"id":4,"type":"robot_status","title":"t","read":true,"timestamp":"2026-03-02T09:00:00"}]`)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}), "tok")
	ctx := context.Background()

	logs, err := c.Logs(ctx, 9)
	if err != nil || len(logs) != 1 || logs[0].Duration != "10분" || logs[0].StartTime.IsZero() {
		t.Fatalf("Logs: %v %+v", err, logs)
	}
	notes, err := c.Notifications(ctx, 9)
	if err != nil || len(notes) != 1 || !notes[0].Seen() {
		t.Fatalf("Notifications: %v %+v", err, notes)
	}
	_ = c.DeleteCat(ctx, 5)
	_ = c.MarkAllNotificationsRead(ctx, 9)
	_ = c.ClearNotifications(ctx, 9)
	_ = c.Control(ctx, telemetry.NewCommand(1, 0))

	want := []call{
		{"GET", "/api/logs", "userId=9"},
		{"GET", "/api/notifications", "userId=9"},
		{"DELETE", "/api/cats/5", ""},
		{"PUT", "/api/notifications/read-all", "userId=9"},
		{"DELETE", "/api/notifications/all", "userId=9"},
		{"POST", "/api/robot/control", ""},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}
