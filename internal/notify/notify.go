// Package notify is the notification center: an ordered, persisted list of
// user-facing events with read state, plus a toast sink for live display.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"petcare-console/internal/api"
	"petcare-console/internal/metrics"
)

// Type classifies a notification.
type Type string

const (
	TypeAlert  Type = "alert"
	TypeRobot  Type = "robot"
	TypeSystem Type = "system"
	TypeCat    Type = "cat"
)

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is one entry in the center.
type Notification struct {
	ID        string    `json:"id"`
	RemoteID  int64     `json:"remoteId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"isRead"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Priority  Priority  `json:"priority"`
}

// Draft is what a producer supplies; the center assigns the rest.
type Draft struct {
	Type     Type
	Title    string
	Message  string
	Link     string
	Priority Priority
}

// Notifier accepts new notifications.
type Notifier interface {
	Notify(d Draft)
}

// Repository persists notifications between runs.
type Repository interface {
	SaveNotification(n Notification) error
	ListNotifications() ([]Notification, error)
	MarkNotificationRead(id string) error
	MarkAllNotificationsRead() error
	DeleteNotification(id string) error
	ClearNotifications() error
}

// Remote is the server-side notification store.
type Remote interface {
	Notifications(ctx context.Context, userID int64) ([]api.RemoteNotification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, id int64) error
	ClearNotifications(ctx context.Context, userID int64) error
}

// Sink is told about every added notification (the toast popup).
type Sink func(Notification)

// Center holds notifications newest first. Persistence failures are logged
// and do not fail the in-memory operation.
type Center struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time

	mu    sync.Mutex
	items []Notification
	sinks []Sink

	remote Remote
	userID int64
}

// New loads persisted notifications from repo (which may be nil).
func New(repo Repository, log *slog.Logger) *Center {
	if log == nil {
		log = slog.Default()
	}
	c := &Center{repo: repo, log: log, now: time.Now}
	if repo != nil {
		items, err := repo.ListNotifications()
		if err != nil {
			log.Warn("load notifications", "err", err)
		}
		c.items = items
		sortNewestFirst(c.items)
	}
	return c
}

// SetClock replaces the time source.
func (c *Center) SetClock(now func() time.Time) { c.now = now }

// SetRemote enables mirroring read/delete operations of synced entries to
// the server for userID.
func (c *Center) SetRemote(r Remote, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = r
	c.userID = userID
}

// OnAdd registers a sink.
func (c *Center) OnAdd(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Notify implements Notifier.
func (c *Center) Notify(d Draft) { c.Add(d) }

// Add stores a new unread notification at the head of the list.
func (c *Center) Add(d Draft) Notification {
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	n := Notification{
		ID:        uuid.NewString(),
		Timestamp: c.now(),
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Link:      d.Link,
		Priority:  d.Priority,
	}
	c.mu.Lock()
	c.items = append([]Notification{n}, c.items...)
	c.persistLocked("save", func(r Repository) error { return r.SaveNotification(n) })
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()

	metrics.RecordNotification(string(n.Priority))
	for _, s := range sinks {
		s(n)
	}
	return n
}

// List returns a copy of all notifications, newest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...)
}

// UnreadCount is the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead marks one notification read. Unknown ids are ignored.
func (c *Center) MarkRead(ctx context.Context, id string) bool {
	c.mu.Lock()
	var remoteID int64
	found := false
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
			remoteID = c.items[i].RemoteID
			found = true
			break
		}
	}
	if found {
		c.persistLocked("mark read", func(r Repository) error { return r.MarkNotificationRead(id) })
	}
	remote := c.remote
	c.mu.Unlock()
	if !found {
		return false
	}
	if remote != nil && remoteID != 0 {
		if err := remote.MarkNotificationRead(ctx, remoteID); err != nil {
			c.log.Warn("mark remote notification read", "id", remoteID, "err", err)
		}
	}
	return true
}

// MarkAllRead marks every notification read.
func (c *Center) MarkAllRead(ctx context.Context) {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.persistLocked("mark all read", func(r Repository) error { return r.MarkAllNotificationsRead() })
	remote, userID := c.remote, c.userID
	c.mu.Unlock()
	if remote != nil && userID != 0 {
		if err := remote.MarkAllNotificationsRead(ctx, userID); err != nil {
			c.log.Warn("mark remote notifications read", "err", err)
		}
	}
}

// Remove deletes one notification.
func (c *Center) Remove(ctx context.Context, id string) bool {
	c.mu.Lock()
	var remoteID int64
	found := false
	for i := range c.items {
		if c.items[i].ID == id {
			remoteID = c.items[i].RemoteID
			c.items = append(c.items[:i], c.items[i+1:]...)
			found = true
			break
		}
	}
	if found {
		c.persistLocked("delete", func(r Repository) error { return r.DeleteNotification(id) })
	}
	remote := c.remote
	c.mu.Unlock()
	if !found {
		return false
	}
	if remote != nil && remoteID != 0 {
		if err := remote.DeleteNotification(ctx, remoteID); err != nil {
			c.log.Warn("delete remote notification", "id", remoteID, "err", err)
		}
	}
	return true
}

// Clear deletes every notification.
func (c *Center) Clear(ctx context.Context) {
	c.mu.Lock()
	c.items = nil
	c.persistLocked("clear", func(r Repository) error { return r.ClearNotifications() })
	remote, userID := c.remote, c.userID
	c.mu.Unlock()
	if remote != nil && userID != 0 {
		if err := remote.ClearNotifications(ctx, userID); err != nil {
			c.log.Warn("clear remote notifications", "err", err)
		}
	}
}

// Sync merges the server's notifications for userID into the center.
// Entries already present (by server id) get their read flag updated; new
// ones are added without firing sinks. Returns how many were added.
func (c *Center) Sync(ctx context.Context, r Remote, userID int64) (int, error) {
	remote, err := r.Notifications(ctx, userID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	byRemote := make(map[int64]int, len(c.items))
	for i, it := range c.items {
		if it.RemoteID != 0 {
			byRemote[it.RemoteID] = i
		}
	}
	var added, changed []Notification
	for _, rn := range remote {
		if i, ok := byRemote[rn.ID]; ok {
			if rn.Seen() && !c.items[i].Read {
				c.items[i].Read = true
				changed = append(changed, c.items[i])
			}
			continue
		}
		n := fromRemote(rn, c.now())
		c.items = append(c.items, n)
		added = append(added, n)
	}
	sortNewestFirst(c.items)
	for _, n := range append(added, changed...) {
		c.persistLocked("save", func(r Repository) error { return r.SaveNotification(n) })
	}
	c.mu.Unlock()
	return len(added), nil
}

func fromRemote(rn api.RemoteNotification, fallback time.Time) Notification {
	ts := rn.Timestamp.Time
	if ts.IsZero() {
		ts = fallback
	}
	p := Priority(rn.Priority)
	if p == "" {
		p = PriorityMedium
	}
	return Notification{
		ID:        "remote-" + strconv.FormatInt(rn.ID, 10),
		RemoteID:  rn.ID,
		Timestamp: ts,
		Read:      rn.Seen(),
		Type:      remoteType(rn.Type),
		Title:     rn.Title,
		Message:   rn.Message,
		Priority:  p,
	}
}

// remoteType folds the server's finer-grained types into the local set.
func remoteType(t string) Type {
	switch t {
	case "robot_status", "robot_error", "robot":
		return TypeRobot
	case "cat_alert", "cat":
		return TypeCat
	case "alert":
		return TypeAlert
	}
	return TypeSystem
}

// persistLocked writes through to the repository. Callers hold c.mu so the
// repository sees changes in the same order as items.
func (c *Center) persistLocked(op string, fn func(Repository) error) {
	if c.repo == nil {
		return
	}
	if err := fn(c.repo); err != nil {
		c.log.Warn("persist notification", "op", op, "err", err)
	}
}

func sortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}
