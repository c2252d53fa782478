package store

import (
	"time"

	"petcare-console/internal/notify"
)

// tsLayout is fixed width so that ORDER BY ts sorts chronologically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func (db *DB) SaveNotification(n notify.Notification) error {
	_, err := db.Exec(`INSERT INTO notifications (id, remote_id, ts, is_read, type, title, message, link, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_read = excluded.is_read, title = excluded.title,
			message = excluded.message, priority = excluded.priority`,
		n.ID, n.RemoteID, n.Timestamp.UTC().Format(tsLayout), n.Read,
		string(n.Type), n.Title, n.Message, n.Link, string(n.Priority))
	return err
}

func (db *DB) ListNotifications() ([]notify.Notification, error) {
	rows, err := db.Query(`SELECT id, remote_id, ts, is_read, type, title, message, link, priority
		FROM notifications ORDER BY ts DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.Notification
	for rows.Next() {
		var (
			n        notify.Notification
			ts       string
			typ, pri string
		)
		if err := rows.Scan(&n.ID, &n.RemoteID, &ts, &n.Read, &typ, &n.Title, &n.Message, &n.Link, &pri); err != nil {
			return nil, err
		}
		n.Timestamp, _ = time.Parse(tsLayout, ts)
		n.Type = notify.Type(typ)
		n.Priority = notify.Priority(pri)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) MarkNotificationRead(id string) error {
	_, err := db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	return err
}

func (db *DB) MarkAllNotificationsRead() error {
	_, err := db.Exec(`UPDATE notifications SET is_read = 1`)
	return err
}

func (db *DB) DeleteNotification(id string) error {
	_, err := db.Exec(`DELETE FROM notifications WHERE id = ?`, id)
	return err
}

func (db *DB) ClearNotifications() error {
	_, err := db.Exec(`DELETE FROM notifications`)
	return err
}

var _ notify.Repository = (*DB)(nil)
