package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Notification is a posted system notification.
type Notification struct {
	ID         int64
	Kind       string
	SenderID   string
	SenderName string
	Title      string
	Body       string
	MessageID  string
	Seen       bool
	CreatedAt  int64 // unix millis
}

// SearchResult holds a notification with a search snippet.
type SearchResult struct {
	Notification Notification
	Snippet      string
}

// ErrNotFound is returned when no notification has the requested id.
var ErrNotFound = errors.New("notification not found")

const notificationColumns = `id, kind, sender_id, sender_name, title, body, message_id, seen, created_at`

// InsertNotification stores n and sets its ID. A notification for a message
// id that was already posted with the same kind is ignored; inserted reports
// whether a row was written.
func (db *DB) InsertNotification(n *Notification) (inserted bool, err error) {
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	res, err := db.Exec(`
		INSERT OR IGNORE INTO notifications (kind, sender_id, sender_name, title, body, message_id, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Kind, n.SenderID, n.SenderName, n.Title, n.Body, n.MessageID, n.Seen, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return false, err
	}
	return true, nil
}

// ListNotifications returns notifications newest first. With unseenOnly
// set, seen notifications are skipped.
func (db *DB) ListNotifications(unseenOnly bool, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + notificationColumns + ` FROM notifications`
	if unseenOnly {
		q += ` WHERE seen = 0`
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := db.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotification returns one notification by id.
func (db *DB) GetNotification(id int64) (*Notification, error) {
	row := db.QueryRow(`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkNotificationSeen flags one notification as seen.
func (db *DB) MarkNotificationSeen(id int64) error {
	res, err := db.Exec(`UPDATE notifications SET seen = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSenderSeen flags every notification from senderID as seen, as
// happens when the user opens that conversation. It returns the number of
// rows changed.
func (db *DB) MarkSenderSeen(senderID string) (int64, error) {
	res, err := db.Exec(`UPDATE notifications SET seen = 1 WHERE sender_id = ? AND seen = 0`, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NotificationCount returns the total and unseen notification counts.
func (db *DB) NotificationCount() (total, unseen int, err error) {
	err = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN seen = 0 THEN 1 ELSE 0 END), 0) FROM notifications`).
		Scan(&total, &unseen)
	return total, unseen, err
}

// SearchNotifications performs a full-text search over title, body and
// sender name.
func (db *DB) SearchNotifications(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT n.id, n.kind, n.sender_id, n.sender_name, n.title, n.body,
		       n.message_id, n.seen, n.created_at,
		       snippet(notifications_fts, 1, '<<', '>>', '...', 32)
		FROM notifications_fts f
		JOIN notifications n ON n.id = f.rowid
		WHERE notifications_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		n := &r.Notification
		if err := rows.Scan(&n.ID, &n.Kind, &n.SenderID, &n.SenderName, &n.Title, &n.Body,
			&n.MessageID, &n.Seen, &n.CreatedAt, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (Notification, error) {
	var n Notification
	err := s.Scan(&n.ID, &n.Kind, &n.SenderID, &n.SenderName, &n.Title, &n.Body, &n.MessageID, &n.Seen, &n.CreatedAt)
	return n, err
}
