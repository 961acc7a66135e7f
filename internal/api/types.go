package api

import (
	"encoding/json"
	"time"

	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/store"
)

// Empty is used for requests and responses without fields.
type Empty struct{}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Profile       string    `json:"profile"`
	UserID        string    `json:"user_id"`
	Link          string    `json:"link"`
	LinkDetail    string    `json:"link_detail,omitempty"`
	LinkSince     time.Time `json:"link_since"`
	UptimeMs      int64     `json:"uptime_ms"`
	OpenThreads   int       `json:"open_threads"`
	Viewing       []string  `json:"viewing"`
	Notifications int       `json:"notifications"`
	Unseen        int       `json:"unseen"`
	DroppedEvents uint64    `json:"dropped_events"`
}

// ListConversationsRequest selects a filter mode ("all", "requests", "unread").
type ListConversationsRequest struct {
	Filter string `json:"filter"`
}

// ConversationList is one filtered view of the conversation list.
type ConversationList struct {
	Filter        string                      `json:"filter"`
	Conversations []conversation.Conversation `json:"conversations"`
	Counts        map[string]int              `json:"counts"`
	Load          string                      `json:"load"`
	Error         string                      `json:"error,omitempty"`
}

// RefreshResponse reports how many conversations were fetched.
type RefreshResponse struct {
	Count int `json:"count"`
}

// RespondRequest accepts or declines a connection request.
type RespondRequest struct {
	OtherUserID string `json:"other_user_id"`
	Accept      bool   `json:"accept"`
}

// WatchThreadRequest opens a conversation. With Foreground set, the stream
// counts as the user looking at it: pushes from that user go straight into
// the thread instead of raising a notification.
type WatchThreadRequest struct {
	OtherUserID string `json:"other_user_id"`
	Foreground  bool   `json:"foreground"`
}

// ThreadSnapshot is the state of one conversation.
type ThreadSnapshot struct {
	OtherUserID  string            `json:"other_user_id"`
	Messages     []message.Message `json:"messages"`
	History      string            `json:"history"`
	HistoryError string            `json:"history_error,omitempty"`
	// Failure is the temp id of an unacknowledged send failure.
	Failure string `json:"failure,omitempty"`
}

// SendRequest sends a message. Attachments are local files for an image
// message; TempID is generated when empty.
type SendRequest struct {
	OtherUserID string   `json:"other_user_id"`
	TempID      string   `json:"temp_id,omitempty"`
	Type        string   `json:"message_type,omitempty"`
	Content     string   `json:"message_content,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// SendResponse is the outcome of a send. A failed send is not an RPC error:
// Sent is false and Error carries the reason.
type SendResponse struct {
	TempID  string           `json:"temp_id"`
	Sent    bool             `json:"sent"`
	Message *message.Message `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// MessageRef names a message of a conversation by its temp id.
type MessageRef struct {
	OtherUserID string `json:"other_user_id"`
	TempID      string `json:"temp_id"`
}

// AckFailureResponse reports whether the failure signal was consumed.
type AckFailureResponse struct {
	Acked bool `json:"acked"`
}

// DeliverPushRequest injects a push data map, as a push bridge would.
type DeliverPushRequest struct {
	Data map[string]string `json:"data"`
}

// ListNotificationsRequest pages through notifications.
type ListNotificationsRequest struct {
	UnseenOnly bool `json:"unseen_only"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
}

// Notification is a stored system notification.
type Notification struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	MessageID  string    `json:"message_id,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"created_at"`
	Snippet    string    `json:"snippet,omitempty"`
}

// NotificationList is a page of notifications.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	HasMore       bool           `json:"has_more"`
}

// SearchNotificationsRequest runs a full-text query.
type SearchNotificationsRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// MarkSeenRequest flags one notification as seen.
type MarkSeenRequest struct {
	ID int64 `json:"id"`
}

// WatchEventsRequest filters bus events by namespace ("message", "link"...).
// Empty means all.
type WatchEventsRequest struct {
	Namespace string `json:"namespace"`
}

// Event is a bus event as seen by clients.
type Event struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func notificationFromStore(n store.Notification) Notification {
	return Notification{
		ID:         n.ID,
		Kind:       n.Kind,
		SenderID:   n.SenderID,
		SenderName: n.SenderName,
		Title:      n.Title,
		Body:       n.Body,
		MessageID:  n.MessageID,
		Seen:       n.Seen,
		CreatedAt:  time.UnixMilli(n.CreatedAt),
	}
}
