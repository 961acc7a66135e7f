// Package notify posts system notifications: they are stored for later
// listing and search, and announced on the bus for live clients.
package notify

import (
	"context"
	"fmt"

	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/store"
	"go.uber.org/zap"
)

// Notification kinds.
const (
	KindMessage           = "message"
	KindConnectionRequest = "connection_request"
	KindSystem            = "system"
)

// Store is the persistence the center needs.
type Store interface {
	InsertNotification(n *store.Notification) (bool, error)
	ListNotifications(unseenOnly bool, limit, offset int) ([]store.Notification, error)
	SearchNotifications(query string, limit int) ([]store.SearchResult, error)
	MarkNotificationSeen(id int64) error
	MarkSenderSeen(senderID string) (int64, error)
	NotificationCount() (total, unseen int, err error)
}

// Center posts and queries notifications.
type Center struct {
	store  Store
	bus    *bus.Bus
	logger *zap.Logger
}

// NewCenter creates a notification center.
func NewCenter(s Store, b *bus.Bus, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{store: s, bus: b, logger: logger}
}

// Post stores n and publishes notification.posted. A repeat of an already
// posted message notification is dropped; posted reports whether n was new.
func (c *Center) Post(ctx context.Context, n store.Notification) (posted bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if n.Kind == "" {
		n.Kind = KindSystem
	}
	inserted, err := c.store.InsertNotification(&n)
	if err != nil {
		return false, fmt.Errorf("post notification: %w", err)
	}
	if !inserted {
		c.logger.Debug("duplicate notification dropped",
			zap.String("kind", n.Kind), zap.String("message_id", n.MessageID))
		return false, nil
	}
	c.logger.Info("notification posted",
		zap.Int64("id", n.ID), zap.String("kind", n.Kind), zap.String("sender_id", n.SenderID))
	c.bus.Publish(bus.Event{Kind: bus.KindNotification, Payload: n})
	return true, nil
}

// List returns notifications newest first.
func (c *Center) List(unseenOnly bool, limit, offset int) ([]store.Notification, error) {
	return c.store.ListNotifications(unseenOnly, limit, offset)
}

// Search runs a full-text query over posted notifications.
func (c *Center) Search(query string, limit int) ([]store.SearchResult, error) {
	return c.store.SearchNotifications(query, limit)
}

// MarkSeen flags one notification as seen.
func (c *Center) MarkSeen(id int64) error {
	return c.store.MarkNotificationSeen(id)
}

// ClearSender flags every notification from senderID as seen. It runs when
// the user opens that conversation.
func (c *Center) ClearSender(senderID string) {
	n, err := c.store.MarkSenderSeen(senderID)
	if err != nil {
		c.logger.Warn("clear sender notifications", zap.String("sender_id", senderID), zap.Error(err))
		return
	}
	if n > 0 {
		c.logger.Debug("sender notifications cleared", zap.String("sender_id", senderID), zap.Int64("count", n))
	}
}

// Counts returns the total and unseen counts.
func (c *Center) Counts() (total, unseen int, err error) {
	return c.store.NotificationCount()
}
