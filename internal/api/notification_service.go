package api

import (
	"context"

	"github.com/vibein/vibechat/internal/notify"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// NotificationService implements NotificationServer.
type NotificationService struct {
	center *notify.Center
}

// NewNotificationService creates the notification service.
func NewNotificationService(c *notify.Center) *NotificationService {
	return &NotificationService{center: c}
}

func pageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	}
	return n
}

func (s *NotificationService) List(_ context.Context, req *ListNotificationsRequest) (*NotificationList, error) {
	if req.Offset < 0 {
		return nil, invalid("offset must not be negative")
	}
	limit := pageSize(req.Limit)
	// One extra row tells whether another page exists.
	rows, err := s.center.List(req.UnseenOnly, limit+1, req.Offset)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &NotificationList{Notifications: make([]Notification, 0, len(rows))}
	if len(rows) > limit {
		rows, resp.HasMore = rows[:limit], true
	}
	for _, n := range rows {
		resp.Notifications = append(resp.Notifications, notificationFromStore(n))
	}
	return resp, nil
}

func (s *NotificationService) Search(_ context.Context, req *SearchNotificationsRequest) (*NotificationList, error) {
	if req.Query == "" {
		return nil, invalid("query is required")
	}
	results, err := s.center.Search(req.Query, pageSize(req.Limit))
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &NotificationList{Notifications: make([]Notification, 0, len(results))}
	for _, r := range results {
		n := notificationFromStore(r.Notification)
		n.Snippet = r.Snippet
		resp.Notifications = append(resp.Notifications, n)
	}
	return resp, nil
}

func (s *NotificationService) MarkSeen(_ context.Context, req *MarkSeenRequest) (*Empty, error) {
	if err := s.center.MarkSeen(req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}
