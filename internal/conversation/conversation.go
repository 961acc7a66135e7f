// Package conversation models the conversation list and its filters.
package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/vibein/vibechat/internal/message"
)

// ConnectionStatus is the relationship between the current user and the
// other participant.
type ConnectionStatus string

const (
	Accepted ConnectionStatus = "accepted"
	Pending  ConnectionStatus = "pending"
	None     ConnectionStatus = "none"
	Declined ConnectionStatus = "declined"
)

// Conversation is one row of the conversation list.
type Conversation struct {
	OtherUserID      string           `json:"other_user_id"`
	Name             string           `json:"name"`
	ProfilePicture   string           `json:"profile_picture"`
	LastMessage      string           `json:"last_message"`
	Timestamp        time.Time        `json:"timestamp"`
	UnreadCount      int              `json:"unread_count"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
}

// Wire is the server representation of a conversation.
type Wire struct {
	OtherUserID      message.ID `json:"other_user_id"`
	Name             string     `json:"name"`
	ProfilePicture   string     `json:"profile_picture"`
	LastMessage      string     `json:"last_message"`
	Timestamp        int64      `json:"timestamp"`
	UnreadCount      int        `json:"unread_count"`
	ConnectionStatus string     `json:"connection_status"`
}

// FromWire converts a fetched conversation. An unknown connection status is
// treated as none.
func FromWire(w Wire) Conversation {
	cs := ConnectionStatus(strings.ToLower(w.ConnectionStatus))
	switch cs {
	case Accepted, Pending, None, Declined:
	default:
		cs = None
	}
	return Conversation{
		OtherUserID:      w.OtherUserID.String(),
		Name:             w.Name,
		ProfilePicture:   w.ProfilePicture,
		LastMessage:      w.LastMessage,
		Timestamp:        message.UnixAuto(w.Timestamp),
		UnreadCount:      w.UnreadCount,
		ConnectionStatus: cs,
	}
}

// Mode selects one of the conversation list views.
type Mode string

const (
	All      Mode = "all"
	Requests Mode = "requests"
	Unread   Mode = "unread"
)

// Modes lists the filter modes in display order.
var Modes = []Mode{All, Requests, Unread}

// ParseMode parses a filter name. The empty string means All.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return All, nil
	case All, Requests, Unread:
		return m, nil
	}
	return "", fmt.Errorf("unknown filter %q: want all, requests or unread", s)
}

// Match reports whether c belongs in the given view.
func (m Mode) Match(c *Conversation) bool {
	switch m {
	case Requests:
		return c.ConnectionStatus != Accepted
	case Unread:
		return c.ConnectionStatus == Accepted && c.UnreadCount > 0
	default:
		return c.ConnectionStatus == Accepted
	}
}

// Filter returns the conversations of all that match mode, in source order.
// The source slice is not modified and the result never aliases it.
func Filter(all []Conversation, mode Mode) []Conversation {
	out := make([]Conversation, 0, len(all))
	for i := range all {
		if mode.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}
