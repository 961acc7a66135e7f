package bus

import "time"

// Event kinds published by the daemon. Subscribers filter on the prefix
// before the dot.
const (
	KindMessageSent       = "message.sent"
	KindMessageSendFailed = "message.send_failed"
	KindMessageReceived   = "message.received"
	KindMessageReceipt    = "message.receipt"
	KindNotification      = "notification.posted"
	KindInboxChanged      = "inbox.changed"
	KindLinkStatus        = "link.status_changed"
	KindPushDropped       = "push.dropped"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespace returns the part of the kind before the first dot.
func (e Event) Namespace() string {
	for i := 0; i < len(e.Kind); i++ {
		if e.Kind[i] == '.' {
			return e.Kind[:i]
		}
	}
	return e.Kind
}
