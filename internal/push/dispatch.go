package push

import (
	"context"
	"sync"
	"time"

	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/notify"
	"github.com/vibein/vibechat/internal/store"
	"github.com/vibein/vibechat/internal/thread"
	"go.uber.org/zap"
)

// Presence reports whether a conversation is being looked at.
type Presence interface {
	Active(key string) bool
}

// Threads is the set of open threads.
type Threads interface {
	Get(otherUserID string) (*thread.Thread, bool)
	Each(fn func(*thread.Thread))
}

// Notifier posts system notifications. posted is false for a duplicate.
type Notifier interface {
	Post(ctx context.Context, n store.Notification) (posted bool, err error)
}

// Inbox is the conversation list. NoteIncoming and NoteSeen return false
// when the sender is not in the list.
type Inbox interface {
	NoteIncoming(sender, preview string, ts time.Time) bool
	NoteSeen(sender, preview string, ts time.Time) bool
	Refresh(ctx context.Context) error
}

// Acker acknowledges delivery of incoming messages.
type Acker interface {
	MarkDelivered(ctx context.Context, ids []string) error
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Self     string
	Presence Presence
	Threads  Threads
	Notifier Notifier
	Inbox    Inbox
	Acker    Acker
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Received is the payload of message.received events.
type Received struct {
	Message    message.Message
	SenderName string
	// Foreground is true when the message went straight into an open view.
	Foreground bool
}

// ReceiptApplied is the payload of message.receipt events.
type ReceiptApplied struct {
	Receipt Receipt
	Changed int
}

// Dropped is the payload of push.dropped events.
type Dropped struct {
	Data   map[string]string
	Reason string
}

// Dispatcher routes parsed pushes to threads, the inbox and notifications.
type Dispatcher struct {
	deps   Deps
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{deps: deps, logger: logger.Named("push")}
}

// Dispatch handles one push data map. Malformed payloads are dropped and
// reported with ErrMalformed; everything else returns nil once local state
// is updated. Acknowledgements to the backend run in the background.
func (d *Dispatcher) Dispatch(ctx context.Context, data map[string]string) error {
	p, err := Parse(data)
	if err != nil {
		d.logger.Debug("push dropped", zap.Error(err))
		d.deps.Bus.Publish(bus.Event{Kind: bus.KindPushDropped, Payload: Dropped{Data: data, Reason: err.Error()}})
		return err
	}
	switch p.Kind {
	case KindStatusUpdate:
		d.statusUpdate(*p.Receipt)
		return nil
	default:
		return d.newMessage(ctx, p)
	}
}

func (d *Dispatcher) newMessage(ctx context.Context, p Payload) error {
	m := *p.Message
	m.ReceiverID = d.deps.Self
	m.IsDelivered = true

	if th, ok := d.foreground(m.SenderID); ok {
		if th.Deliver(m) {
			th.MarkRead([]string{m.MessageID})
			if !d.deps.Inbox.NoteSeen(m.SenderID, Preview(&m), m.Timestamp) {
				d.background("inbox refresh", d.deps.Inbox.Refresh)
			}
			d.publishReceived(m, p.SenderName, true)
		}
		return nil
	}

	title := p.SenderName
	if title == "" {
		title = m.SenderID
	}
	preview := Preview(&m)
	posted, err := d.deps.Notifier.Post(ctx, store.Notification{
		Kind:       notify.KindMessage,
		SenderID:   m.SenderID,
		SenderName: p.SenderName,
		Title:      title,
		Body:       preview,
		MessageID:  m.MessageID,
		CreatedAt:  m.Timestamp.UnixMilli(),
	})
	if err != nil {
		return err
	}
	if !posted {
		d.logger.Debug("duplicate push", zap.String("message_id", m.MessageID))
		return nil
	}

	ids := []string{m.MessageID}
	d.background("mark delivered", func(ctx context.Context) error {
		return d.deps.Acker.MarkDelivered(ctx, ids)
	})
	if !d.deps.Inbox.NoteIncoming(m.SenderID, preview, m.Timestamp) {
		d.background("inbox refresh", d.deps.Inbox.Refresh)
	}
	d.publishReceived(m, p.SenderName, false)
	return nil
}

// foreground returns the thread of sender when it is open and viewed.
func (d *Dispatcher) foreground(sender string) (*thread.Thread, bool) {
	if !d.deps.Presence.Active(sender) {
		return nil, false
	}
	return d.deps.Threads.Get(sender)
}

func (d *Dispatcher) statusUpdate(r Receipt) {
	changed := 0
	d.deps.Threads.Each(func(th *thread.Thread) {
		changed += th.ApplyReceipt(r.MessageIDs, r.Status)
	})
	d.logger.Debug("receipt applied",
		zap.Strings("message_ids", r.MessageIDs),
		zap.String("status", string(r.Status)),
		zap.Int("changed", changed))
	d.deps.Bus.Publish(bus.Event{Kind: bus.KindMessageReceipt, Payload: ReceiptApplied{Receipt: r, Changed: changed}})
}

func (d *Dispatcher) publishReceived(m message.Message, senderName string, fg bool) {
	d.deps.Bus.Publish(bus.Event{
		Kind:    bus.KindMessageReceived,
		Payload: Received{Message: m, SenderName: senderName, Foreground: fg},
	})
}

// background runs fn detached from the push that triggered it. Failures
// are logged only.
func (d *Dispatcher) background(what string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.logger.Debug(what+" failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background work started by Dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
