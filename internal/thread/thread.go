// Package thread holds the message list of one conversation and runs the
// send pipeline and receipt reconciliation against it.
package thread

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vibein/vibechat/internal/backend"
	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/observe"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned for operations on a thread whose view has gone away.
	ErrClosed = errors.New("thread closed")
	// ErrNotFailed is returned when retrying a message that is not FAILED.
	ErrNotFailed = errors.New("message is not in FAILED state")
	// ErrInFlight is returned when a temp id is already being sent.
	ErrInFlight = errors.New("message is already being sent")
	// ErrConfirmed is returned when a temp id belongs to a message the
	// server already accepted.
	ErrConfirmed = errors.New("temp id already confirmed")
	// ErrEmpty is returned for a draft with nothing to send.
	ErrEmpty = errors.New("message is empty")
)

// Backend is the part of the REST API a thread uses.
type Backend interface {
	History(ctx context.Context, otherUserID string) ([]message.Message, error)
	SendMessage(ctx context.Context, receiverID string, typ message.Type, content string) (message.Message, error)
	MarkRead(ctx context.Context, ids []string) error
}

// MediaUploader uploads the attachments of an image draft.
type MediaUploader interface {
	UploadAll(ctx context.Context, uris []string) ([]string, error)
}

// Deps are the collaborators shared by every thread.
type Deps struct {
	Self     string
	Backend  Backend
	Uploader MediaUploader
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Draft is what the user asked to send. Attachments are local file URIs
// for an image message; they are uploaded before the message is sent.
type Draft struct {
	TempID      string
	Type        message.Type
	Content     string
	Attachments []string
}

// Outcome is the result of a send: either Message is set (sent) or Err is
// set (failed). TempID is always set.
type Outcome struct {
	TempID  string
	Message *message.Message
	Err     error
}

// Sent reports whether the send succeeded.
func (o Outcome) Sent() bool { return o.Err == nil && o.Message != nil }

// Reason is the user-facing failure text.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return backend.UserMessage(o.Err)
}

// Snapshot is a consistent view of a thread after a mutation.
type Snapshot struct {
	OtherUserID string
	Messages    []message.Message
	History     observe.LoadState
	HistoryErr  string
	// Failure is the temp id of the latest unacknowledged send failure.
	Failure string
}

// SendAck is published on the bus when a send is confirmed.
type SendAck struct {
	OtherUserID string
	TempID      string
	MessageID   string
}

// SendFailure is published on the bus when a send fails.
type SendFailure struct {
	OtherUserID string
	TempID      string
	Reason      string
}

// Thread is the message list for one conversation. All mutations are
// serialized by mu and each one publishes a fresh Snapshot.
type Thread struct {
	otherID string
	deps    Deps
	logger  *zap.Logger

	mu       sync.Mutex
	msgs     []message.Message
	drafts   map[string]Draft
	receipts *receiptBuffer
	history  observe.Resource[[]message.Message]
	closed   bool

	failures observe.Signal[string]
	state    *observe.Value[Snapshot]
}

// New creates an empty thread for otherUserID.
func New(otherUserID string, deps Deps) *Thread {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Thread{
		otherID:  otherUserID,
		deps:     deps,
		logger:   logger.With(zap.String("other_user_id", otherUserID)),
		drafts:   make(map[string]Draft),
		receipts: newReceiptBuffer(256),
	}
	t.state = observe.NewValue(Snapshot{OtherUserID: otherUserID})
	return t
}

// OtherUserID returns the conversation key.
func (t *Thread) OtherUserID() string { return t.otherID }

// State returns the observable snapshot.
func (t *Thread) State() *observe.Value[Snapshot] { return t.state }

// Snapshot returns the current snapshot.
func (t *Thread) Snapshot() Snapshot { return t.state.Get() }

// publishLocked pushes the current list to observers. Callers hold mu.
func (t *Thread) publishLocked() {
	failure, _ := t.failures.Peek()
	snap := Snapshot{
		OtherUserID: t.otherID,
		Messages:    slices.Clone(t.msgs),
		History:     t.history.State,
		Failure:     failure,
	}
	if t.history.Err != nil {
		snap.HistoryErr = backend.UserMessage(t.history.Err)
	}
	t.state.Set(snap)
}

func (t *Thread) indexByTemp(tempID string) int {
	return slices.IndexFunc(t.msgs, func(m message.Message) bool { return m.TempID == tempID })
}

func (t *Thread) indexByID(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(t.msgs, func(m message.Message) bool { return m.MessageID == id })
}

// Close detaches the thread from its view. Work still in flight completes
// but its list mutations are dropped.
func (t *Thread) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Closed reports whether Close was called.
func (t *Thread) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send inserts a SENDING placeholder, uploads attachments if any, sends the
// message and reconciles the placeholder with the result. The placeholder
// is inserted before Send blocks on the network, so entries appear in call
// order no matter when the responses come back.
func (t *Thread) Send(ctx context.Context, d Draft) Outcome {
	if d.Type == "" {
		d.Type = message.TypeText
	}
	if d.TempID == "" {
		d.TempID = uuid.NewString()
	}
	if err := validate(d); err != nil {
		return Outcome{TempID: d.TempID, Err: err}
	}
	if err := t.insertPlaceholder(d); err != nil {
		return Outcome{TempID: d.TempID, Err: err}
	}

	content := d.Content
	if d.Type == message.TypeImage && len(d.Attachments) > 0 {
		urls, err := t.deps.Uploader.UploadAll(ctx, d.Attachments)
		if err != nil {
			return t.fail(d.TempID, err)
		}
		if content, err = message.EncodeImages(urls); err != nil {
			return t.fail(d.TempID, err)
		}
	}

	sent, err := t.deps.Backend.SendMessage(ctx, t.otherID, d.Type, content)
	if err != nil {
		return t.fail(d.TempID, err)
	}
	return t.confirm(d.TempID, sent)
}

// Retry resends a FAILED message with its original draft and temp id.
func (t *Thread) Retry(ctx context.Context, tempID string) Outcome {
	t.mu.Lock()
	idx := t.indexByTemp(tempID)
	if idx < 0 || t.msgs[idx].Status != message.Failed {
		t.mu.Unlock()
		return Outcome{TempID: tempID, Err: ErrNotFailed}
	}
	d, ok := t.drafts[tempID]
	if !ok {
		m := t.msgs[idx]
		d = Draft{TempID: tempID, Type: m.Type, Content: m.Content}
	}
	t.mu.Unlock()
	return t.Send(ctx, d)
}

func validate(d Draft) error {
	switch d.Type {
	case message.TypeText:
		if strings.TrimSpace(d.Content) == "" {
			return ErrEmpty
		}
	case message.TypeImage:
		if len(d.Attachments) > 0 {
			return nil
		}
		if _, err := message.DecodeImages(d.Content); err != nil {
			return ErrEmpty
		}
	default:
		return errors.New("unsupported message type " + string(d.Type))
	}
	return nil
}

func (t *Thread) insertPlaceholder(d Draft) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	if idx := t.indexByTemp(d.TempID); idx >= 0 {
		m := &t.msgs[idx]
		switch m.Status {
		case message.Sending:
			return ErrInFlight
		case message.Failed:
		default:
			return ErrConfirmed
		}
		if err := message.Transition(m.Status, message.Sending); err != nil {
			return err
		}
		m.Status = message.Sending
		m.FailReason = ""
		t.failures.Ack(d.TempID)
		t.drafts[d.TempID] = d
		t.publishLocked()
		return nil
	}

	content := d.Content
	if d.Type == message.TypeImage && len(d.Attachments) > 0 {
		// Show the local files until the uploaded URLs replace them.
		content, _ = message.EncodeImages(d.Attachments)
	}
	t.msgs = append(t.msgs, message.Message{
		TempID:     d.TempID,
		SenderID:   t.deps.Self,
		ReceiverID: t.otherID,
		Type:       d.Type,
		Content:    content,
		Timestamp:  time.Now(),
		Status:     message.Sending,
	})
	t.drafts[d.TempID] = d
	t.publishLocked()
	return nil
}

// confirm replaces the placeholder for tempID with the server's message.
func (t *Thread) confirm(tempID string, sent message.Message) Outcome {
	sent.TempID = tempID
	sent.Status = message.Sent
	sent.IsDelivered, sent.IsRead = false, false

	t.mu.Lock()
	// Receipts can beat the HTTP response; take them under the lock so none
	// lands in the buffer after this point.
	if st, ok := t.receipts.take(sent.MessageID); ok {
		sent.ApplyReceipt(st)
	}
	if !t.closed {
		// A history reload may have brought the confirmed copy in already.
		if dup := t.indexByID(sent.MessageID); dup >= 0 && t.msgs[dup].TempID != tempID {
			sent.ApplyReceipt(t.msgs[dup].Status)
			t.msgs = slices.Delete(t.msgs, dup, dup+1)
		}
		if idx := t.indexByTemp(tempID); idx >= 0 {
			t.msgs[idx] = sent
		} else {
			t.msgs = append(t.msgs, sent)
		}
		delete(t.drafts, tempID)
		t.publishLocked()
	}
	t.mu.Unlock()

	t.logger.Info("message sent", zap.String("temp_id", tempID), zap.String("message_id", sent.MessageID))
	t.deps.Bus.Publish(bus.Event{
		Kind:    bus.KindMessageSent,
		Payload: SendAck{OtherUserID: t.otherID, TempID: tempID, MessageID: sent.MessageID},
	})
	return Outcome{TempID: tempID, Message: &sent}
}

// fail flips the placeholder for tempID to FAILED and raises the failure signal.
func (t *Thread) fail(tempID string, cause error) Outcome {
	reason := backend.UserMessage(cause)

	t.mu.Lock()
	if !t.closed {
		if idx := t.indexByTemp(tempID); idx >= 0 {
			t.msgs[idx].Status = message.Failed
			t.msgs[idx].FailReason = reason
		}
		t.failures.Raise(tempID)
		t.publishLocked()
	}
	t.mu.Unlock()

	t.logger.Warn("message send failed", zap.String("temp_id", tempID), zap.Error(cause))
	t.deps.Bus.Publish(bus.Event{
		Kind:    bus.KindMessageSendFailed,
		Payload: SendFailure{OtherUserID: t.otherID, TempID: tempID, Reason: reason},
	})
	return Outcome{TempID: tempID, Err: cause}
}

// PendingFailure returns the temp id of the unacknowledged send failure.
func (t *Thread) PendingFailure() (string, bool) {
	return t.failures.Peek()
}

// AckFailure consumes the failure signal for tempID.
func (t *Thread) AckFailure(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.failures.Ack(tempID) {
		return false
	}
	if !t.closed {
		t.publishLocked()
	}
	return true
}

// ApplyReceipt merges a delivered/read receipt into every message whose
// server id is in ids. Ids not in the list yet are remembered and applied
// when their send is confirmed. It returns how many messages changed.
func (t *Thread) ApplyReceipt(ids []string, st message.Status) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}
	changed := 0
	for _, id := range ids {
		idx := t.indexByID(id)
		if idx < 0 {
			if t.hasInFlightLocked() {
				t.receipts.put(id, st)
			}
			continue
		}
		if t.msgs[idx].ApplyReceipt(st) {
			changed++
		}
	}
	if changed > 0 {
		t.publishLocked()
	}
	return changed
}

func (t *Thread) hasInFlightLocked() bool {
	return slices.ContainsFunc(t.msgs, func(m message.Message) bool { return m.Status == message.Sending })
}

// Deliver appends an incoming message. It returns false if the message is
// already present or the thread is closed.
func (t *Thread) Deliver(m message.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.indexByID(m.MessageID) >= 0 {
		return false
	}
	if m.Status == "" {
		m.Status = message.Sent
	}
	t.msgs = append(t.msgs, m)
	t.publishLocked()
	return true
}

// Load fetches history and rebuilds the list from it. Entries the fetched
// page does not contain are kept after the server's messages in their
// current order: local SENDING and FAILED entries, and messages confirmed
// or delivered while the fetch was in flight. Unread incoming messages are
// marked read in the background.
func (t *Thread) Load(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.history = observe.Loading(t.history.Data)
	t.publishLocked()
	t.mu.Unlock()

	fetched, err := t.deps.Backend.History(ctx, t.otherID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err != nil {
		t.history = observe.Failure(t.history.Data, err)
		t.publishLocked()
		t.logger.Warn("history load failed", zap.Error(err))
		return err
	}
	t.history = observe.Success(fetched)

	existing := make(map[string]message.Message, len(t.msgs))
	for _, m := range t.msgs {
		if m.MessageID != "" {
			existing[m.MessageID] = m
		}
	}

	var unread []string
	seen := make(map[string]bool, len(fetched))
	rebuilt := make([]message.Message, 0, len(fetched)+len(t.msgs))
	for _, m := range fetched {
		if seen[m.MessageID] {
			continue
		}
		seen[m.MessageID] = true
		if prev, ok := existing[m.MessageID]; ok {
			m.TempID = prev.TempID
			m.ApplyReceipt(prev.Status)
		}
		if st, ok := t.receipts.take(m.MessageID); ok {
			m.ApplyReceipt(st)
		}
		if m.SenderID != t.deps.Self && !m.IsRead {
			unread = append(unread, m.MessageID)
			m.IsRead = true
		}
		rebuilt = append(rebuilt, m)
	}
	for _, m := range t.msgs {
		if m.MessageID == "" || !seen[m.MessageID] {
			rebuilt = append(rebuilt, m)
		}
	}
	t.msgs = rebuilt
	t.publishLocked()

	if len(unread) > 0 {
		go t.markRead(unread)
	}
	return nil
}

// MarkRead acknowledges incoming messages without blocking the caller.
// Failures are logged and otherwise ignored.
func (t *Thread) MarkRead(ids []string) {
	if len(ids) > 0 {
		go t.markRead(ids)
	}
}

func (t *Thread) markRead(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := t.deps.Backend.MarkRead(ctx, ids); err != nil {
		t.logger.Debug("mark read failed", zap.Int("count", len(ids)), zap.Error(err))
	}
}
