package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/presence"
	"github.com/vibein/vibechat/internal/store"
	"github.com/vibein/vibechat/internal/thread"
	"go.uber.org/zap/zaptest"
)

type threadBackend struct {
	mu   sync.Mutex
	read [][]string
	next int
}

func (b *threadBackend) History(context.Context, string) ([]message.Message, error) { return nil, nil }

func (b *threadBackend) SendMessage(_ context.Context, to string, typ message.Type, content string) (message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	return message.Message{MessageID: fmt.Sprintf("s%d", b.next), SenderID: "me", ReceiverID: to, Type: typ, Content: content}, nil
}

func (b *threadBackend) MarkRead(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read = append(b.read, ids)
	return nil
}

func (b *threadBackend) readCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.read)
}

type fakeNotifier struct {
	mu     sync.Mutex
	posted []store.Notification
	seen   map[string]bool
}

func (n *fakeNotifier) Post(_ context.Context, note store.Notification) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen == nil {
		n.seen = map[string]bool{}
	}
	if n.seen[note.MessageID] {
		return false, nil
	}
	n.seen[note.MessageID] = true
	n.posted = append(n.posted, note)
	return true, nil
}

type fakeInbox struct {
	mu        sync.Mutex
	known     map[string]bool
	noted     []string
	seen      []string
	refreshed int
}

func (f *fakeInbox) NoteIncoming(sender, _ string, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noted = append(f.noted, sender)
	return f.known[sender]
}

func (f *fakeInbox) NoteSeen(sender, _ string, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, sender)
	return f.known[sender]
}

func (f *fakeInbox) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return nil
}

type fakeAcker struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (a *fakeAcker) MarkDelivered(_ context.Context, ids []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, ids...)
	return a.err
}

type harness struct {
	d        *Dispatcher
	reg      *presence.Registry
	dir      *thread.Directory
	tb       *threadBackend
	notifier *fakeNotifier
	inbox    *fakeInbox
	acker    *fakeAcker
	bus      *bus.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reg:      presence.New(),
		tb:       &threadBackend{},
		notifier: &fakeNotifier{},
		inbox:    &fakeInbox{known: map[string]bool{"U123": true, "U999": true}},
		acker:    &fakeAcker{},
		bus:      bus.New(),
	}
	logger := zaptest.NewLogger(t)
	h.dir = thread.NewDirectory(thread.Deps{Self: "me", Backend: h.tb, Bus: h.bus, Logger: logger})
	h.d = NewDispatcher(Deps{
		Self:     "me",
		Presence: h.reg,
		Threads:  h.dir,
		Notifier: h.notifier,
		Inbox:    h.inbox,
		Acker:    h.acker,
		Bus:      h.bus,
		Logger:   logger,
	})
	return h
}

// view opens the conversation the way a foreground screen does.
func (h *harness) view(t *testing.T, otherUserID string) *thread.Thread {
	t.Helper()
	th, closeThread := h.dir.Open(otherUserID)
	release := h.reg.Acquire(otherUserID)
	t.Cleanup(func() {
		release()
		closeThread()
	})
	return th
}

func newMessagePush(sender, id string) map[string]string {
	return map[string]string{
		"type": "new_message", "sender_id": sender, "message_id": id,
		"message": "hello", "sender_name": sender + " name",
	}
}

func TestForegroundSuppression(t *testing.T) {
	h := newHarness(t)
	th := h.view(t, "U123")
	ctx := context.Background()

	if err := h.d.Dispatch(ctx, newMessagePush("U123", "m1")); err != nil {
		t.Fatal(err)
	}
	if err := h.d.Dispatch(ctx, newMessagePush("U999", "m2")); err != nil {
		t.Fatal(err)
	}
	h.d.Wait()

	msgs := th.Snapshot().Messages
	if len(msgs) != 1 || msgs[0].MessageID != "m1" {
		t.Fatalf("open thread = %+v, want only m1", msgs)
	}
	if len(h.notifier.posted) != 1 || h.notifier.posted[0].SenderID != "U999" {
		t.Fatalf("notifications = %+v, want one for U999", h.notifier.posted)
	}
	if h.notifier.posted[0].Title != "U999 name" || h.notifier.posted[0].Body != "hello" {
		t.Errorf("notification = %+v", h.notifier.posted[0])
	}
	if len(h.inbox.noted) != 1 || h.inbox.noted[0] != "U999" {
		t.Errorf("inbox noted = %v, want [U999]", h.inbox.noted)
	}
	if len(h.inbox.seen) != 1 || h.inbox.seen[0] != "U123" {
		t.Errorf("inbox seen = %v, want [U123]", h.inbox.seen)
	}
	if len(h.acker.ids) != 1 || h.acker.ids[0] != "m2" {
		t.Errorf("delivered acks = %v, want [m2]", h.acker.ids)
	}
	waitUntil(t, func() bool { return h.tb.readCount() == 1 })
}

func TestBackgroundWhenThreadOpenButNotViewed(t *testing.T) {
	h := newHarness(t)
	th, release := h.dir.Open("U123")
	defer release()

	if err := h.d.Dispatch(context.Background(), newMessagePush("U123", "m1")); err != nil {
		t.Fatal(err)
	}
	h.d.Wait()
	if n := len(th.Snapshot().Messages); n != 0 {
		t.Errorf("thread mutated without a viewer: %d messages", n)
	}
	if len(h.notifier.posted) != 1 {
		t.Errorf("posted %d notifications, want 1", len(h.notifier.posted))
	}
}

func TestViewerGoneRestoresNotifications(t *testing.T) {
	h := newHarness(t)
	th, closeThread := h.dir.Open("U123")
	release := h.reg.Acquire("U123")
	release()
	closeThread()

	if err := h.d.Dispatch(context.Background(), newMessagePush("U123", "m1")); err != nil {
		t.Fatal(err)
	}
	h.d.Wait()
	if len(h.notifier.posted) != 1 {
		t.Errorf("stale presence suppressed the notification")
	}
	if len(th.Snapshot().Messages) != 0 {
		t.Error("closed thread received the message")
	}
}

func TestDuplicatePushIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range 2 {
		if err := h.d.Dispatch(ctx, newMessagePush("U999", "m1")); err != nil {
			t.Fatal(err)
		}
	}
	h.d.Wait()
	if len(h.notifier.posted) != 1 || len(h.inbox.noted) != 1 || len(h.acker.ids) != 1 {
		t.Errorf("posted=%d noted=%d acked=%d, want 1 each",
			len(h.notifier.posted), len(h.inbox.noted), len(h.acker.ids))
	}

	th := h.view(t, "U123")
	for range 2 {
		_ = h.d.Dispatch(ctx, newMessagePush("U123", "m7"))
	}
	if n := len(th.Snapshot().Messages); n != 1 {
		t.Errorf("foreground duplicate produced %d messages", n)
	}
}

func TestUnknownSenderRefreshesInbox(t *testing.T) {
	h := newHarness(t)
	if err := h.d.Dispatch(context.Background(), newMessagePush("U555", "m1")); err != nil {
		t.Fatal(err)
	}
	h.d.Wait()
	if h.inbox.refreshed != 1 {
		t.Errorf("refreshed %d times, want 1", h.inbox.refreshed)
	}
}

func TestDeliveredAckFailureIgnored(t *testing.T) {
	h := newHarness(t)
	h.acker.err = errors.New("offline")
	if err := h.d.Dispatch(context.Background(), newMessagePush("U999", "m1")); err != nil {
		t.Fatalf("ack failure surfaced: %v", err)
	}
	h.d.Wait()
}

func TestStatusUpdateAppliesToOpenThreads(t *testing.T) {
	h := newHarness(t)
	a := h.view(t, "U123")
	b := h.view(t, "U999")
	ctx := context.Background()

	outA := a.Send(ctx, thread.Draft{Content: "one"})
	outB := b.Send(ctx, thread.Draft{Content: "two"})
	if !outA.Sent() || !outB.Sent() {
		t.Fatal("sends failed")
	}

	ch, unsub := h.bus.Subscribe("message.", 16)
	defer unsub()

	ids := `["` + outA.Message.MessageID + `","` + outB.Message.MessageID + `"]`
	data := map[string]string{"type": "status_update", "message_ids": ids, "status": "read"}
	for range 2 {
		if err := h.d.Dispatch(ctx, data); err != nil {
			t.Fatal(err)
		}
	}

	if st := a.Snapshot().Messages[0].Status; st != message.Read {
		t.Errorf("thread a status = %s", st)
	}
	if st := b.Snapshot().Messages[0].Status; st != message.Read {
		t.Errorf("thread b status = %s", st)
	}

	var changed []int
	for len(changed) < 2 {
		select {
		case evt := <-ch:
			if r, ok := evt.Payload.(ReceiptApplied); ok {
				changed = append(changed, r.Changed)
			}
		case <-time.After(time.Second):
			t.Fatalf("receipt events = %v", changed)
		}
	}
	if changed[0] != 2 || changed[1] != 0 {
		t.Errorf("changed = %v, want [2 0]", changed)
	}
}

func TestMalformedPushDropped(t *testing.T) {
	h := newHarness(t)
	ch, unsub := h.bus.Subscribe("push.", 4)
	defer unsub()

	err := h.d.Dispatch(context.Background(), map[string]string{"type": "status_update", "status": "read"})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	select {
	case evt := <-ch:
		if evt.Kind != bus.KindPushDropped {
			t.Errorf("kind = %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no push.dropped event")
	}
	if len(h.notifier.posted) != 0 {
		t.Error("malformed push posted a notification")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
