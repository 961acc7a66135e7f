package api_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/client"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/inbox"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/notify"
	"github.com/vibein/vibechat/internal/presence"
	"github.com/vibein/vibechat/internal/push"
	"github.com/vibein/vibechat/internal/status"
	"github.com/vibein/vibechat/internal/store"
	"github.com/vibein/vibechat/internal/thread"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// fakeBackend implements the thread, inbox and delivery-ack backends.
type fakeBackend struct {
	mu      sync.Mutex
	convs   []conversation.Conversation
	next    int
	sendErr error
	respond error
}

func (f *fakeBackend) ListConversations(context.Context) ([]conversation.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convs, nil
}

func (f *fakeBackend) RespondConnection(context.Context, string, bool) error {
	return f.respond
}

func (f *fakeBackend) History(context.Context, string) ([]message.Message, error) {
	return []message.Message{{MessageID: "h1", SenderID: "U1", ReceiverID: "me", Content: "old", Status: message.Read, IsRead: true}}, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, to string, typ message.Type, content string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return message.Message{}, f.sendErr
	}
	f.next++
	return message.Message{MessageID: fmt.Sprintf("s%d", f.next), SenderID: "me", ReceiverID: to, Type: typ, Content: content, Timestamp: time.Now()}, nil
}

func (f *fakeBackend) MarkRead(context.Context, []string) error      { return nil }
func (f *fakeBackend) MarkDelivered(context.Context, []string) error { return nil }

type env struct {
	client *client.Client
	be     *fakeBackend
	inbox  *inbox.Inbox
	dir    *thread.Directory
	reg    *presence.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	be := &fakeBackend{convs: []conversation.Conversation{
		{OtherUserID: "U1", Name: "Ana", ConnectionStatus: conversation.Accepted, UnreadCount: 2},
		{OtherUserID: "U2", Name: "Bo", ConnectionStatus: conversation.Pending},
	}}

	db, err := store.Open(filepath.Join(t.TempDir(), "n.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	reg := presence.New()
	dir := thread.NewDirectory(thread.Deps{Self: "me", Backend: be, Bus: b, Logger: logger})
	in := inbox.New(be, b, logger)
	if err := in.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	center := notify.NewCenter(db, b, logger)
	d := push.NewDispatcher(push.Deps{
		Self: "me", Presence: reg, Threads: dir, Notifier: center, Inbox: in, Acker: be, Bus: b, Logger: logger,
	})
	t.Cleanup(d.Wait)

	srv := grpc.NewServer()
	api.RegisterSessionServer(srv, api.NewSessionService("test", "me", status.NewMachine(b), dir, reg, center, b))
	api.RegisterConversationServer(srv, api.NewConversationService(in, logger))
	api.RegisterThreadServer(srv, api.NewThreadService(dir, reg, in, center, logger))
	api.RegisterPushServer(srv, api.NewPushService(d))
	api.RegisterNotificationServer(srv, api.NewNotificationService(center))
	api.RegisterEventServer(srv, api.NewEventService(b, logger))

	// Use a short path to stay under the Unix socket path limit.
	dirPath, err := os.MkdirTemp("/tmp", "vc-api-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dirPath) })
	sock := filepath.Join(dirPath, "d.sock")
	lis, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := client.New(sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &env{client: c, be: be, inbox: in, dir: dir, reg: reg}
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != code {
		t.Fatalf("code = %s (%v), want %s", got, err, code)
	}
}

func TestListConversations(t *testing.T) {
	e := newEnv(t)
	ctx := ctxT(t)

	list, err := e.client.Conversations(ctx, "requests")
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].OtherUserID != "U2" {
		t.Errorf("requests = %+v", list.Conversations)
	}
	if list.Counts["all"] != 1 || list.Counts["unread"] != 1 || list.Load != "succeeded" {
		t.Errorf("list = %+v", list)
	}

	_, err = e.client.Conversations(ctx, "starred")
	wantCode(t, err, codes.InvalidArgument)
}

func TestRespond(t *testing.T) {
	e := newEnv(t)
	ctx := ctxT(t)

	wantCode(t, e.client.Respond(ctx, "U1", true), codes.FailedPrecondition)

	if err := e.client.Respond(ctx, "U2", true); err != nil {
		t.Fatal(err)
	}
	list, _ := e.client.Conversations(ctx, "all")
	if len(list.Conversations) != 2 {
		t.Errorf("accepted request not in main list: %+v", list.Conversations)
	}
}

func TestSendAndRetry(t *testing.T) {
	e := newEnv(t)
	ctx := ctxT(t)

	_, err := e.client.Send(ctx, &api.SendRequest{OtherUserID: "U1", Content: "   "})
	wantCode(t, err, codes.InvalidArgument)

	// Keep the thread open so the failed entry survives between calls.
	th, release := e.dir.Open("U1")
	defer release()

	e.be.mu.Lock()
	e.be.sendErr = errors.New("offline")
	e.be.mu.Unlock()
	resp, err := e.client.Send(ctx, &api.SendRequest{OtherUserID: "U1", TempID: "t1", Content: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Sent || resp.TempID != "t1" || resp.Error == "" {
		t.Fatalf("failed send = %+v", resp)
	}
	if got := th.Snapshot().Messages; len(got) != 1 || got[0].Status != message.Failed {
		t.Fatalf("thread = %+v", got)
	}

	acked, err := e.client.AckFailure(ctx, "U1", "t1")
	if err != nil || !acked {
		t.Errorf("AckFailure = %v, %v", acked, err)
	}

	e.be.mu.Lock()
	e.be.sendErr = nil
	e.be.mu.Unlock()
	resp, err = e.client.Retry(ctx, "U1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Sent || resp.Message.TempID != "t1" {
		t.Errorf("retry = %+v", resp)
	}
	_, err = e.client.Retry(ctx, "U1", "t1")
	wantCode(t, err, codes.FailedPrecondition)
}

func TestAckFailureNeedsOpenThread(t *testing.T) {
	e := newEnv(t)
	_, err := e.client.AckFailure(ctxT(t), "U9", "t1")
	wantCode(t, err, codes.NotFound)
}

func TestForegroundWatchReceivesPush(t *testing.T) {
	e := newEnv(t)
	ctx := ctxT(t)

	stream, err := e.client.WatchThread(ctx, "U1", true)
	if err != nil {
		t.Fatal(err)
	}
	// Wait for history so the watcher is registered.
	for {
		snap, err := stream.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if snap.History == "succeeded" {
			break
		}
	}
	if !e.reg.Active("U1") {
		t.Fatal("foreground watch did not register presence")
	}
	if c, _ := e.inbox.Get("U1"); c.UnreadCount != 0 {
		t.Errorf("unread = %d after opening", c.UnreadCount)
	}

	err = e.client.DeliverPush(ctx, map[string]string{
		"type": "new_message", "sender_id": "U1", "message_id": "m9", "message": "live",
	})
	if err != nil {
		t.Fatal(err)
	}
	for {
		snap, err := stream.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if n := len(snap.Messages); n > 0 && snap.Messages[n-1].MessageID == "m9" {
			break
		}
	}

	list, err := e.client.Notifications(ctx, &api.ListNotificationsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Notifications) != 0 {
		t.Errorf("foreground message raised notifications: %+v", list.Notifications)
	}
}

func TestDeliverMalformedPush(t *testing.T) {
	e := newEnv(t)
	err := e.client.DeliverPush(ctxT(t), map[string]string{"type": "bogus"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestNotificationPaging(t *testing.T) {
	e := newEnv(t)
	ctx := ctxT(t)
	for i := range 3 {
		err := e.client.DeliverPush(ctx, map[string]string{
			"type": "new_message", "sender_id": "U1", "message_id": fmt.Sprintf("m%d", i), "message": "note",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	page, err := e.client.Notifications(ctx, &api.ListNotificationsRequest{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Notifications) != 2 || !page.HasMore {
		t.Errorf("page = %d has_more=%v", len(page.Notifications), page.HasMore)
	}
	page, _ = e.client.Notifications(ctx, &api.ListNotificationsRequest{Limit: 2, Offset: 2})
	if len(page.Notifications) != 1 || page.HasMore {
		t.Errorf("last page = %d has_more=%v", len(page.Notifications), page.HasMore)
	}

	wantCode(t, e.client.MarkNotificationSeen(ctx, 999), codes.NotFound)

	_, err = e.client.SearchNotifications(ctx, "", 10)
	wantCode(t, err, codes.InvalidArgument)
}

func TestStatus(t *testing.T) {
	e := newEnv(t)
	_, release := e.dir.Open("U1")
	defer release()
	leave := e.reg.Acquire("U1")
	defer leave()

	st, err := e.client.Status(ctxT(t))
	if err != nil {
		t.Fatal(err)
	}
	if st.Profile != "test" || st.Link != "BOOTING" || st.OpenThreads != 1 || len(st.Viewing) != 1 {
		t.Errorf("status = %+v", st)
	}
}
