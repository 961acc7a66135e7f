// Package model keeps the daemon state the TUI renders, fed by the
// daemon's watch streams.
package model

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/client"
	"github.com/vibein/vibechat/internal/tui/ui"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Refresh names what changed in a signal to the UI.
type Refresh int

const (
	RefreshStatus Refresh = iota
	RefreshList
	RefreshThread
)

// ViewModel caches state from the daemon and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	client *client.Client
	status *api.StatusResponse
	list   api.ConversationList
	thread api.ThreadSnapshot
	active string
	Flash  *ui.FlashModel

	refreshCh chan Refresh
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		Flash:     ui.NewFlashModel(),
		refreshCh: make(chan Refresh, 16),
	}
}

// Client returns the daemon client.
func (vm *ViewModel) Client() *client.Client { return vm.client }

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan Refresh {
	return vm.refreshCh
}

func (vm *ViewModel) signal(r Refresh) {
	select {
	case vm.refreshCh <- r:
	default:
	}
}

// Status returns the last fetched daemon status.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// List returns the last conversation list snapshot.
func (vm *ViewModel) List() api.ConversationList {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.list
}

// Thread returns the last snapshot of the active conversation.
func (vm *ViewModel) Thread() api.ThreadSnapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Active returns the conversation being watched.
func (vm *ViewModel) Active() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	st, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	vm.signal(RefreshStatus)
	return nil
}

// WatchConversations streams one filter mode of the conversation list
// until ctx ends.
func (vm *ViewModel) WatchConversations(ctx context.Context, filter string) error {
	stream, err := vm.client.WatchConversations(ctx, filter)
	if err != nil {
		return err
	}
	for {
		list, err := stream.Recv()
		if err != nil {
			return streamErr(ctx, err)
		}
		vm.mu.Lock()
		vm.list = *list
		vm.mu.Unlock()
		vm.signal(RefreshList)
	}
}

// WatchThread makes otherUserID the active conversation and streams it in
// the foreground until ctx ends. Each unacknowledged send failure is flashed
// once and then acknowledged.
func (vm *ViewModel) WatchThread(ctx context.Context, otherUserID string) error {
	vm.mu.Lock()
	vm.active = otherUserID
	vm.thread = api.ThreadSnapshot{OtherUserID: otherUserID}
	vm.mu.Unlock()
	defer func() {
		vm.mu.Lock()
		if vm.active == otherUserID {
			vm.active = ""
		}
		vm.mu.Unlock()
	}()

	stream, err := vm.client.WatchThread(ctx, otherUserID, true)
	if err != nil {
		return err
	}
	for {
		snap, err := stream.Recv()
		if err != nil {
			return streamErr(ctx, err)
		}
		vm.mu.Lock()
		if vm.active == otherUserID {
			vm.thread = *snap
		}
		vm.mu.Unlock()
		vm.signal(RefreshThread)

		if snap.Failure != "" {
			vm.Flash.Warn("message not sent: %s (r to retry)", failReason(snap))
			if _, err := vm.client.AckFailure(ctx, otherUserID, snap.Failure); err != nil && ctx.Err() == nil {
				vm.Flash.Err("ack failure", err)
			}
		}
	}
}

// WatchStatus reloads the status whenever the push link changes state or a
// notification is posted.
func (vm *ViewModel) WatchStatus(ctx context.Context) error {
	stream, err := vm.client.WatchEvents(ctx, "")
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			return streamErr(ctx, err)
		}
		if !affectsStatus(ev.Kind) {
			continue
		}
		if err := vm.LoadStatus(ctx); err != nil && ctx.Err() == nil {
			vm.Flash.Err("status", err)
		}
	}
}

func affectsStatus(kind string) bool {
	return strings.HasPrefix(kind, "link.") || strings.HasPrefix(kind, "notification.")
}

// Send sends a text message to the active conversation. A failed send is
// reported through the thread, so only transport errors are returned.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	return vm.send(ctx, &api.SendRequest{Content: text})
}

// SendImages sends local image files to the active conversation.
func (vm *ViewModel) SendImages(ctx context.Context, paths []string) error {
	return vm.send(ctx, &api.SendRequest{Attachments: paths})
}

func (vm *ViewModel) send(ctx context.Context, req *api.SendRequest) error {
	req.OtherUserID = vm.Active()
	if req.OtherUserID == "" {
		return errors.New("no conversation open")
	}
	_, err := vm.client.Send(ctx, req)
	return err
}

// Retry resends a failed message of the active conversation.
func (vm *ViewModel) Retry(ctx context.Context, tempID string) error {
	user := vm.Active()
	if user == "" {
		return errors.New("no conversation open")
	}
	_, err := vm.client.Retry(ctx, user, tempID)
	return err
}

// Respond accepts or declines a connection request.
func (vm *ViewModel) Respond(ctx context.Context, otherUserID string, accept bool) error {
	return vm.client.Respond(ctx, otherUserID, accept)
}

// Refresh refetches the conversation list.
func (vm *ViewModel) Refresh(ctx context.Context) (int, error) {
	resp, err := vm.client.Refresh(ctx)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Notifications lists stored notifications, or searches them when query is
// set.
func (vm *ViewModel) Notifications(ctx context.Context, query string, unseenOnly bool) (*api.NotificationList, error) {
	if query != "" {
		return vm.client.SearchNotifications(ctx, query, 100)
	}
	return vm.client.Notifications(ctx, &api.ListNotificationsRequest{UnseenOnly: unseenOnly, Limit: 100})
}

// MarkSeen flags a notification as seen.
func (vm *ViewModel) MarkSeen(ctx context.Context, id int64) error {
	return vm.client.MarkNotificationSeen(ctx, id)
}

func failReason(snap *api.ThreadSnapshot) string {
	for _, m := range snap.Messages {
		if m.TempID == snap.Failure && m.FailReason != "" {
			return m.FailReason
		}
	}
	return "send failed"
}

// streamErr maps the end of a watch stream: cancellation by the caller is a
// clean stop.
func streamErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
		return nil
	}
	return err
}
