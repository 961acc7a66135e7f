// Package inbox holds the conversation list and its filtered views.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vibein/vibechat/internal/backend"
	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/observe"
	"github.com/vibein/vibechat/internal/optimistic"
	"go.uber.org/zap"
)

// ErrNoRequest is returned when responding to a conversation that has no
// pending connection request.
var ErrNoRequest = errors.New("no pending connection request")

// Backend is the part of the REST API the inbox uses.
type Backend interface {
	ListConversations(ctx context.Context) ([]conversation.Conversation, error)
	RespondConnection(ctx context.Context, otherUserID string, accept bool) error
}

// View is the filtered list observers see.
type View struct {
	Mode          conversation.Mode
	Conversations []conversation.Conversation
	Load          observe.LoadState
	Err           string
	// Counts is the size of every mode's view, for tab labels.
	Counts map[conversation.Mode]int
}

// Changed is the payload of inbox.changed events. OtherUserID is empty
// after a full refresh.
type Changed struct {
	OtherUserID string
}

// Inbox owns the last fetched conversation list.
type Inbox struct {
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger

	mu   sync.Mutex
	list observe.Resource[[]conversation.Conversation]
	mode conversation.Mode

	state *observe.Value[View]
}

// New creates an empty inbox showing all accepted conversations.
func New(be Backend, b *bus.Bus, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Inbox{backend: be, bus: b, logger: logger, mode: conversation.All}
	in.state = observe.NewValue(View{Mode: conversation.All, Counts: map[conversation.Mode]int{}})
	return in
}

// State returns the observable filtered view.
func (in *Inbox) State() *observe.Value[View] { return in.state }

// Mode returns the current filter mode.
func (in *Inbox) Mode() conversation.Mode {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.mode
}

func (in *Inbox) publishLocked(otherUserID string) {
	counts := make(map[conversation.Mode]int, len(conversation.Modes))
	for _, m := range conversation.Modes {
		counts[m] = len(conversation.Filter(in.list.Data, m))
	}
	v := View{
		Mode:          in.mode,
		Conversations: conversation.Filter(in.list.Data, in.mode),
		Load:          in.list.State,
		Counts:        counts,
	}
	if in.list.Err != nil {
		v.Err = backend.UserMessage(in.list.Err)
	}
	in.state.Set(v)
	in.bus.Publish(bus.Event{Kind: bus.KindInboxChanged, Payload: Changed{OtherUserID: otherUserID}})
}

// Refresh refetches the list. On failure the previous list stays visible.
func (in *Inbox) Refresh(ctx context.Context) error {
	in.mu.Lock()
	in.list = observe.Loading(in.list.Data)
	in.publishLocked("")
	in.mu.Unlock()

	convs, err := in.backend.ListConversations(ctx)

	in.mu.Lock()
	defer in.mu.Unlock()
	if err != nil {
		in.list = observe.Failure(in.list.Data, err)
		in.publishLocked("")
		in.logger.Warn("conversation refresh failed", zap.Error(err))
		return fmt.Errorf("list conversations: %w", err)
	}
	in.list = observe.Success(slices.Clone(convs))
	in.publishLocked("")
	in.logger.Debug("conversations refreshed", zap.Int("count", len(convs)))
	return nil
}

// SetMode switches the filter and republishes the view.
func (in *Inbox) SetMode(mode conversation.Mode) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.mode == mode {
		return
	}
	in.mode = mode
	in.publishLocked("")
}

// Snapshot returns the conversations matching mode without changing the
// current filter.
func (in *Inbox) Snapshot(mode conversation.Mode) []conversation.Conversation {
	in.mu.Lock()
	defer in.mu.Unlock()
	return conversation.Filter(in.list.Data, mode)
}

// Get returns one conversation by the other participant's id.
func (in *Inbox) Get(otherUserID string) (conversation.Conversation, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if i := in.indexLocked(otherUserID); i >= 0 {
		return in.list.Data[i], true
	}
	return conversation.Conversation{}, false
}

func (in *Inbox) indexLocked(otherUserID string) int {
	return slices.IndexFunc(in.list.Data, func(c conversation.Conversation) bool { return c.OtherUserID == otherUserID })
}

// NoteIncoming records a message from sender that arrived while its
// conversation was not open: the conversation moves to the top with the
// new preview and one more unread. It returns false if sender is not in
// the list, in which case the caller should refresh.
func (in *Inbox) NoteIncoming(sender, preview string, ts time.Time) bool {
	return in.note(sender, preview, ts, 1)
}

// NoteSeen records a message from sender that went straight into its open
// thread. The preview moves like NoteIncoming but the unread count stays.
func (in *Inbox) NoteSeen(sender, preview string, ts time.Time) bool {
	return in.note(sender, preview, ts, 0)
}

// NoteOutgoing updates the preview after the user sent a message.
func (in *Inbox) NoteOutgoing(otherUserID, preview string, ts time.Time) {
	in.note(otherUserID, preview, ts, 0)
}

func (in *Inbox) note(otherUserID, preview string, ts time.Time, unread int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	i := in.indexLocked(otherUserID)
	if i < 0 {
		return false
	}
	c := in.list.Data[i]
	c.LastMessage = preview
	c.Timestamp = ts
	c.UnreadCount += unread
	in.list.Data = slices.Delete(in.list.Data, i, i+1)
	in.list.Data = slices.Insert(in.list.Data, 0, c)
	in.publishLocked(otherUserID)
	return true
}

// MarkSeen zeroes the unread count of one conversation.
func (in *Inbox) MarkSeen(otherUserID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	i := in.indexLocked(otherUserID)
	if i < 0 || in.list.Data[i].UnreadCount == 0 {
		return
	}
	in.list.Data[i].UnreadCount = 0
	in.publishLocked(otherUserID)
}

// Respond accepts or declines a pending connection request. The list is
// updated immediately and restored if the server rejects the change:
// accepting moves the conversation into the main list, declining removes it.
func (in *Inbox) Respond(ctx context.Context, otherUserID string, accept bool) error {
	in.mu.Lock()
	i := in.indexLocked(otherUserID)
	if i < 0 || in.list.Data[i].ConnectionStatus != conversation.Pending {
		in.mu.Unlock()
		return ErrNoRequest
	}
	prev := in.list.Data[i]
	in.mu.Unlock()

	m := optimistic.Mutation{
		Apply: func() {
			in.mu.Lock()
			defer in.mu.Unlock()
			j := in.indexLocked(otherUserID)
			if j < 0 {
				return
			}
			if accept {
				in.list.Data[j].ConnectionStatus = conversation.Accepted
			} else {
				in.list.Data = slices.Delete(in.list.Data, j, j+1)
			}
			in.publishLocked(otherUserID)
		},
		Rollback: func() {
			in.mu.Lock()
			defer in.mu.Unlock()
			if j := in.indexLocked(otherUserID); j >= 0 {
				in.list.Data[j] = prev
			} else {
				in.list.Data = slices.Insert(in.list.Data, min(i, len(in.list.Data)), prev)
			}
			in.publishLocked(otherUserID)
		},
	}
	err := optimistic.Run(ctx, m, func(ctx context.Context) error {
		return in.backend.RespondConnection(ctx, otherUserID, accept)
	})
	if err != nil {
		in.logger.Warn("connection response rolled back",
			zap.String("other_user_id", otherUserID), zap.Bool("accept", accept), zap.Error(err))
		return err
	}
	in.logger.Info("connection response sent", zap.String("other_user_id", otherUserID), zap.Bool("accept", accept))
	return nil
}
