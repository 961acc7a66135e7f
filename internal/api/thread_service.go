package api

import (
	"context"

	"github.com/vibein/vibechat/internal/inbox"
	"github.com/vibein/vibechat/internal/message"
	"github.com/vibein/vibechat/internal/notify"
	"github.com/vibein/vibechat/internal/presence"
	"github.com/vibein/vibechat/internal/push"
	"github.com/vibein/vibechat/internal/thread"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ThreadService implements ThreadServer. Threads are opened in the shared
// directory for as long as a call or stream needs them.
type ThreadService struct {
	dir      *thread.Directory
	presence *presence.Registry
	inbox    *inbox.Inbox
	center   *notify.Center
	logger   *zap.Logger
}

// NewThreadService creates the thread service.
func NewThreadService(dir *thread.Directory, reg *presence.Registry, in *inbox.Inbox, center *notify.Center, logger *zap.Logger) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThreadService{dir: dir, presence: reg, inbox: in, center: center, logger: logger}
}

// Watch streams snapshots of one conversation. A foreground watcher counts
// as the user looking at it for as long as the stream is open.
func (s *ThreadService) Watch(req *WatchThreadRequest, stream grpc.ServerStream) error {
	if req.OtherUserID == "" {
		return invalid("other_user_id is required")
	}
	ctx := stream.Context()
	th, release := s.dir.Open(req.OtherUserID)
	defer release()

	if req.Foreground {
		leave := s.presence.Acquire(req.OtherUserID)
		defer leave()
		s.inbox.MarkSeen(req.OtherUserID)
		s.center.ClearSender(req.OtherUserID)
	}

	go func() {
		if err := th.Load(ctx); err != nil {
			s.logger.Debug("history load ended", zap.String("other_user_id", req.OtherUserID), zap.Error(err))
		}
	}()

	snaps, cancel := th.State().Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(threadSnapshot(snap)); err != nil {
				return err
			}
		}
	}
}

func (s *ThreadService) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.OtherUserID == "" {
		return nil, invalid("other_user_id is required")
	}
	typ, err := message.ParseType(req.Type)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if len(req.Attachments) > 0 {
		typ = message.TypeImage
	}
	th, release := s.dir.Open(req.OtherUserID)
	defer release()

	out := th.Send(ctx, thread.Draft{
		TempID:      req.TempID,
		Type:        typ,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	return s.outcome(req.OtherUserID, out)
}

func (s *ThreadService) Retry(ctx context.Context, req *MessageRef) (*SendResponse, error) {
	if req.OtherUserID == "" || req.TempID == "" {
		return nil, invalid("other_user_id and temp_id are required")
	}
	th, release := s.dir.Open(req.OtherUserID)
	defer release()
	return s.outcome(req.OtherUserID, th.Retry(ctx, req.TempID))
}

func (s *ThreadService) AckFailure(_ context.Context, req *MessageRef) (*AckFailureResponse, error) {
	th, ok := s.dir.Get(req.OtherUserID)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "conversation %s is not open", req.OtherUserID)
	}
	return &AckFailureResponse{Acked: th.AckFailure(req.TempID)}, nil
}

// outcome turns a send result into a response. Validation problems are RPC
// errors; a send that reached the pipeline and failed is reported in-band.
func (s *ThreadService) outcome(otherUserID string, out thread.Outcome) (*SendResponse, error) {
	if out.Sent() {
		s.inbox.NoteOutgoing(otherUserID, push.Preview(out.Message), out.Message.Timestamp)
		return &SendResponse{TempID: out.TempID, Sent: true, Message: out.Message}, nil
	}
	if st := toStatus(out.Err); grpcstatus.Code(st) == codes.InvalidArgument || grpcstatus.Code(st) == codes.FailedPrecondition {
		return nil, st
	}
	return &SendResponse{TempID: out.TempID, Error: out.Reason()}, nil
}

func threadSnapshot(s thread.Snapshot) *ThreadSnapshot {
	msgs := s.Messages
	if msgs == nil {
		msgs = []message.Message{}
	}
	return &ThreadSnapshot{
		OtherUserID:  s.OtherUserID,
		Messages:     msgs,
		History:      s.History.String(),
		HistoryError: s.HistoryErr,
		Failure:      s.Failure,
	}
}
