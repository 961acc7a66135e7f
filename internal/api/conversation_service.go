package api

import (
	"context"

	"github.com/vibein/vibechat/internal/conversation"
	"github.com/vibein/vibechat/internal/inbox"
	"github.com/vibein/vibechat/internal/observe"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ConversationService implements ConversationServer on top of the inbox.
type ConversationService struct {
	inbox  *inbox.Inbox
	logger *zap.Logger
}

// NewConversationService creates the conversation list service.
func NewConversationService(in *inbox.Inbox, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{inbox: in, logger: logger}
}

func (s *ConversationService) List(_ context.Context, req *ListConversationsRequest) (*ConversationList, error) {
	mode, err := conversation.ParseMode(req.Filter)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return listFor(mode, s.inbox.State().Get(), s.inbox.Snapshot(mode)), nil
}

func (s *ConversationService) Refresh(ctx context.Context, _ *Empty) (*RefreshResponse, error) {
	if err := s.inbox.Refresh(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &RefreshResponse{Count: len(s.inbox.Snapshot(conversation.All))}, nil
}

// Watch streams the filtered list every time the inbox changes.
func (s *ConversationService) Watch(req *ListConversationsRequest, stream grpc.ServerStream) error {
	mode, err := conversation.ParseMode(req.Filter)
	if err != nil {
		return invalid("%v", err)
	}
	views, cancel := s.inbox.State().Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(listFor(mode, v, s.inbox.Snapshot(mode))); err != nil {
				return err
			}
		}
	}
}

func (s *ConversationService) Respond(ctx context.Context, req *RespondRequest) (*Empty, error) {
	if req.OtherUserID == "" {
		return nil, invalid("other_user_id is required")
	}
	if err := s.inbox.Respond(ctx, req.OtherUserID, req.Accept); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("connection request answered",
		zap.String("other_user_id", req.OtherUserID), zap.Bool("accept", req.Accept))
	return &Empty{}, nil
}

func listFor(mode conversation.Mode, v inbox.View, convs []conversation.Conversation) *ConversationList {
	counts := make(map[string]int, len(v.Counts))
	for m, n := range v.Counts {
		counts[string(m)] = n
	}
	out := &ConversationList{
		Filter:        string(mode),
		Conversations: convs,
		Counts:        counts,
		Load:          v.Load.String(),
	}
	if v.Load == observe.Failed {
		out.Error = v.Err
	}
	return out
}
