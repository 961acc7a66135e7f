package api

import (
	"context"

	"github.com/vibein/vibechat/internal/push"
)

// PushService implements PushServer. It lets a push bridge outside the
// daemon hand over payloads the websocket listener would otherwise read.
type PushService struct {
	dispatcher *push.Dispatcher
}

// NewPushService creates the push injection service.
func NewPushService(d *push.Dispatcher) *PushService {
	return &PushService{dispatcher: d}
}

func (s *PushService) Deliver(ctx context.Context, req *DeliverPushRequest) (*Empty, error) {
	if len(req.Data) == 0 {
		return nil, invalid("data is required")
	}
	if err := s.dispatcher.Dispatch(ctx, req.Data); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}
