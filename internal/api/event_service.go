package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/vibein/vibechat/internal/bus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const eventBuffer = 128

// EventService implements EventServer by relaying bus events.
type EventService struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventService creates the event stream service.
func NewEventService(b *bus.Bus, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{bus: b, logger: logger}
}

// Watch streams events whose kind starts with the requested namespace.
// Events are dropped for a client that cannot keep up.
func (s *EventService) Watch(req *WatchEventsRequest, stream grpc.ServerStream) error {
	ns := strings.TrimSpace(req.Namespace)
	if ns != "" && !strings.HasSuffix(ns, ".") {
		ns += "."
	}
	events, unsub := s.bus.Subscribe(ns, eventBuffer)
	defer unsub()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(s.toEvent(evt)); err != nil {
				return err
			}
		}
	}
}

func (s *EventService) toEvent(evt bus.Event) *Event {
	out := &Event{ID: uuid.NewString(), Kind: evt.Kind, OccurredAt: evt.Timestamp}
	if evt.Payload == nil {
		return out
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		s.logger.Debug("event payload not encodable", zap.String("kind", evt.Kind), zap.Error(err))
		return out
	}
	out.Payload = payload
	return out
}
