package api

import (
	"context"
	"sort"
	"time"

	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/presence"
	"github.com/vibein/vibechat/internal/status"
	"github.com/vibein/vibechat/internal/thread"
)

// Counter reports notification totals.
type Counter interface {
	Counts() (total, unseen int, err error)
}

// SessionService implements SessionServer.
type SessionService struct {
	profile   string
	userID    string
	startedAt time.Time
	machine   *status.Machine
	threads   *thread.Directory
	presence  *presence.Registry
	counter   Counter
	bus       *bus.Bus
}

// NewSessionService creates the status service.
func NewSessionService(profile, userID string, machine *status.Machine, threads *thread.Directory,
	reg *presence.Registry, counter Counter, b *bus.Bus) *SessionService {
	return &SessionService{
		profile:   profile,
		userID:    userID,
		startedAt: time.Now(),
		machine:   machine,
		threads:   threads,
		presence:  reg,
		counter:   counter,
		bus:       b,
	}
}

func (s *SessionService) GetStatus(_ context.Context, _ *Empty) (*StatusResponse, error) {
	link, since, detail := s.machine.Snapshot()
	resp := &StatusResponse{
		Profile:    s.profile,
		UserID:     s.userID,
		Link:       string(link),
		LinkDetail: detail,
		LinkSince:  since,
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
		Viewing:    []string{},
	}
	if s.threads != nil {
		resp.OpenThreads = s.threads.Len()
	}
	if s.presence != nil {
		resp.Viewing = s.presence.Keys()
		sort.Strings(resp.Viewing)
	}
	if s.counter != nil {
		if total, unseen, err := s.counter.Counts(); err == nil {
			resp.Notifications, resp.Unseen = total, unseen
		}
	}
	if s.bus != nil {
		resp.DroppedEvents = s.bus.Dropped()
	}
	return resp, nil
}
