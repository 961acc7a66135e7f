package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vibein/vibechat/internal/status"
	"go.uber.org/zap"
)

// ErrUnauthorized is returned by Run when the backend rejects the token.
var ErrUnauthorized = errors.New("push socket rejected credentials")

const maxFrameBytes = 1 << 20

// Handler consumes decoded push data maps.
type Handler interface {
	Dispatch(ctx context.Context, data map[string]string) error
}

// ListenerOptions configure the push socket connection.
type ListenerOptions struct {
	URL          string
	Token        string
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	PingInterval time.Duration
	Dialer       *websocket.Dialer
}

// Listener keeps a websocket to the backend open and feeds every frame to
// a Handler. It drives the link state machine as the connection comes and
// goes.
type Listener struct {
	opts    ListenerOptions
	handler Handler
	machine *status.Machine
	logger  *zap.Logger
}

// NewListener creates a listener. Zero options get defaults.
func NewListener(opts ListenerOptions, h Handler, machine *status.Machine, logger *zap.Logger) *Listener {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(time.Minute, opts.MinBackoff)
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{opts: opts, handler: h, machine: machine, logger: logger.Named("listener")}
}

func (l *Listener) transition(to status.State, detail string) {
	if err := l.machine.TransitionWithDetail(to, detail); err != nil {
		l.logger.Debug("link transition skipped", zap.Error(err))
	}
}

// Run connects and reconnects until ctx is done, which returns nil. It
// returns ErrUnauthorized when there is no token or the backend refuses it.
func (l *Listener) Run(ctx context.Context) error {
	if l.opts.Token == "" {
		l.transition(status.AuthRequired, "no token configured")
		return ErrUnauthorized
	}
	backoff := l.opts.MinBackoff
	for {
		l.transition(status.Connecting, "")
		conn, err := l.dial(ctx)
		if errors.Is(err, ErrUnauthorized) {
			l.transition(status.AuthRequired, err.Error())
			return err
		}
		if err == nil {
			backoff = l.opts.MinBackoff
			l.transition(status.Online, "")
			l.logger.Info("push socket connected", zap.String("url", l.opts.URL))
			err = l.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn("push socket lost", zap.Error(err), zap.Duration("retry_in", backoff))
		l.transition(status.Reconnecting, err.Error())

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.opts.MaxBackoff)
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.opts.Token)
	conn, resp, err := l.opts.Dialer.DialContext(ctx, l.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("dial push socket: %w", err)
	}
	return conn, nil
}

// serve reads frames until the connection fails or ctx is done.
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	deadline := 2 * l.opts.PingInterval
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	go func() {
		ticker := time.NewTicker(l.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		data, err := Decode(frame)
		if err != nil {
			l.logger.Debug("undecodable push frame", zap.Error(err))
			continue
		}
		if err := l.handler.Dispatch(ctx, data); err != nil {
			l.logger.Debug("push not dispatched", zap.Error(err))
		}
	}
}

// Decode flattens a JSON object frame into a push data map. String values
// are kept as-is; any other value keeps its JSON text, so a list of ids
// arrives the same way a string-only push transport would send it. Keys of
// a nested "data" object override the top level.
func Decode(frame []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make(map[string]string, len(raw))
	flatten(raw, out)
	if nested, ok := raw["data"]; ok {
		var inner map[string]json.RawMessage
		if json.Unmarshal(nested, &inner) == nil {
			delete(out, "data")
			flatten(inner, out)
		}
	}
	return out, nil
}

func flatten(raw map[string]json.RawMessage, out map[string]string) {
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
			continue
		}
		var buf bytes.Buffer
		if json.Compact(&buf, v) == nil {
			out[k] = buf.String()
		}
	}
}
