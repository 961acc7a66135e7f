package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/profile"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Services groups the API implementations the server registers.
type Services struct {
	fx.In

	Session      *api.SessionService
	Conversation *api.ConversationService
	Thread       *api.ThreadService
	Push         *api.PushService
	Notification *api.NotificationService
	Event        *api.EventService
}

// Server manages the gRPC server lifecycle for a profile daemon.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger

	// Canceled on Stop; every stream's context derives from it.
	closing     context.Context
	stopStreams context.CancelFunc
}

// closingStream swaps the context of a server stream.
type closingStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *closingStream) Context() context.Context { return s.ctx }

func streamCloser(closing context.Context) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, cancel := context.WithCancel(ss.Context())
		defer cancel()
		stop := context.AfterFunc(closing, cancel)
		defer stop()
		return handler(srv, &closingStream{ServerStream: ss, ctx: ctx})
	}
}

// NewServer creates a gRPC server bound to the profile's Unix domain socket.
func NewServer(p Params, logger *zap.Logger, svc Services) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.Profile)
	}

	// Clean stale socket if it exists. The profile lock guarantees no
	// other daemon owns it.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	closing, closeStreams := context.WithCancel(context.Background())
	srv := grpc.NewServer(grpc.ChainStreamInterceptor(streamCloser(closing)))
	api.RegisterSessionServer(srv, svc.Session)
	api.RegisterConversationServer(srv, svc.Conversation)
	api.RegisterThreadServer(srv, svc.Thread)
	api.RegisterPushServer(srv, svc.Push)
	api.RegisterNotificationServer(srv, svc.Notification)
	api.RegisterEventServer(srv, svc.Event)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		grpcServer:  srv,
		health:      hs,
		listener:    listener,
		socketPath:  socketPath,
		logger:      logger,
		closing:     closing,
		stopStreams: closeStreams,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s.grpcServer.Serve(s.listener)
}

// Stop ends open streams, performs a graceful shutdown and removes the
// socket file. In-flight calls are cut when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	s.health.Shutdown()
	s.stopStreams()
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	_ = os.Remove(s.socketPath)
}
