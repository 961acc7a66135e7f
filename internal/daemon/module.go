package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/vibein/vibechat/internal/api"
	"github.com/vibein/vibechat/internal/backend"
	"github.com/vibein/vibechat/internal/bus"
	"github.com/vibein/vibechat/internal/config"
	"github.com/vibein/vibechat/internal/inbox"
	"github.com/vibein/vibechat/internal/lock"
	"github.com/vibein/vibechat/internal/logging"
	"github.com/vibein/vibechat/internal/notify"
	"github.com/vibein/vibechat/internal/presence"
	"github.com/vibein/vibechat/internal/profile"
	"github.com/vibein/vibechat/internal/push"
	"github.com/vibein/vibechat/internal/status"
	"github.com/vibein/vibechat/internal/store"
	"github.com/vibein/vibechat/internal/thread"
	"github.com/vibein/vibechat/internal/upload"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// SocketPath overrides the profile socket, for tests.
	SocketPath string
	// Logger replaces the file logger, for tests.
	Logger *zap.Logger
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackend,
			provideUploader,
			presence.New,
			provideDirectory,
			provideInbox,
			provideNotifyCenter,
			provideDispatcher,
			provideListener,
			provideSessionService,
			provideConversationService,
			provideThreadService,
			api.NewPushService,
			api.NewNotificationService,
			provideEventService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Config.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// daemon that owns the profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(profile.DBPath(p.Profile))
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideBackend(p Params, logger *zap.Logger) (*backend.Client, error) {
	b := p.Config.Backend
	c, err := backend.New(backend.Options{
		BaseURL: b.URL,
		Token:   b.Token,
		UserID:  b.UserID,
		Timeout: b.Timeout.Duration,
	}, logger.Named("backend"))
	if err != nil {
		return nil, err
	}
	logger.Info("backend configured", zap.String("url", b.URL), zap.String("user_id", c.Self()))
	return c, nil
}

func provideUploader(p Params, be *backend.Client, logger *zap.Logger) *upload.Uploader {
	return upload.New(be, upload.Options{
		MaxConcurrency: p.Config.Upload.MaxConcurrency,
		MaxBytes:       p.Config.Upload.MaxBytes,
	}, logger.Named("upload"))
}

func provideDirectory(be *backend.Client, up *upload.Uploader, b *bus.Bus, logger *zap.Logger) *thread.Directory {
	return thread.NewDirectory(thread.Deps{
		Self:     be.Self(),
		Backend:  be,
		Uploader: up,
		Bus:      b,
		Logger:   logger.Named("thread"),
	})
}

func provideInbox(be *backend.Client, b *bus.Bus, logger *zap.Logger) *inbox.Inbox {
	return inbox.New(be, b, logger.Named("inbox"))
}

func provideNotifyCenter(db *store.DB, b *bus.Bus, logger *zap.Logger) *notify.Center {
	return notify.NewCenter(db, b, logger.Named("notify"))
}

func provideDispatcher(be *backend.Client, reg *presence.Registry, dir *thread.Directory, in *inbox.Inbox,
	center *notify.Center, b *bus.Bus, logger *zap.Logger) *push.Dispatcher {
	return push.NewDispatcher(push.Deps{
		Self:     be.Self(),
		Presence: reg,
		Threads:  dir,
		Notifier: center,
		Inbox:    in,
		Acker:    be,
		Bus:      b,
		Logger:   logger,
	})
}

func provideListener(p Params, d *push.Dispatcher, m *status.Machine, logger *zap.Logger) (*push.Listener, error) {
	url, err := p.Config.Backend.PushEndpoint()
	if err != nil {
		return nil, err
	}
	cfg := p.Config.Push
	return push.NewListener(push.ListenerOptions{
		URL:          url,
		Token:        p.Config.Backend.Token,
		MinBackoff:   cfg.MinBackoff.Duration,
		MaxBackoff:   cfg.MaxBackoff.Duration,
		PingInterval: cfg.PingInterval.Duration,
	}, d, m, logger), nil
}

func provideSessionService(p Params, be *backend.Client, m *status.Machine, dir *thread.Directory,
	reg *presence.Registry, center *notify.Center, b *bus.Bus) *api.SessionService {
	return api.NewSessionService(p.Profile, be.Self(), m, dir, reg, center, b)
}

func provideConversationService(in *inbox.Inbox, logger *zap.Logger) *api.ConversationService {
	return api.NewConversationService(in, logger.Named("api"))
}

func provideThreadService(dir *thread.Directory, reg *presence.Registry, in *inbox.Inbox,
	center *notify.Center, logger *zap.Logger) *api.ThreadService {
	return api.NewThreadService(dir, reg, in, center, logger.Named("api"))
}

func provideEventService(b *bus.Bus, logger *zap.Logger) *api.EventService {
	return api.NewEventService(b, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, lk *lock.Lock, db *store.DB, in *inbox.Inbox,
	listener *push.Listener, d *push.Dispatcher, machine *status.Machine, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := in.Refresh(ctx); err != nil {
					logger.Warn("initial conversation refresh failed", zap.Error(err))
				}
			}()

			if !p.Config.Push.Enabled {
				logger.Info("push socket disabled")
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := listener.Run(ctx)
				switch {
				case errors.Is(err, push.ErrUnauthorized):
					logger.Warn("push socket needs a valid token", zap.Error(err))
				case err != nil:
					logger.Error("push listener stopped", zap.Error(err))
					_ = machine.TransitionWithDetail(status.Error, err.Error())
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			wg.Wait()
			d.Wait()
			srv.Stop(stopCtx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
