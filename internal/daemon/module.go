package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/evently/courier/internal/bus"
	"github.com/evently/courier/internal/channel"
	"github.com/evently/courier/internal/config"
	"github.com/evently/courier/internal/lock"
	"github.com/evently/courier/internal/logging"
	"github.com/evently/courier/internal/service"
	"github.com/evently/courier/internal/session"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/status"
	"github.com/evently/courier/internal/store"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideProfile,
			provideStore,
			provideView,
			provideService,
			providePoller,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideProfile(p Params, logger *zap.Logger) (*config.Profile, error) {
	profile, err := config.LoadProfile(session.ProfilePath(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile loaded",
		zap.String("organizer", profile.OrganizerID),
		zap.String("api", profile.APIBaseURL))
	return profile, nil
}

func provideStore(profile *config.Profile) store.Store {
	return store.NewClient(profile.APIBaseURL, profile.RequestTimeoutD())
}

func provideView() *state.View {
	return state.NewView()
}

func provideService(profile *config.Profile, st store.Store, view *state.View, b *bus.Bus, logger *zap.Logger) *service.Service {
	return service.New(profile.OrganizerID, st, view, b, logger)
}

func providePoller(profile *config.Profile, svc *service.Service, b *bus.Bus, logger *zap.Logger) *channel.Poller {
	return channel.NewPoller(profile.PollIntervalD(), svc.Refresh, b, logger)
}

func provideManager(profile *config.Profile, machine *status.Machine, view *state.View, svc *service.Service, poller *channel.Poller, logger *zap.Logger) *channel.Manager {
	return channel.NewManager(
		profile.PushURL,
		profile.OrganizerID,
		profile.HandshakeTimeoutD(),
		machine,
		view,
		svc,
		poller.Start,
		logger,
	)
}

func registerLifecycle(lc fx.Lifecycle, profile *config.Profile, svc *service.Service, mgr *channel.Manager, poller *channel.Poller, lk *lock.Lock, logger *zap.Logger) {
	var metricsSrv *http.Server
	if profile.MetricsAddr != "" {
		metricsSrv = &http.Server{Addr: profile.MetricsAddr, Handler: promhttp.Handler()}
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			svc.SetBroadcaster(mgr)

			// Initial loads and the dial happen off the start hook so a slow
			// or unreachable store does not block process startup.
			go func() {
				ctx := context.Background()
				_ = svc.LoadConversations(ctx)
				_ = svc.LoadConnections(ctx)
			}()
			go func() {
				if err := mgr.Start(context.Background()); err != nil {
					logger.Warn("push channel unavailable", zap.Error(err))
				}
			}()

			if metricsSrv != nil {
				go func() {
					logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			poller.Stop()
			mgr.Close()
			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
