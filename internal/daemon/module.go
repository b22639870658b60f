package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/iboybrian/atitlan-vibes/internal/api"
	"github.com/iboybrian/atitlan-vibes/internal/board"
	"github.com/iboybrian/atitlan-vibes/internal/bus"
	"github.com/iboybrian/atitlan-vibes/internal/lock"
	"github.com/iboybrian/atitlan-vibes/internal/logging"
	"github.com/iboybrian/atitlan-vibes/internal/metrics"
	"github.com/iboybrian/atitlan-vibes/internal/profile"
	"github.com/iboybrian/atitlan-vibes/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
	LogLevel    string
	MetricsAddr string // empty disables the metrics listener
	FeedBuffer  int    // per-subscriber change buffer; 0 = default
}

// Module returns the fx module for the board daemon.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			metrics.New,
			provideEngine,
			provideBoardService,
			health.NewServer,
			NewServer,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, p.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so that only the lock holder migrates.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideEngine(db *store.DB, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *board.Engine {
	return board.NewEngine(db, b, m, logger.Named("board"))
}

func provideBoardService(p Params, e *board.Engine, logger *zap.Logger) *api.BoardService {
	return api.NewBoardService(e, logger.Named("api"), p.FeedBuffer)
}

type lifecycleParams struct {
	fx.In

	Server  *Server
	Metrics *MetricsServer
	Health  *health.Server
	Lock    *lock.Lock
	DB      *store.DB
	Engine  *board.Engine
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleParams) {
	logger := in.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			in.Engine.Start(context.Background())

			if err := in.Metrics.Start(); err != nil {
				in.Engine.Stop()
				return err
			}

			go func() {
				if err := in.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			in.Health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
			in.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			logger.Info("board daemon ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			in.Health.Shutdown()
			in.Server.Stop(ctx)
			if err := in.Metrics.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics server", zap.Error(err))
			}
			in.Engine.Stop()
			if err := in.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
