package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/recoverd/internal/capture"
	"github.com/vietddude/recoverd/internal/core/config"
	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/core/worker"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/health"
	redisclient "github.com/vietddude/recoverd/internal/infra/redis"
	"github.com/vietddude/recoverd/internal/infra/storage"
	"github.com/vietddude/recoverd/internal/infra/storage/postgres"
	"github.com/vietddude/recoverd/internal/recovery"
	"github.com/vietddude/recoverd/internal/reporting"
)

// Options adjust how a Service is built.
type Options struct {
	// Markers persists the safe-mode marker. Nil keeps it in the controller only.
	Markers degrade.MarkerStore

	// SafeMode, when set, starts the service degraded: optimizations off and
	// external sinks and the gRPC server skipped.
	SafeMode *degrade.Marker

	Logger *slog.Logger
}

// Service wires the orchestrator to its servers, sinks and capture hooks.
type Service struct {
	cfg      *config.AppConfig
	safeMode bool
	log      *slog.Logger

	controller   *degrade.Controller
	session      *recovery.Session
	orchestrator *recovery.Orchestrator
	hooks        *capture.Hooks
	dispatcher   *reporting.Dispatcher
	monitor      *health.Monitor
	httpServer   *health.Server
	grpcServer   *health.GRPCServer
	db           *postgres.DB
	redisClient  *redisclient.Client
	pruner       *worker.Pruner

	reload chan degrade.Marker
}

// New builds a service from cfg. External backends that cannot be reached are
// skipped with a warning so the orchestrator always starts.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		safeMode: opts.SafeMode != nil,
		log:      log,
		reload:   make(chan degrade.Marker, 1),
	}

	// 1. Degradation controller
	s.controller = degrade.NewController(opts.Markers, log)
	if opts.SafeMode != nil {
		s.controller.Restore(*opts.SafeMode)
	}
	s.controller.SetReloadHook(s.requestReload)

	// 2. Reporting sinks
	sinks := reporting.MultiSink{reporting.NewLogSink(log)}
	if s.safeMode {
		log.Warn("Safe mode: external sinks and gRPC disabled")
	} else {
		sinks = append(sinks, s.openSinks(ctx)...)
	}
	s.dispatcher = reporting.NewDispatcher(sinks, reporting.DispatcherConfig{
		BufferSize:  cfg.Reporting.BufferSize,
		SendTimeout: cfg.Reporting.SendTimeout,
	}, log)

	// 3. Strategies and orchestrator
	registry, err := buildRegistry(cfg, s.controller)
	if err != nil {
		s.close()
		return nil, err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		s.close()
		return nil, err
	}

	s.session = recovery.NewSession(domain.DeviceDesktop, "")
	s.orchestrator = recovery.New(registry,
		recovery.WithLogger(log),
		recovery.WithThresholds(thresholds),
		recovery.WithHistoryCapacity(cfg.Recovery.MaxHistory),
		recovery.WithContextProvider(s.session),
		recovery.WithReporter(s.dispatcher),
		recovery.WithDegrader(s.controller),
	)
	s.hooks = capture.New(s.orchestrator, log)

	// 4. Health surfaces
	s.monitor = health.NewMonitor(s.orchestrator, cfg.Health.CheckInterval, log)
	s.httpServer = health.NewServer(s.monitor, s.controller, cfg.Server.Port, s.hooks.Middleware)
	registerAPI(s.httpServer, s.orchestrator, s.session)

	if !s.safeMode && cfg.Server.GRPCPort > 0 {
		s.grpcServer = health.NewGRPCServer(cfg.Server.GRPCPort)
		s.monitor.SetStatusSetter(s.grpcServer.Health())
	}

	return s, nil
}

func buildRegistry(cfg *config.AppConfig, fb recovery.Fallbacks) (*recovery.Registry, error) {
	overrides, err := cfg.StrategyOverrides()
	if err != nil {
		return nil, err
	}

	var probe recovery.Prober
	if cfg.Recovery.NetworkProbeURL != "" {
		probe = recovery.HTTPProbe(nil, cfg.Recovery.NetworkProbeURL)
	}

	strategies, err := recovery.ApplyOverrides(recovery.DefaultStrategies(fb, probe), overrides)
	if err != nil {
		return nil, err
	}
	registry, err := recovery.NewRegistry(strategies...)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy registry: %w", err)
	}
	return registry, nil
}

func (s *Service) openSinks(ctx context.Context) []reporting.Sink {
	var sinks []reporting.Sink

	if s.cfg.Reporting.Redis {
		client, err := redisclient.NewClient(s.cfg.Redis)
		if err != nil {
			s.log.Warn("Failed to connect to Redis, event list disabled", "error", err)
		} else {
			s.redisClient = client
			sinks = append(sinks, redisclient.NewEventSink(client, s.cfg.Redis.MaxEvents))
			s.log.Info("Reporting to Redis event list")
		}
	}

	if s.cfg.Reporting.Postgres {
		db, err := postgres.NewDB(ctx, s.cfg.Database)
		if err != nil {
			s.log.Warn("Failed to connect to database, event table disabled", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			s.log.Warn("Failed to migrate database, event table disabled", "error", err)
			_ = db.Close()
		} else {
			s.db = db
			repo := postgres.NewEventRepo(db)
			sinks = append(sinks, storage.NewSink(repo))
			s.pruner = worker.NewPruner(repo, s.cfg.Reporting.Retention, s.log)
			s.log.Info("Reporting to PostgreSQL")
		}
	}

	return sinks
}

// requestReload is the controller's reload hook. Only the first request per run counts.
func (s *Service) requestReload(m degrade.Marker) {
	select {
	case s.reload <- m:
	default:
	}
}

// Run serves until ctx is done or a safe reload is requested. A non-nil marker
// means the caller should restart the service in safe mode.
func (s *Service) Run(ctx context.Context) (*degrade.Marker, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hooks.Install()

	var reload *degrade.Marker
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("Health server listening", "port", s.cfg.Server.Port)
		if err := s.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil {
		g.Go(func() error {
			s.log.Info("gRPC health service listening", "port", s.cfg.Server.GRPCPort)
			return s.grpcServer.Start()
		})
	}

	g.Go(func() error {
		return s.monitor.Run(gctx)
	})

	if s.db != nil {
		s.db.StartMetricsCollector(gctx)
	}
	if s.pruner != nil {
		g.Go(func() error {
			s.pruner.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case m := <-s.reload:
			reload = &m
			s.log.Warn("Safe reload requested", "reason", m.Reason, "error_id", m.ErrorID)
			cancel()
		}
		s.stopServers()
		return nil
	})

	s.log.Info("recoverd started", "safe_mode", s.safeMode)

	err := g.Wait()
	s.close()
	return reload, err
}

func (s *Service) stopServers() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Warn("Failed to stop health server", "error", err)
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
}

// close releases everything New and Run opened. Safe on partially built services.
func (s *Service) close() {
	if s.hooks != nil {
		s.hooks.Uninstall()
		s.hooks.Wait()
	}
	if s.orchestrator != nil {
		s.orchestrator.Cleanup()
		s.orchestrator.Wait()
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Close(); err != nil {
			s.log.Warn("Failed to close reporting sinks", "error", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}
}

// Orchestrator returns the error orchestrator.
func (s *Service) Orchestrator() *recovery.Orchestrator { return s.orchestrator }

// Controller returns the degradation controller.
func (s *Service) Controller() *degrade.Controller { return s.controller }

// Session returns the client context provider.
func (s *Service) Session() *recovery.Session { return s.session }

// Hooks returns the capture hooks.
func (s *Service) Hooks() *capture.Hooks { return s.hooks }

// SafeMode reports whether the service started degraded.
func (s *Service) SafeMode() bool { return s.safeMode }

// Handler returns the HTTP handler, for in-process use.
func (s *Service) Handler() http.Handler { return s.httpServer.Handler() }
