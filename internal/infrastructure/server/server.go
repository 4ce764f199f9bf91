package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/replaykit/replayd/internal/api/http"
	"github.com/replaykit/replayd/internal/api/middleware"
	"github.com/replaykit/replayd/internal/domain/playback"
	"github.com/replaykit/replayd/internal/domain/registry"
	"github.com/replaykit/replayd/internal/domain/session"
	"github.com/replaykit/replayd/internal/domain/snapshot"
	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/infrastructure/config"
	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/notify"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/platform/remote"
	"github.com/replaykit/replayd/internal/platform/sim"
	"github.com/replaykit/replayd/internal/ws"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	router   *gin.Engine
	httpSrv  *http.Server
	sessions *session.Service
	apps     *registry.Manager
	driver   platform.Driver
	notifier *notify.Async
	hub      *ws.Hub
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger.Info("Initializing replayd",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.String("driver", cfg.Platform.Driver),
	)

	metrics := monitoring.NewMetrics()

	driver, driverName, err := buildDriver(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Platform driver ready", zap.String("driver", driverName))

	store, err := snapshot.NewStore(cfg.Storage.SnapshotDir, logger, metrics)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	apps, err := registry.NewManager(cfg.Storage.RegistryDir, logger, metrics)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to open application registry: %w", err)
	}

	// Preregister applications from the seed file when one exists.
	seeder := registry.NewSeeder(apps, cfg.Storage.SeedFile, logger)
	if err := seeder.Seed(); err != nil {
		logger.Warn("Failed to seed applications", zap.Error(err))
	}

	hub := ws.NewHub(logger, metrics)

	sinks := []notify.Service{notify.NewLog(logger), notify.NewStream(hub)}
	if cfg.Notify.WebhookURL != "" {
		logger.Info("Webhook notifications enabled", zap.String("url", cfg.Notify.WebhookURL))
		sinks = append(sinks, notify.NewWebhook(notify.WebhookConfig{
			URL:     cfg.Notify.WebhookURL,
			Timeout: cfg.Notify.WebhookTimeout,
			RPS:     cfg.Notify.WebhookRPS,
		}, logger, metrics))
	}
	notifier := notify.NewAsync(notify.Multi(sinks...), 64, logger, metrics)

	validator := validate.NewValidator(driver, logger, metrics)
	controller := playback.NewController(driver, driver, validator, notifier, logger, metrics)

	sessions := session.NewService(controller, validator, store, apps, driver, logger, metrics, session.Config{
		FocusEventBuffer: cfg.Playback.FocusEventBuffer,
		HealthCheckEvery: cfg.Playback.HealthCheckEvery,
		ActionsPerSecond: cfg.Playback.ActionsPerSecond,
		ActionBurst:      cfg.Playback.ActionBurst,
		PausePollEvery:   cfg.Playback.PausePollEvery,
		ScenarioDir:      cfg.Storage.ScenarioDir,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Trace(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	router.Use(middleware.CORS(corsCfg))

	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.String("scope", cfg.RateLimit.Scope),
		)
		router.Use(middleware.Limiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Scope:             cfg.RateLimit.Scope,
		}))
	}

	handlers := apihttp.NewHandlers(sessions, apps, hub, driverName)
	apihttp.Register(router, handlers, apihttp.NewMetricsHandlers(metrics), hub)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpSrv: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		sessions: sessions,
		apps:     apps,
		driver:   driver,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

func buildDriver(cfg *config.Config, logger *logging.Logger) (platform.Driver, string, error) {
	switch cfg.Platform.Driver {
	case "", "sim":
		return sim.New(), "sim", nil
	case "remote":
		client, err := remote.Dial(cfg.Platform.RemoteURL, logger,
			remote.WithCallTimeout(cfg.Platform.CallWindow))
		if err != nil {
			return nil, "", fmt.Errorf("failed to dial platform driver: %w", err)
		}
		return client, "remote", nil
	default:
		return nil, "", fmt.Errorf("unknown platform driver %q", cfg.Platform.Driver)
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Draining HTTP server")
	return s.httpSrv.Shutdown(ctx)
}

// Close tears down the session machinery and the platform driver.
// Call after Shutdown so no request is still using them.
func (s *Server) Close() error {
	s.logger.Info("Shutting down replayd")

	s.sessions.Close()
	s.hub.Close()
	s.notifier.Close()

	var failed error
	if err := s.driver.Close(); err != nil {
		s.logger.Error("Failed to close platform driver", zap.Error(err))
		failed = err
	}

	s.logger.Sync()
	return failed
}
