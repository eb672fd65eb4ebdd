package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	cacheadapter "github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/cache"
	eventadapter "github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/events"
	grpcadapter "github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/grpc"
	httpadapter "github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/http"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/instagram"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/memory"
	metricsadapter "github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/metrics"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/notify"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/postgres"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/scheduler"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/security"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	service   *application.Service
	metrics   *metricsadapter.Prometheus
	notifier  *notify.AsyncNotifier
	verifier  ports.TokenVerifier
	consumer  eventadapter.Consumer
	readiness func(context.Context) error
	cleanupFn func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping submission tracking service",
		"storage_driver", cfg.StorageDriver,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"kafka_enabled", len(cfg.KafkaBrokers) > 0,
	)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Runtime, error) {
		cleanup()
		return nil, err
	}

	deps := application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceName,
			DefaultCurrency:      cfg.DefaultCurrency,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			EventDedupTTL:        cfg.EventDedupTTL,
			OutboxFlushBatchSize: cfg.OutboxBatchSize,
			TrackingBatchSize:    cfg.TrackingBatchSize,
			TrackingConcurrency:  cfg.TrackingConcurrency,
			FetchTimeout:         cfg.FetchTimeout,
			LockTTL:              cfg.LockTTL,
		},
		Logger: logger,
	}

	readiness := func(context.Context) error { return nil }
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return fail(err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fail(fmt.Errorf("gorm sql db: %w", err))
		}
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return fail(fmt.Errorf("run migrations: %w", err))
		}
		repos := postgres.NewRepositories(db)
		deps.Tasks, deps.Submissions, deps.Ledger = repos.Tasks, repos.Submissions, repos.Ledger
		deps.Accounts, deps.Outbox = repos.Accounts, repos.Outbox
		deps.EventDedup, deps.Idempotency = repos.EventDedup, repos.Idempotency
		readiness = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	default:
		logger.Warn("using in-memory storage; state is lost on restart")
		repos := memory.NewRepositories()
		deps.Tasks, deps.Submissions, deps.Ledger = repos.Tasks, repos.Submissions, repos.Ledger
		deps.Accounts, deps.Outbox = repos.Accounts, repos.Outbox
		deps.EventDedup, deps.Idempotency = repos.EventDedup, repos.Idempotency
	}

	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		deps.Locker = cacheadapter.NewRedisLocker(redisClient, "")
		dbReady := readiness
		readiness = func(ctx context.Context) error {
			if err := dbReady(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		}
	} else {
		logger.Warn("REDIS_URL not set; per-submission locks are process-local")
		deps.Locker = memory.NewLocker()
	}

	var consumer eventadapter.Consumer = eventadapter.NewNoopConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, nil, cfg.KafkaAnalyticsTopic, cfg.KafkaDLQTopic)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = publisher.Close() })
		deps.DomainEvents, deps.Analytics, deps.DLQ = publisher, publisher, publisher

		kc, err := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, []string{cfg.KafkaCommandTopic})
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = kc.Close() })
		consumer = kc
	} else {
		publisher := eventadapter.NewLoggingPublisher(logger)
		deps.DomainEvents, deps.Analytics, deps.DLQ = publisher, publisher, publisher
	}

	deps.Fetcher = instagram.NewClient(instagram.Config{
		BaseURL:  cfg.InstagramBaseURL,
		PageSize: cfg.InstagramPageSize,
		MaxPages: cfg.InstagramMaxPages,
	}, &http.Client{Timeout: cfg.InstagramTimeout})
	deps.Encryption = security.NewAESGCMEncryption(cfg.TokenEncryptionSeed)

	var sink ports.Notifier = notify.NewLoggingNotifier(logger)
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		sink = notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, slack.OptionHTTPClient(&http.Client{Timeout: cfg.NotifyTimeout}))
	}
	async := notify.NewAsyncNotifier(logger, sink, cfg.NotifyQueueSize, cfg.NotifyTimeout)
	deps.Notifier = async

	prom := metricsadapter.NewPrometheus(cfg.MetricsNamespace)
	deps.Metrics = prom

	var verifier ports.TokenVerifier
	switch cfg.AuthMode {
	case AuthModeDev:
		logger.Warn("AUTH_MODE=dev: bearer tokens are taken as <subject>[:<role>]")
		verifier = security.DevTokenVerifier{}
	default:
		v, err := security.NewJWTVerifier(cfg.JWTPublicKeyPEM, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			return fail(fmt.Errorf("init jwt verifier: %w", err))
		}
		verifier = v
	}

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		service:   application.NewService(deps),
		metrics:   prom,
		notifier:  async,
		verifier:  verifier,
		consumer:  consumer,
		readiness: readiness,
		cleanupFn: cleanup,
	}, nil
}

// RunAPI serves HTTP and gRPC health until SIGINT/SIGTERM.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	handler := httpadapter.NewHandler(r.service, httpadapter.HandlerOptions{
		Verifier:        r.verifier,
		TrustRoleHeader: r.cfg.AuthMode == AuthModeDev && r.cfg.TrustRoleHeader,
		Readiness:       r.readiness,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler, r.metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.notifier.Run(gctx) })
	g.Go(func() error {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcadapter.Serve(gctx, r.logger, fmt.Sprintf(":%d", r.cfg.GRPCPort), grpcadapter.NewHealthServer(r.readiness))
	})
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return ignoreCanceled(g.Wait())
}

// RunWorker drives the tracking scheduler, outbox relay, and command
// consumer, and exposes /metrics on the metrics port.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.cleanupFn()

	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	tracker := scheduler.NewTrackingWorker(r.logger, r.service, r.cfg.TrackingInterval, r.cfg.TrackingCycleTimeout)
	outbox := eventadapter.NewOutboxWorker(r.logger, r.service, r.cfg.OutboxPollInterval)
	commands := eventadapter.NewConsumerWorker(r.logger, r.consumer, r.service, r.cfg.ConsumerPollInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.notifier.Run(gctx) })
	g.Go(func() error { return tracker.Run(gctx) })
	g.Go(func() error { return outbox.Run(gctx) })
	g.Go(func() error { return commands.Run(gctx) })
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	r.logger.Info("worker started",
		"tracking_interval", r.cfg.TrackingInterval.String(),
		"command_topic", r.cfg.KafkaCommandTopic,
	)
	err := ignoreCanceled(g.Wait())
	r.notifier.Wait()
	return err
}

func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
