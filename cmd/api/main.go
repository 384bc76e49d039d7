package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renthaus/internal/api"
	"renthaus/internal/auth"
	"renthaus/internal/calendar"
	"renthaus/internal/config"
	"renthaus/internal/database"
	"renthaus/internal/docstore"
	"renthaus/internal/domain"
	"renthaus/internal/events"
	"renthaus/internal/google"
	"renthaus/internal/logging"
	"renthaus/internal/metrics"
	"renthaus/internal/notify"
	"renthaus/internal/paystack"
	"renthaus/internal/repository"
	"renthaus/internal/scheduler"
	"renthaus/internal/service"
	"renthaus/internal/worker"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := calendar.LoadLocation(cfg.Orders.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Orders.Timezone, err)
	}

	var fbApp *firebase.App
	if cfg.Firebase.ProjectID != "" {
		fbApp, err = docstore.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
	}

	store, sqlDB, err := initStore(ctx, cfg, fbApp, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	guard := initGuard(redisClient, logger)

	verifier, err := initVerifier(ctx, cfg, fbApp, store)
	if err != nil {
		return err
	}

	gateway := paystack.New(cfg.Paystack, logging.Component(logger, "paystack"))
	if redisClient != nil {
		gateway.UseRedisCache(redisClient, cfg.Paystack.VerifyCacheTTL)
	}

	eventBus := events.NewEventBus(logger)
	eventBus.SubscribeAll(events.AuditLogger(logging.Component(logger, "audit")),
		events.EventOrderCreated,
		events.EventOrderPaid,
		events.EventOrderStatusChanged,
		events.EventClaimFiled,
		events.EventClaimResolved,
		events.EventVendorApproval,
	)

	dispatcher, err := initDispatcher(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	outboxWorker := worker.NewOutboxWorker(store, dispatcher, redisClient, cfg.Outbox, logging.Component(logger, "outbox"))
	go outboxWorker.Start(ctx)

	serviceLogger := logging.Component(logger, "service")
	availability := service.NewAvailabilityService(store, loc, cfg.Orders.MaxRentalDays)
	reports := service.NewReportService(store, loc)

	deps := api.Deps{
		Orders:        service.NewOrderService(store, availability, guard, outboxWorker, eventBus, cfg.Orders.IdempotencyTTL, serviceLogger),
		Payments:      service.NewPaymentService(store, gateway, outboxWorker, eventBus, serviceLogger),
		Notifications: service.NewNotificationService(store, store, outboxWorker, serviceLogger),
		Availability:  availability,
		Vendors:       service.NewVendorService(store, availability, eventBus, serviceLogger),
		Reports:       reports,
		Verifier:      verifier,
		Guard:         guard,
		WebhookSecret: cfg.Paystack.SecretKey,
		Ready: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return repository.Ping(ctx, redisClient)
			}
			return nil
		},
	}

	jobs := scheduler.Jobs{
		Outbox:     outboxWorker,
		StaleAfter: cfg.Outbox.StaleAfter,
		Reports:    reports,
		ExportDir:  cfg.Exports.Path,
	}
	if sqlDB != nil {
		jobs.Backup = database.NewBackupService(sqlDB, cfg.Backup, logging.Component(logger, "backup"))
	}
	sched, err := scheduler.New(cfg.Scheduler, cfg.Backup.Schedule, loc, jobs, logging.Component(logger, "scheduler"))
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewServer(cfg.API, deps, logging.Component(logger, "http"))

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, logger)
		if err != nil {
			return err
		}
		go watchReadiness(ctx, grpcServer, deps.Ready, logger)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initStore opens the configured store. The *database.DB is returned as well
// for SQL drivers, nil for firestore.
func initStore(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	dbLogger := logging.Component(logger, "store")
	switch cfg.Database.Driver {
	case "postgres":
		db, err := database.NewPostgres(cfg.Database.Postgres.DSN, cfg.Database.Postgres.MaxConnections, dbLogger)
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, nil, err
		}
		return db, db, nil
	case "firestore":
		if app == nil {
			return nil, nil, errors.New("firestore requires a firebase project")
		}
		fs, err := docstore.New(ctx, app, dbLogger)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, dbLogger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.RedisEnabled() {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initGuard prefers redis and falls back to process memory while redis is
// unreachable.
func initGuard(client *redis.Client, logger *zerolog.Logger) domain.GuardRepository {
	memory := repository.NewMemoryGuardRepository()
	if client == nil {
		return memory
	}
	return repository.NewFailoverGuardRepository(
		repository.NewRedisGuardRepository(client),
		memory,
		logging.Component(logger, "guard"),
	)
}

func initVerifier(ctx context.Context, cfg *config.Config, app *firebase.App, users domain.UserRepository) (domain.IdentityVerifier, error) {
	if cfg.API.Auth.Provider == "jwt" {
		tokens := auth.NewTokenManager(cfg.API.Auth.JWTSecret, cfg.API.Auth.JWTIssuer, cfg.API.Auth.TokenTTL)
		return auth.NewJWTVerifier(tokens, users), nil
	}
	if app == nil {
		return nil, errors.New("firebase auth requires a firebase project")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return auth.NewFirebaseVerifier(client, users), nil
}

func initDispatcher(ctx context.Context, cfg *config.Config, store notify.Store, logger *zerolog.Logger) (*notify.Dispatcher, error) {
	templates, err := notify.LoadTemplates()
	if err != nil {
		return nil, err
	}

	opts := notify.DispatcherOptions{AppName: cfg.App.Name, PublicURL: cfg.App.PublicURL}
	if cfg.Email.SendGridAPIKey != "" {
		opts.Email = notify.NewSendGridSender(cfg.Email)
	} else {
		logger.Warn().Msg("sendgrid api key not set, emails will be skipped")
	}

	if cfg.Telegram.BotToken != "" {
		sender, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without vendor chat alerts")
		} else {
			opts.Chat = sender
		}
	}

	if cfg.Google.GoogleCredentialsFile != "" && cfg.Google.LedgerSpreadsheetID != "" {
		ledger, err := google.NewLedgerService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.LedgerSpreadsheetID, cfg.Google.LedgerSheetName)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
		} else {
			if err := ledger.EnsureHeader(ctx); err != nil {
				logger.Warn().Err(err).Msg("ledger header check failed")
			}
			if err := ledger.WarmUpCache(ctx); err != nil {
				logger.Warn().Err(err).Msg("ledger cache warm-up failed")
			}
			opts.Ledger = ledger
			logger.Info().Msg("google sheets ledger connected")
		}
	}

	return notify.NewDispatcher(store, templates, opts, logging.Component(logger, "notify")), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

// watchReadiness mirrors store reachability into the gRPC health status.
func watchReadiness(ctx context.Context, srv *api.GRPCServer, ready func(context.Context) error, logger *zerolog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := ready(checkCtx)
			cancel()
			if (err == nil) != serving {
				serving = err == nil
				srv.SetServing(serving)
				logger.Warn().Err(err).Bool("serving", serving).Msg("readiness changed")
			}
		}
	}
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.Server,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
