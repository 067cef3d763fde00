// Command bulksend runs the send pipeline: HTTP API, scheduler, dispatcher,
// post-processor, and the stale-sweep worker, all in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/bulksend/bulksend/internal/config"
	"github.com/bulksend/bulksend/internal/dispatcher"
	"github.com/bulksend/bulksend/internal/gateway"
	"github.com/bulksend/bulksend/internal/handler"
	"github.com/bulksend/bulksend/internal/ingest"
	"github.com/bulksend/bulksend/internal/observability"
	"github.com/bulksend/bulksend/internal/postprocessor"
	"github.com/bulksend/bulksend/internal/scheduler"
	"github.com/bulksend/bulksend/internal/server"
	"github.com/bulksend/bulksend/internal/store"
	"github.com/bulksend/bulksend/internal/store/postgres"
	"github.com/bulksend/bulksend/internal/worker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "optional YAML config file path")
	flag.Parse()

	if len(flag.Args()) > 0 && flag.Args()[0] == "version" {
		fmt.Printf("bulksend %s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting bulksend", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.OTELExporterOTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, observability.TracingConfig{
			Endpoint:    cfg.OTELExporterOTLPEndpoint,
			SampleRate:  1.0,
			ServiceName: "bulksend",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "initializing tracer: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bulksend exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bulksend stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("invalid database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections)
	poolCfg.MinConns = int32(cfg.DBMinConnections)
	poolCfg.MaxConnIdleTime = cfg.DBIdleTimeout()
	poolCfg.ConnConfig.Tracer = observability.NewPgxTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	acquireCtx, acquireCancel := context.WithTimeout(ctx, cfg.DBAcquireTimeout())
	pingErr := pool.Ping(acquireCtx)
	acquireCancel()
	if pingErr != nil {
		return fmt.Errorf("pinging database: %w", pingErr)
	}
	logger.Info("connected to database")

	gw, err := gateway.New(ctx, cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("initializing ses gateway: %w", err)
	}

	st := postgres.New(pool)

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	sendQueue := make(chan dispatcher.SendItem, cfg.SendChannelBuffer)
	postSendQueue := make(chan store.Outcome, cfg.PostSendChannelBuffer)

	ig := ingest.New(st, cfg.AWSSESFromEmail, sendQueue, logger.With("component", "ingest"))
	disp := dispatcher.New(gw, cfg.MaxSendPerSecond, cfg.ServerURL, logger.With("component", "dispatcher"))
	sched := scheduler.New(st, logger.With("component", "scheduler"))
	post := postprocessor.New(st, logger.With("component", "postprocessor"))

	redisOpt, err := parseRedisOpt(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("parsing redis address: %w", err)
	}

	asynqSrv := worker.NewServer(worker.Config{
		RedisAddr:     redisOpt.Addr,
		RedisPassword: redisOpt.Password,
	}, logger.With("component", "asynq"))

	sweepHandler := worker.NewStaleSweepHandler(st, cfg.StaleSweepThreshold(), logger.With("component", "sweep"))
	mux := worker.NewMux(worker.Handlers{StaleSweep: sweepHandler})

	asynqScheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: logger.With("component", "asynq-scheduler"),
	})
	cronSpec := fmt.Sprintf("@every %ds", int(cfg.StaleSweepInterval().Seconds()))
	if _, err := asynqScheduler.Register(cronSpec, worker.NewStaleSweepTask()); err != nil {
		return fmt.Errorf("registering stale-sweep schedule: %w", err)
	}

	handlers := handler.NewHandlers(ig, st, logger.With("component", "http"), nil, handler.PingFunc(pool.Ping), redisPinger(redisOpt))

	httpServer := server.New(server.Config{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		APIKey:       cfg.APIKey,
		CORSOrigins:  []string{"*"},
		Handlers:     handlers,
		Metrics:      metrics,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting scheduler")
		return sched.Run(gctx, sendQueue)
	})

	g.Go(func() error {
		logger.Info("starting dispatcher", "max_send_per_second", cfg.MaxSendPerSecond)
		return disp.Run(gctx, sendQueue, postSendQueue)
	})

	g.Go(func() error {
		logger.Info("starting postprocessor")
		return post.Run(gctx, postSendQueue)
	})

	g.Go(func() error {
		logger.Info("starting asynq worker server")
		if err := asynqSrv.Run(mux); err != nil {
			return fmt.Errorf("asynq worker: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting asynq scheduler", "interval", cfg.StaleSweepInterval())
		if err := asynqScheduler.Run(); err != nil {
			return fmt.Errorf("asynq scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "error", err)
		}
		asynqSrv.Shutdown()
		asynqScheduler.Shutdown()

		return nil
	})

	return g.Wait()
}

func runMigrations(databaseURL string, logger *slog.Logger) error {
	m, err := migrate.New("file://db/migrations", databaseURL)
	if err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("closing migration source", "error", srcErr)
		}
		if dbErr != nil {
			logger.Warn("closing migration db", "error", dbErr)
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	logger.Info("migrations up to date")
	return nil
}

func parseRedisOpt(addr string) (asynq.RedisClientOpt, error) {
	if addr == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis address is empty")
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}

// redisPinger builds a Pinger that dials redis fresh for each health check,
// matching the pipeline's read-only use of Redis purely as the asynq broker.
func redisPinger(opt asynq.RedisClientOpt) handler.Pinger {
	return handler.PingFunc(func(ctx context.Context) error {
		inspector := asynq.NewInspector(opt)
		defer inspector.Close()
		_, err := inspector.Queues()
		return err
	})
}

func setupLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var base slog.Handler
	switch strings.ToLower(format) {
	case "text":
		base = slog.NewTextHandler(os.Stdout, opts)
	default:
		base = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(observability.NewTracingHandler(base))
}
