package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/notification-worker/internal/api"
	"github.com/notifyhub/notification-worker/internal/archive"
	"github.com/notifyhub/notification-worker/internal/broker"
	"github.com/notifyhub/notification-worker/internal/channel"
	"github.com/notifyhub/notification-worker/internal/config"
	"github.com/notifyhub/notification-worker/internal/db"
	"github.com/notifyhub/notification-worker/internal/domain"
	"github.com/notifyhub/notification-worker/internal/ledger"
	"github.com/notifyhub/notification-worker/internal/metrics"
	"github.com/notifyhub/notification-worker/internal/otp"
	"github.com/notifyhub/notification-worker/internal/ratelimiter"
	"github.com/notifyhub/notification-worker/internal/replay"
	"github.com/notifyhub/notification-worker/internal/router"
	"github.com/notifyhub/notification-worker/internal/store"
	"github.com/notifyhub/notification-worker/internal/worker"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
// Startup failures are fatal and exit immediately.
func run() int {
	boot, _ := zap.NewProduction()

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("failed to load config", zap.Error(err))
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	// ---- key-value store ----
	kv, err := store.NewRedisStore(ctx, cfg.RedisURL, store.RedisOptions{
		DialTimeout: cfg.RedisDialTimeout,
		RWTimeout:   cfg.RedisRWTimeout,
		MaxRetries:  cfg.RedisMaxRetries,
	})
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer kv.Close()

	// ---- broker ----
	b, err := broker.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer b.Close()

	if err := b.Declare(broker.QueueOptions{
		Name:       cfg.QueueName,
		Durable:    cfg.QueueDurable,
		DeadLetter: cfg.DeadLetterQueue,
	}); err != nil {
		logger.Fatal("failed to declare queues", zap.Error(err))
	}
	logger.Info("queues declared",
		zap.String("queue", cfg.QueueName),
		zap.String("dead_letter_queue", cfg.DeadLetterQueue),
	)

	// ---- dispatch ledger (optional) ----
	var led ledger.Ledger = ledger.Nop{}
	if cfg.LedgerEnabled() {
		var pgPool *pgxpool.Pool
		pgPool, err = db.Connect(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pgPool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
		led = ledger.NewPgLedger(pgPool)
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	senders := channel.DefaultRegistry(channel.Options{
		ProviderBaseURL: cfg.ProviderBaseURL,
		ProviderTimeout: cfg.ProviderTimeout,
		Breaker: channel.BreakerSettings{
			MaxConsecutiveFailures: cfg.BreakerMaxFailures,
			OpenTimeout:            cfg.BreakerOpenTimeout,
		},
	}, logger)
	limiter := ratelimiter.New(cfg.RateLimit, domain.ChannelEmail, domain.ChannelWhatsApp)
	archiver := archive.New(kv)
	rt := router.New(otp.NewGenerator(kv, cfg.OTPTTL), senders, limiter, logger, m.RouterHook())

	// ---- consumers ----
	subs := make([]worker.Subscription, cfg.Consumers)
	feeds := make([]<-chan amqp.Delivery, cfg.Consumers)
	for i := range subs {
		tag := cfg.ConsumerTag
		if cfg.Consumers > 1 {
			tag = fmt.Sprintf("%s-%d", cfg.ConsumerTag, i)
		}
		sub, err := b.Subscribe(cfg.QueueName, tag)
		if err != nil {
			logger.Fatal("failed to subscribe", zap.String("consumer_tag", tag), zap.Error(err))
		}
		subs[i], feeds[i] = sub, sub.Deliveries
	}

	pool := worker.NewPool(feeds, worker.Deps{
		Archiver:   archiver,
		Router:     rt,
		DeadLetter: b,
		Ledger:     led,
	}, logger, m.WorkerHooks())
	pool.Start(ctx)

	// ---- ops HTTP server ----
	replaySvc := replay.NewService(archiver, b, cfg.QueueName, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.NewRouter(kv, replaySvc, cfg.AdminToken, reg, logger),
	}
	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ops server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case amqpErr := <-b.NotifyClose():
		// Delivery tags are scoped to the connection; nothing in flight can be
		// settled any more, so exit and let the supervisor restart us.
		logger.Error("broker connection lost", zap.Any("error", amqpErr))
		exitCode = 1
	case <-pool.Lost():
		// A consumer channel was closed by the broker; without it the worker
		// would stay up and report ready while consuming nothing.
		logger.Error("consumer subscription lost")
		exitCode = 1
	}

	// 1. Stop taking new deliveries, settle the in-flight ones, then close
	// the consumer channels.
	pool.Drain(subs...)

	// 2. Stop the ops server.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}

	logger.Info("worker stopped", zap.Int("exit_code", exitCode))
	return exitCode
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
