// Worker runs background maintenance: it deletes expired phone sessions every
// SESSION_SWEEP_INTERVAL and, when KAFKA_BROKERS is set, consumes the auth event stream into the
// structured log. Requires DATABASE_URL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bikecare/backend/internal/config"
	"bikecare/backend/internal/db"
	applog "bikecare/backend/internal/logger"
	"bikecare/backend/internal/session"
	sessionrepo "bikecare/backend/internal/session/repository"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
	"bikecare/backend/internal/telemetry/eventstream"
)

const consumerGroup = "bikecare-auth-events-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := applog.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("worker: DATABASE_URL is required")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("worker: db", zap.Error(err))
	}
	defer conn.Close()
	sessions := session.NewService(sessionrepo.NewPostgresRepository(conn), cfg.PhoneSessionDuration(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		consumer := eventstream.NewConsumer(brokers, cfg.AuthEventsTopic, consumerGroup, logger)
		logger.Info("worker: consuming auth events", zap.String("topic", cfg.AuthEventsTopic), zap.String("group", consumerGroup))
		go func() {
			if err := consumer.Run(ctx, logEvent(logger)); err != nil {
				logger.Error("worker: event consumer stopped", zap.Error(err))
			}
		}()
	}

	interval := cfg.SweepInterval()
	logger.Info("worker: sweeping phone sessions", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	sweep(ctx, sessions, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker: stopped")
			return
		case <-ticker.C:
			sweep(ctx, sessions, logger)
		}
	}
}

func sweep(ctx context.Context, sessions *session.Service, logger *zap.Logger) {
	sctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if _, err := sessions.Sweep(sctx); err != nil && ctx.Err() == nil {
		logger.Warn("worker: sweep failed", zap.Error(err))
	}
}

// logEvent writes one consumed auth event as a structured log line.
func logEvent(logger *zap.Logger) eventstream.Handler {
	return func(ctx context.Context, ev *telemetrydomain.AuthEvent) error {
		logger.Info("auth event",
			zap.String("event_type", ev.Type),
			zap.String("user_id", ev.UserID),
			zap.String("source", ev.Source),
			zap.String("outcome", ev.Outcome),
			zap.String("client_ip", ev.ClientIP),
			zap.Time("created_at", ev.CreatedAt))
		return nil
	}
}
