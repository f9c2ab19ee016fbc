package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/api/ws"
	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/config"
	"github.com/gosuda/tally/internal/enterprise"
	"github.com/gosuda/tally/internal/messenger/slack"
	"github.com/gosuda/tally/internal/notify"
	"github.com/gosuda/tally/internal/reminder"
	"github.com/gosuda/tally/internal/server"
	"github.com/gosuda/tally/internal/store/postgres"
	redisstore "github.com/gosuda/tally/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("TALLY_LOG_LEVEL"))
	if parseErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("TALLY_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	if err := postgres.Migrate(cfg.Database.URL()); err != nil {
		return err
	}
	log.Info().Msg("database migrations applied")

	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	hub := ws.NewHub(pubsub)
	auditSvc := audit.NewService(store.AuditSessions(), store.AuditAssets(), store.AuditNotes(), hub)
	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	messengers := notify.NewRegistry()
	if cfg.Slack.BotToken != "" {
		messengers.Register(slack.NewFromToken(cfg.Slack.BotToken))
	}
	log.Info().Strs("platforms", messengers.Platforms()).Msg("reminder delivery configured")
	notifier := notify.New(messengers, store.Users())

	features := enterprise.NewValidator(licenseFromConfig(cfg.License), cfg.SelfHosted)
	if !features.FeatureEnabled(enterprise.FeatureAudits) {
		log.Warn().Msg("audits addon is not licensed; audit routes will answer 403")
	}

	sweeper := reminder.New(store.AuditSessions(), notifier, pubsub, cfg.Reminder.LockTTL)
	if err := sweeper.Start(ctx, cfg.Reminder.Schedule); err != nil {
		return err
	}

	srv := server.New(ctx, cfg, server.Deps{
		Store:     store,
		PubSub:    pubsub,
		Hub:       hub,
		Auth:      authSvc,
		Audits:    auditSvc,
		Features:  features,
		Platforms: messengers.Has,
	})

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	select {
	case <-sweeper.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("reminder sweep still running at shutdown")
	}

	log.Info().Msg("stopped")
	return nil
}

// licenseFromConfig returns nil when no license is installed.
func licenseFromConfig(c config.LicenseConfig) *enterprise.License {
	if c.ID == "" {
		return nil
	}
	return &enterprise.License{
		ID:        c.ID,
		Features:  c.Features,
		ExpiresAt: c.ExpiresAt,
	}
}
