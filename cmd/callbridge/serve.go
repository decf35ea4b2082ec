package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/callbridge/internal/activity"
	"github.com/gosuda/callbridge/internal/agent"
	"github.com/gosuda/callbridge/internal/alert"
	"github.com/gosuda/callbridge/internal/api/ws"
	"github.com/gosuda/callbridge/internal/call"
	"github.com/gosuda/callbridge/internal/config"
	"github.com/gosuda/callbridge/internal/dialogue"
	"github.com/gosuda/callbridge/internal/events"
	"github.com/gosuda/callbridge/internal/server"
	"github.com/gosuda/callbridge/internal/session"
	redisstore "github.com/gosuda/callbridge/internal/store/redis"
	"github.com/gosuda/callbridge/internal/trust"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Bot API webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// initLogging configures the global logger. Unknown levels fall back to info.
func initLogging(levelName, format string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func runServe(ctx context.Context) error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	initLogging(cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Optional Redis event bus.
	var (
		publisher events.Publisher
		feed      ws.Subscriber
	)
	if cfg.Redis.Enabled() {
		pubsub, redisErr := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if redisErr != nil {
			return redisErr
		}
		defer pubsub.Close()
		publisher, feed = pubsub, pubsub
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis event bus enabled")
	}

	ctrlOpts := []call.Option{
		call.WithEvents(events.NewBus(publisher)),
		call.WithSweep(cfg.Session.SweepInterval, cfg.Session.IdleTimeout),
	}

	// Optional Slack alerts for untrusted callers.
	if cfg.Slack.Enabled() {
		alerts := alert.NewSlackFromToken(cfg.Slack.BotToken, cfg.Slack.AlertChannel)
		defer alerts.Close()
		ctrlOpts = append(ctrlOpts, call.WithAlerter(alerts))
		log.Info().Str("channel", cfg.Slack.AlertChannel).Msg("slack alerts enabled")
	}

	backend := agent.NewClient(cfg.Agent.URL,
		agent.WithToken(cfg.Agent.Token),
		agent.WithAgentID(cfg.Agent.ID),
		agent.WithModel(cfg.Agent.Model),
		agent.WithTimeout(cfg.Agent.Timeout),
	)
	classifier := trust.NewClassifier(cfg.TrustedCallers)
	trusted := len(classifier.Trusted())
	if trusted == 0 {
		log.Warn().Msg("no trusted callers configured; every caller is treated as untrusted")
	}
	mediator := dialogue.NewMediator(backend, classifier,
		dialogue.WithPersona(dialogue.Persona{Owner: cfg.Persona.Owner, Assistant: cfg.Persona.Assistant}))

	store := session.NewMemoryStore()
	ctrl := call.NewController(store, activity.NewTranslator(), mediator, ctrlOpts...)

	go ctrl.Run(ctx)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Calls:    ctrl,
		Sessions: store,
		Events:   feed,
		Logger:   log.Logger,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr()).
			Str("agent_url", cfg.Agent.URL).
			Str("agent_id", cfg.Agent.ID).
			Int("trusted_callers", trusted).
			Bool("admin", cfg.Admin.Enabled()).
			Msg("starting server")
		errCh <- srv.Start(ctx)
	}()

	// Block until shutdown signal or listener failure.
	select {
	case <-ctx.Done():
	case startErr := <-errCh:
		if startErr != nil {
			return startErr
		}
		return errors.New("server stopped unexpectedly")
	}
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
