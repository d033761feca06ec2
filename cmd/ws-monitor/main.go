package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/ari"
	"github.com/snarg/call-engine/internal/audio"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/monitor"
	"github.com/snarg/call-engine/internal/register"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.AsteriskURL, "asterisk-url", "", "Asterisk ARI base URL (overrides ASTERISK_URL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "ws-monitor").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ariClient := ari.NewClient(ari.Options{
		BaseURL:  cfg.AsteriskURL,
		User:     cfg.AsteriskUser,
		Pass:     cfg.AsteriskPass,
		ChanType: cfg.AsteriskChanType,
		Timeout:  cfg.ClientTimeout,
		Log:      log.With().Str("component", "ari").Logger(),
	})

	m := monitor.New(monitor.Options{
		WsURL:         ariClient.EventsURL(cfg.AsteriskStasisApp),
		DB:            db,
		Register:      register.NewClient(cfg.RegisterURL, cfg.ClientTimeout),
		Audio:         audio.NewClient(cfg.AudioGenURL, cfg.ClientTimeout),
		Dialer:        dialer.NewClient(cfg.DialerURL, cfg.ClientTimeout),
		ReadyRetries:  cfg.AudioReadyRetries,
		ReadyInterval: cfg.AudioReadyInterval,
		Log:           log,
	})

	// A lost connection or a failed event write exits non-zero: the event
	// stream has no replay, so the supervisor must restart us fresh.
	if err := m.Run(ctx); err != nil {
		log.Error().Err(err).Msg("event monitor terminated")
		os.Exit(1)
	}
	log.Info().Msg("ws-monitor stopped")
}
