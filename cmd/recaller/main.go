package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/addressbook"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/recaller"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
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
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "recaller").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	r := recaller.New(recaller.Options{
		DB:                  db,
		Dialer:              dialer.NewClient(cfg.DialerURL, cfg.ClientTimeout),
		AddressBook:         addressbook.NewClient(cfg.AddressBookURL, cfg.ClientTimeout),
		SleepAndRetry:       cfg.SleepAndRetry(),
		SleepBeforeQuerying: cfg.SleepBeforeQuerying,
		MaxBackupCalls:      cfg.BackupCalleeMaxCalls,
		Log:                 log,
	})

	r.Run(ctx)
	log.Info().Msg("recaller stopped")
}
