package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	callengine "github.com/snarg/call-engine"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/register"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides REGISTER_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.RegisterAddr = overrides.ListenAddr
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "call-register").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// The register owns the schema; the other services only connect.
	if err := db.InitSchema(ctx, callengine.SchemaSQL); err != nil {
		log.Fatal().Err(err).Msg("schema initialization failed")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	localTZ, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.LocalTimezone).Msg("unknown LOCAL_TIMEZONE")
	}

	prometheus.MustRegister(metrics.NewCollector(db.Pool))

	handler := register.NewHandler(register.Options{
		DB:              db,
		TimesToDial:     cfg.TimesToDial,
		SecondsToForget: cfg.SecondsToForget,
		LocalTZ:         localTZ,
		Log:             log,
	})

	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.RegisterAddr,
		Log:            log.With().Str("component", "http").Logger(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		Health:         web.DBHealth(db),
		Routes:         handler.Routes,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info().Str("listen", cfg.RegisterAddr).Msg("call-register ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	log.Info().Msg("call-register stopped")
}
