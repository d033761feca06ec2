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
	"github.com/snarg/call-engine/internal/addressbook"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides ADDRESS_BOOK_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.AddressBookAddr = overrides.ListenAddr
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "address-book").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	prometheus.MustRegister(metrics.NewCollector(db.Pool))

	// Optional drop-directory importer for bulk contact loads.
	if cfg.ContactsWatchDir != "" {
		watcher := addressbook.NewCSVWatcher(db, cfg.ContactsWatchDir, log)
		if err := watcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("watch_dir", cfg.ContactsWatchDir).Msg("failed to start the CSV watcher")
		}
		defer watcher.Stop()
	}

	handler := addressbook.NewHandler(db, log)
	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.AddressBookAddr,
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
	log.Info().Str("listen", cfg.AddressBookAddr).Msg("address-book ready")

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
	log.Info().Msg("address-book stopped")
}
