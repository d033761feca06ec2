package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/scheduler"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides SCHEDULER_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.SchedulerAddr = overrides.ListenAddr
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "call-scheduler").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	localTZ, err := time.LoadLocation(cfg.LocalTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.LocalTimezone).Msg("unknown LOCAL_TIMEZONE")
	}

	dialerClient := dialer.NewClient(cfg.DialerURL, cfg.ClientTimeout)
	fire := func(ctx context.Context, job scheduler.Job) {
		log.Info().Str("phone", job.Phone).Str("job_id", job.ID).Msg("firing scheduled call")
		if err := dialerClient.PlaceCall(ctx, job.Phone, job.Message, false); err != nil {
			log.Error().Err(err).Str("phone", job.Phone).Str("job_id", job.ID).
				Msg("scheduled call failed")
		}
	}

	var dispatcher scheduler.DelayedDispatcher
	if cfg.RedisURL != "" {
		dispatcher, err = scheduler.NewRedisDispatcher(cfg.RedisURL, cfg.RedisQueueKey, fire, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Info().Str("queue_key", cfg.RedisQueueKey).Msg("using the redis delayed dispatcher")
	} else {
		dispatcher = scheduler.NewMemoryDispatcher(fire, log)
		log.Warn().Msg("REDIS_URL not set — scheduled calls will not survive a restart")
	}
	go dispatcher.Run(ctx)

	handler := scheduler.NewHandler(db, dispatcher, localTZ, log)
	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.SchedulerAddr,
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
	log.Info().Str("listen", cfg.SchedulerAddr).Str("local_tz", cfg.LocalTimezone).Msg("call-scheduler ready")

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
	log.Info().Msg("call-scheduler stopped")
}
