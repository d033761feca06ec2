package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/ari"
	"github.com/snarg/call-engine/internal/config"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/register"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides DIALER_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.AsteriskURL, "asterisk-url", "", "Asterisk ARI base URL (overrides ASTERISK_URL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.DialerAddr = overrides.ListenAddr
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "dialer").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ariClient := ari.NewClient(ari.Options{
		BaseURL:  cfg.AsteriskURL,
		User:     cfg.AsteriskUser,
		Pass:     cfg.AsteriskPass,
		ChanType: cfg.AsteriskChanType,
		Timeout:  cfg.ClientTimeout,
		Log:      log.With().Str("component", "ari").Logger(),
	})

	queue := dialer.NewMemoryQueue(cfg.CallQueueSize)
	handler := dialer.NewHandler(dialer.Options{
		ARI:       ariClient,
		Resolver:  dialer.NewAddressBookResolver(cfg.AddressBookURL, cfg.ClientTimeout),
		Register:  register.NewClient(cfg.RegisterURL, cfg.ClientTimeout),
		Queue:     queue,
		AudioURL:  cfg.AudioGenURL,
		Extension: cfg.AsteriskExtension,
		Context:   cfg.AsteriskContext,
		CallerID:  cfg.AsteriskCallerID,
		Log:       log,
	})

	// The queue worker lives on its own goroutine so paced draining never
	// blocks the HTTP server.
	worker := dialer.NewQueueWorker(queue, cfg.ForgetWindow(),
		func(ctx context.Context, phone, message string) error {
			_, err := handler.PlaceCall(ctx, phone, message, false)
			return err
		}, log)
	go worker.Run(ctx)

	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.DialerAddr,
		Log:            log.With().Str("component", "http").Logger(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		Health:         web.Health,
		Routes:         handler.Routes,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info().Str("listen", cfg.DialerAddr).Str("asterisk", cfg.AsteriskURL).Msg("dialer ready")

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
	log.Info().Msg("dialer stopped")
}
