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
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/dispatch"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides DISPATCHER_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.DispatcherAddr = overrides.ListenAddr
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "alert-dispatcher").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher, err := dispatch.New(dispatch.Options{
		Dialer:      dialer.NewClient(cfg.DialerURL, cfg.ClientTimeout),
		SMSURL:      cfg.SMSURL,
		Timeout:     cfg.ClientTimeout,
		Action:      cfg.DispatchAction,
		SMSCallWait: cfg.SMSBeforeCallWait,
		Log:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid dispatcher configuration")
	}

	// Optional broker ingest next to the webhook.
	if cfg.MQTTBrokerURL != "" {
		ingest, err := dispatch.ConnectMQTT(ctx, dispatch.MQTTOptions{
			BrokerURL:  cfg.MQTTBrokerURL,
			ClientID:   cfg.MQTTClientID,
			Topics:     cfg.MQTTTopics,
			Username:   cfg.MQTTUsername,
			Password:   cfg.MQTTPassword,
			Dispatcher: dispatcher,
			Log:        log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to the mqtt broker")
		}
		defer ingest.Close()
		log.Info().Str("broker", cfg.MQTTBrokerURL).Msg("mqtt alert ingest connected")
	}

	handler := dispatch.NewHandler(dispatcher, log)
	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.DispatcherAddr,
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
	log.Info().Str("listen", cfg.DispatcherAddr).Str("action", cfg.DispatchAction).Msg("alert-dispatcher ready")

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
	log.Info().Msg("alert-dispatcher stopped")
}
