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
	"github.com/snarg/call-engine/internal/sms"
	"github.com/snarg/call-engine/internal/web"
)

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ListenAddr, "listen", "", "HTTP listen address (overrides SMS_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if overrides.ListenAddr != "" {
		cfg.SMSAddr = overrides.ListenAddr
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "sms-gateway").Logger().Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var carrier sms.Carrier
	switch cfg.SMSCarrier {
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioSMSFrom == "" {
			log.Fatal().Msg("SMS_CARRIER=twilio requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_SMS_FROM")
		}
		carrier = sms.NewTwilioCarrier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioSMSFrom, cfg.ClientTimeout)
	case "on_premise":
		if cfg.SMSGatewayURL == "" {
			log.Fatal().Msg("SMS_CARRIER=on_premise requires SMS_GATEWAY_URL")
		}
		carrier = sms.NewOnPremCarrier(cfg.SMSGatewayURL, cfg.ClientTimeout)
	default:
		log.Fatal().Str("carrier", cfg.SMSCarrier).Msg("unknown SMS_CARRIER (valid: twilio, on_premise)")
	}

	pool := sms.NewPool(carrier, config.Workers(cfg.SMSWorkers), 100, log)
	defer pool.Stop()

	handler := sms.NewHandler(pool, log)
	srv := web.NewServer(web.ServerOptions{
		Addr:           cfg.SMSAddr,
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
	log.Info().Str("listen", cfg.SMSAddr).Str("carrier", carrier.Name()).Msg("sms-gateway ready")

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
	log.Info().Msg("sms-gateway stopped")
}
