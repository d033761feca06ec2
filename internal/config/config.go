package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is shared by every call-engine binary; each service reads the
// sections it needs. Values come from the environment (optionally seeded
// from a .env file), with CLI flag overrides on top.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Asterisk PBX control surface (ARI).
	AsteriskURL       string `env:"ASTERISK_URL" envDefault:"http://127.0.0.1:8088"`
	AsteriskUser      string `env:"ASTERISK_USER,required"`
	AsteriskPass      string `env:"ASTERISK_PASS,required"`
	AsteriskChanType  string `env:"ASTERISK_CHAN_TYPE" envDefault:"SIP"`
	AsteriskContext   string `env:"ASTERISK_CONTEXT" envDefault:"call-engine"`
	AsteriskExtension string `env:"ASTERISK_EXTENSION" envDefault:"3216"`
	AsteriskCallerID  string `env:"ASTERISK_CALLER_ID" envDefault:"call-engine"`
	AsteriskStasisApp string `env:"ASTERISK_STASIS_APP" envDefault:"call-engine"`

	// Call-cycle policy. Fixed at registration time for each cycle.
	TimesToDial          int `env:"TIMES_TO_DIAL" envDefault:"3"`
	SecondsToForget      int `env:"SECONDS_TO_FORGET" envDefault:"300"`
	BackupCalleeMaxCalls int `env:"CALL_BACKUP_CALLEE_MAX_TIMES" envDefault:"2"`

	// Service listen addresses.
	RegisterAddr    string `env:"REGISTER_ADDR" envDefault:":8083"`
	DialerAddr      string `env:"DIALER_ADDR" envDefault:":8081"`
	AudioGenAddr    string `env:"AUDIOGEN_ADDR" envDefault:":8082"`
	AddressBookAddr string `env:"ADDRESS_BOOK_ADDR" envDefault:":8087"`
	SchedulerAddr   string `env:"SCHEDULER_ADDR" envDefault:":8086"`
	SMSAddr         string `env:"SMS_ADDR" envDefault:":8084"`
	DispatcherAddr  string `env:"DISPATCHER_ADDR" envDefault:":8085"`

	// Peer service base URLs (how the components find each other).
	RegisterURL    string `env:"REGISTER_URL" envDefault:"http://127.0.0.1:8083"`
	DialerURL      string `env:"DIALER_URL" envDefault:"http://127.0.0.1:8081"`
	AudioGenURL    string `env:"AUDIOGEN_URL" envDefault:"http://127.0.0.1:8082"`
	AddressBookURL string `env:"ADDRESS_BOOK_URL" envDefault:"http://127.0.0.1:8087"`
	SMSURL         string `env:"SMS_URL" envDefault:"http://127.0.0.1:8084"`

	ClientTimeout time.Duration `env:"CLIENT_TIMEOUT_TOTAL" envDefault:"5s"`

	// Audio cache.
	AudioDir           string        `env:"AUDIO_DIR" envDefault:"./audio"`
	TTSEngine          string        `env:"TTS_ENGINE" envDefault:"gtts"`
	TTSEngineURL       string        `env:"TTS_ENGINE_URL"` // HTTP inference endpoint (gtts, mms, piper, kokoro)
	TTSLanguage        string        `env:"TTS_LANGUAGE" envDefault:"en"`
	TTSVoice           string        `env:"TTS_VOICE"`
	TTSWorkers         int           `env:"TTS_WORKERS"` // defaults to CPU count
	AWSRegion          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	AudioReadyRetries  int           `env:"AUDIO_READY_RETRIES" envDefault:"12"`
	AudioReadyInterval time.Duration `env:"AUDIO_READY_INTERVAL" envDefault:"5s"`

	// Dialer call queue.
	CallQueueSize int `env:"CALL_QUEUE_SIZE" envDefault:"100"`

	// Recaller.
	SleepBeforeQuerying time.Duration `env:"SLEEP_BEFORE_QUERYING" envDefault:"10s"`

	// Scheduler.
	LocalTimezone string `env:"LOCAL_TIMEZONE" envDefault:"UTC"`
	RedisURL      string `env:"REDIS_URL"` // empty = in-memory delayed dispatcher
	RedisQueueKey string `env:"REDIS_QUEUE_KEY" envDefault:"call-engine:scheduled"`

	// SMS gateway.
	SMSCarrier       string `env:"SMS_CARRIER" envDefault:"twilio"`
	SMSWorkers       int    `env:"SMS_WORKERS"` // defaults to CPU count
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioSMSFrom    string `env:"TWILIO_SMS_FROM"`
	SMSGatewayURL    string `env:"SMS_GATEWAY_URL"` // on-premise carrier endpoint

	// Dispatcher.
	DispatchAction    string        `env:"DISPATCH_ACTION" envDefault:"call_only"`
	SMSBeforeCallWait time.Duration `env:"SMS_BEFORE_CALL_WAIT" envDefault:"60s"`
	MQTTBrokerURL     string        `env:"MQTT_BROKER_URL"`
	MQTTTopics        string        `env:"MQTT_TOPICS" envDefault:"alerts/#"`
	MQTTClientID      string        `env:"MQTT_CLIENT_ID" envDefault:"call-engine-dispatcher"`
	MQTTUsername      string        `env:"MQTT_USERNAME"`
	MQTTPassword      string        `env:"MQTT_PASSWORD"`

	// Address book.
	ContactsWatchDir string `env:"CONTACTS_WATCH_DIR"` // CSV drop directory (optional)

	// HTTP server knobs shared by all services.
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// SleepAndRetry is the pause between a sweep and its retries: the firing
// window divided across the dial attempts plus one trailing slot.
func (c *Config) SleepAndRetry() time.Duration {
	return time.Duration(float64(c.SecondsToForget) / float64(c.TimesToDial+1) * float64(time.Second))
}

// ForgetWindow returns seconds_to_forget as a duration.
func (c *Config) ForgetWindow() time.Duration {
	return time.Duration(c.SecondsToForget) * time.Second
}

// Workers resolves a worker-count knob, defaulting to the CPU count.
func Workers(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}

func (c *Config) Validate() error {
	if c.TimesToDial < 1 {
		return fmt.Errorf("TIMES_TO_DIAL must be >= 1, got %d", c.TimesToDial)
	}
	if c.SecondsToForget < 1 {
		return fmt.Errorf("SECONDS_TO_FORGET must be >= 1, got %d", c.SecondsToForget)
	}
	if !strings.HasPrefix(c.AsteriskURL, "http://") && !strings.HasPrefix(c.AsteriskURL, "https://") {
		return fmt.Errorf("ASTERISK_URL must be an http(s) URL, got %q", c.AsteriskURL)
	}
	return nil
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	DatabaseURL string
	LogLevel    string
	ListenAddr  string // applied by each binary to its own addr field
	AudioDir    string
	AsteriskURL string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.AsteriskURL != "" {
		cfg.AsteriskURL = overrides.AsteriskURL
	}

	return cfg, nil
}
