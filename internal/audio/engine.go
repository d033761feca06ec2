package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/snarg/call-engine/internal/config"
)

// Engine turns message text into PCM16 samples at whatever rate the
// backend produces; the cache normalizes the result.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text string) (samples []int16, sampleRate int, err error)
}

// NewEngine builds the configured synthesis engine. The HTTP engines talk
// to their respective inference services; Polly goes through the AWS SDK.
func NewEngine(ctx context.Context, cfg *config.Config) (Engine, error) {
	timeout := cfg.ClientTimeout
	if timeout < 30*time.Second {
		// Model inference is slower than the inter-service calls the
		// shared timeout is tuned for.
		timeout = 30 * time.Second
	}

	switch cfg.TTSEngine {
	case "gtts":
		return newGTTS(cfg.TTSEngineURL, cfg.TTSLanguage, timeout), nil
	case "mms":
		return newMMS(cfg.TTSEngineURL, cfg.TTSLanguage, timeout), nil
	case "piper":
		return newPiper(cfg.TTSEngineURL, cfg.TTSVoice, timeout), nil
	case "kokoro":
		return newKokoro(cfg.TTSEngineURL, cfg.TTSVoice, timeout), nil
	case "polly":
		e, err := newPolly(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown TTS_ENGINE %q (valid: gtts, mms, piper, polly, kokoro)", cfg.TTSEngine)
	}
}
