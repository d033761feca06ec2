package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// The self-hosted engines (gTTS frontend, Facebook MMS, Piper, Kokoro) run
// as sidecar inference services that answer with a PCM16 WAV body. Each has
// its own request shape; the response handling is shared.

func fetchWAV(ctx context.Context, httpc *http.Client, req *http.Request) ([]int16, int, error) {
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, 0, fmt.Errorf("tts service returned %d: %s", resp.StatusCode, body)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	samples, rate, channels, err := DecodeWAV(payload)
	if err != nil {
		return nil, 0, err
	}
	return Downmix(samples, channels), rate, nil
}

// ── gTTS ─────────────────────────────────────────────────────────────

type gttsEngine struct {
	baseURL string
	lang    string
	httpc   *http.Client
}

func newGTTS(baseURL, lang string, timeout time.Duration) *gttsEngine {
	return &gttsEngine{baseURL: baseURL, lang: lang, httpc: &http.Client{Timeout: timeout}}
}

func (e *gttsEngine) Name() string { return "gtts" }

func (e *gttsEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("lang", e.lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tts?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	return fetchWAV(ctx, e.httpc, req)
}

// ── Facebook MMS ─────────────────────────────────────────────────────

type mmsEngine struct {
	baseURL string
	lang    string
	httpc   *http.Client
}

func newMMS(baseURL, lang string, timeout time.Duration) *mmsEngine {
	return &mmsEngine{baseURL: baseURL, lang: lang, httpc: &http.Client{Timeout: timeout}}
}

func (e *mmsEngine) Name() string { return "mms" }

func (e *mmsEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	body, _ := json.Marshal(map[string]string{"text": text, "lang": e.lang})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return fetchWAV(ctx, e.httpc, req)
}

// ── Piper ────────────────────────────────────────────────────────────

type piperEngine struct {
	baseURL string
	voice   string
	httpc   *http.Client
}

func newPiper(baseURL, voice string, timeout time.Duration) *piperEngine {
	return &piperEngine{baseURL: baseURL, voice: voice, httpc: &http.Client{Timeout: timeout}}
}

func (e *piperEngine) Name() string { return "piper" }

func (e *piperEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	payload := map[string]string{"text": text}
	if e.voice != "" {
		payload["voice"] = e.voice
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/text-to-speech", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return fetchWAV(ctx, e.httpc, req)
}

// ── Kokoro ───────────────────────────────────────────────────────────

type kokoroEngine struct {
	baseURL string
	voice   string
	httpc   *http.Client
}

func newKokoro(baseURL, voice string, timeout time.Duration) *kokoroEngine {
	return &kokoroEngine{baseURL: baseURL, voice: voice, httpc: &http.Client{Timeout: timeout}}
}

func (e *kokoroEngine) Name() string { return "kokoro" }

func (e *kokoroEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	payload := map[string]string{"input": text, "response_format": "wav"}
	if e.voice != "" {
		payload["voice"] = e.voice
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return fetchWAV(ctx, e.httpc, req)
}
