// Package audio is the content-addressed TTS cache: one WAV artifact per
// message checksum, synthesized at most once no matter how many callers
// ask for it concurrently.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Cache owns the artifact directory and the synthesis engine.
type Cache struct {
	dir    string
	engine Engine
	sem    chan struct{} // bounds concurrent synthesis
	log    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{} // msg_chk_sum → done signal
}

// NewCache prepares the artifact directory and the bounded synthesis pool.
func NewCache(dir string, engine Engine, workers int, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir %s: %w", dir, err)
	}
	if workers < 1 {
		workers = 1
	}
	return &Cache{
		dir:      dir,
		engine:   engine,
		sem:      make(chan struct{}, workers),
		log:      log,
		inflight: make(map[string]chan struct{}),
	}, nil
}

// Path returns the artifact location for a checksum, rejecting anything
// that could escape the serving directory.
func (c *Cache) Path(msgChkSum string) (string, error) {
	if msgChkSum == "" || strings.ContainsAny(msgChkSum, "/\\.") {
		return "", fmt.Errorf("invalid msg_chk_sum %q", msgChkSum)
	}
	return filepath.Join(c.dir, msgChkSum+".wav"), nil
}

// Ready reports whether a valid artifact exists for the checksum. Artifacts
// are never deleted by the core, so a true answer stays true.
func (c *Cache) Ready(msgChkSum string) bool {
	path, err := c.Path(msgChkSum)
	if err != nil {
		return false
	}
	return ValidArtifact(path)
}

// Generate ensures the artifact for (message, msgChkSum) exists. It returns
// cached=true when a previous synthesis (ours or a concurrent one) already
// produced the file. Only the first caller for a given checksum runs the
// engine; everyone else waits on its result.
func (c *Cache) Generate(ctx context.Context, message, msgChkSum string) (cached bool, err error) {
	path, err := c.Path(msgChkSum)
	if err != nil {
		return false, err
	}

	if ValidArtifact(path) {
		return true, nil
	}

	c.mu.Lock()
	if done, ok := c.inflight[msgChkSum]; ok {
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		if ValidArtifact(path) {
			return true, nil
		}
		return false, fmt.Errorf("synthesis for %s failed in another request", msgChkSum)
	}
	done := make(chan struct{})
	c.inflight[msgChkSum] = done
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, msgChkSum)
		c.mu.Unlock()
		close(done)
	}()

	// The first-writer check above can race with a synthesis that completed
	// between our validity probe and taking the lock; re-check on disk.
	if ValidArtifact(path) {
		return true, nil
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-c.sem }()

	if err := c.synthesize(ctx, message, path); err != nil {
		return false, err
	}
	return false, nil
}

func (c *Cache) synthesize(ctx context.Context, message, path string) error {
	samples, rate, err := c.engine.Synthesize(ctx, message)
	if err != nil {
		return fmt.Errorf("engine %s: %w", c.engine.Name(), err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("engine %s produced no audio", c.engine.Name())
	}

	wav := EncodeWAV(Resample(samples, rate, TargetSampleRate))

	// Materialize atomically: the readiness probe must never observe a
	// half-written file under the final name.
	tmp, err := os.CreateTemp(c.dir, ".synth-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	c.log.Info().Str("engine", c.engine.Name()).Str("artifact", filepath.Base(path)).
		Int("samples", len(samples)).Msg("audio artifact synthesized")
	return nil
}

// Dir returns the serving directory.
func (c *Cache) Dir() string { return c.dir }
