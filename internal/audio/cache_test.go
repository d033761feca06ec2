package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// countingEngine fabricates a short beep and counts how often it runs.
type countingEngine struct {
	calls atomic.Int32
	fail  bool
	gate  chan struct{} // when set, Synthesize blocks until closed
}

func (e *countingEngine) Name() string { return "counting" }

func (e *countingEngine) Synthesize(ctx context.Context, text string) ([]int16, int, error) {
	e.calls.Add(1)
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if e.fail {
		return nil, 0, errors.New("synthesis exploded")
	}
	return []int16{100, 200, 300, 400}, 16000, nil
}

func newTestCache(t *testing.T, engine Engine) *Cache {
	t.Helper()
	c, err := NewCache(t.TempDir(), engine, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return c
}

func TestGenerateCreatesArtifact(t *testing.T) {
	engine := &countingEngine{}
	c := newTestCache(t, engine)

	cached, err := c.Generate(context.Background(), "hello", "aabbccdd")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if cached {
		t.Errorf("first Generate reported cached=true")
	}
	if !c.Ready("aabbccdd") {
		t.Errorf("artifact not ready after Generate")
	}

	// Second call is a pure cache hit.
	cached, err = c.Generate(context.Background(), "hello", "aabbccdd")
	if err != nil || !cached {
		t.Errorf("second Generate = (cached=%v, %v), want (true, nil)", cached, err)
	}
	if n := engine.calls.Load(); n != 1 {
		t.Errorf("engine ran %d times, want 1", n)
	}
}

func TestGenerateSingleFlight(t *testing.T) {
	engine := &countingEngine{gate: make(chan struct{})}
	c := newTestCache(t, engine)

	const n = 8
	results := make([]bool, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = c.Generate(context.Background(), "same message", "11223344")
		}(i)
	}
	started.Wait()
	close(engine.gate)
	wg.Wait()

	if calls := engine.calls.Load(); calls != 1 {
		t.Fatalf("engine ran %d times under concurrent demand, want exactly 1", calls)
	}
	var fresh int
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i] {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("%d callers saw cached=false, want exactly 1", fresh)
	}
}

func TestGenerateFailureNotCached(t *testing.T) {
	engine := &countingEngine{fail: true}
	c := newTestCache(t, engine)

	if _, err := c.Generate(context.Background(), "boom", "deadbeef"); err == nil {
		t.Fatalf("expected an error")
	}
	if c.Ready("deadbeef") {
		t.Errorf("failed synthesis left a ready artifact")
	}

	// A failure must not poison the key.
	engine.fail = false
	cached, err := c.Generate(context.Background(), "boom", "deadbeef")
	if err != nil || cached {
		t.Errorf("retry after failure = (cached=%v, %v), want (false, nil)", cached, err)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	c := newTestCache(t, &countingEngine{})
	for _, bad := range []string{"", "../etc/passwd", "a/b", `a\b`, "x.wav"} {
		if _, err := c.Path(bad); err == nil {
			t.Errorf("Path(%q) accepted", bad)
		}
	}
	if _, err := c.Path("0a1b2c3d"); err != nil {
		t.Errorf("Path rejected a plain checksum: %v", err)
	}
}
