package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/audio"
)

func TestRedactWsURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"credentials_hidden",
			"ws://pbx:8088/ari/events?api_key=ari%3Asecret&app=call-engine",
			"ws://pbx:8088/ari/events?api_key=***&app=call-engine",
		},
		{
			"api_key_last",
			"ws://pbx:8088/ari/events?app=x&api_key=u%3Ap",
			"ws://pbx:8088/ari/events?app=x&api_key=***",
		},
		{
			"no_api_key",
			"ws://pbx:8088/ari/events?app=x",
			"ws://pbx:8088/ari/events?app=x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactWsURL(tt.in); got != tt.want {
				t.Errorf("redactWsURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWaitForAudioPollsUntilReady(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := probes.Add(1)
		if n < 3 {
			w.Write([]byte(`{"exists":false}`))
			return
		}
		w.Write([]byte(`{"exists":true}`))
	}))
	defer srv.Close()

	m := New(Options{
		Audio:         audio.NewClient(srv.URL, time.Second),
		ReadyRetries:  12,
		ReadyInterval: 5 * time.Millisecond,
		Log:           zerolog.Nop(),
	})
	if !m.waitForAudio(context.Background(), "abcd1234") {
		t.Fatalf("waitForAudio gave up despite the artifact becoming ready")
	}
	if probes.Load() != 3 {
		t.Errorf("probed %d times, want 3", probes.Load())
	}
}

func TestWaitForAudioExhaustsRetries(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.Write([]byte(`{"exists":false}`))
	}))
	defer srv.Close()

	m := New(Options{
		Audio:         audio.NewClient(srv.URL, time.Second),
		ReadyRetries:  4,
		ReadyInterval: time.Millisecond,
		Log:           zerolog.Nop(),
	})
	if m.waitForAudio(context.Background(), "abcd1234") {
		t.Fatalf("waitForAudio reported ready for a never-ready artifact")
	}
	if probes.Load() != 4 {
		t.Errorf("probed %d times, want exactly the retry budget (4)", probes.Load())
	}
}
