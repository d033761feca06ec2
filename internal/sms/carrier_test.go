package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOnPremCarrierSend(t *testing.T) {
	var gotPath, gotPhone, gotMessage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPhone = r.URL.Query().Get("phone")
		gotMessage = r.URL.Query().Get("message")
		w.Write([]byte(`{"status":200}`))
	}))
	defer srv.Close()

	c := NewOnPremCarrier(srv.URL, time.Second)
	if err := c.Send(context.Background(), "+15550001", "disk full"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/send_sms" || gotPhone != "+15550001" || gotMessage != "disk full" {
		t.Errorf("request = %s phone=%q message=%q", gotPath, gotPhone, gotMessage)
	}
}

func TestOnPremCarrierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOnPremCarrier(srv.URL, time.Second)
	if err := c.Send(context.Background(), "+1", "m"); err == nil {
		t.Errorf("expected an error for a 502")
	}
}

func TestPoolDeliversJobs(t *testing.T) {
	delivered := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- r.URL.Query().Get("phone")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	pool := NewPool(NewOnPremCarrier(srv.URL, time.Second), 2, 8, zerolog.Nop())
	defer pool.Stop()

	if !pool.Enqueue("+1", "a") || !pool.Enqueue("+2", "b") {
		t.Fatalf("Enqueue refused with room to spare")
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case phone := <-delivered:
			seen[phone] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered %d sends, want 2", i)
		}
	}
	if !seen["+1"] || !seen["+2"] {
		t.Errorf("seen = %v", seen)
	}
}

func TestPoolOverflow(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	pool := NewPool(NewOnPremCarrier(srv.URL, 5*time.Second), 1, 1, zerolog.Nop())
	defer pool.Stop()

	// One job occupies the worker, one fills the queue; give the worker a
	// moment to pick the first up, then the queue accepts exactly one more.
	if !pool.Enqueue("+1", "a") {
		t.Fatalf("first Enqueue refused")
	}
	time.Sleep(50 * time.Millisecond)
	pool.Enqueue("+2", "b")
	if pool.Enqueue("+3", "c") && pool.Enqueue("+4", "d") {
		t.Errorf("queue accepted past its bound")
	}
}
