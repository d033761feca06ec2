package dialer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveLiteralPassThrough(t *testing.T) {
	// No server: a literal number must never touch the address book.
	r := NewAddressBookResolver("http://127.0.0.1:1", time.Second)
	resolved, oncall, err := r.Resolve(context.Background(), "+15550001")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != "+15550001" || oncall {
		t.Errorf("Resolve = (%q, %v), want (+15550001, false)", resolved, oncall)
	}
}

func TestResolveOnCallAlias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/on_call_contact" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","name":"Alice","surname":"Prim","phone_number":"+15550009","priority":1}`))
	}))
	defer srv.Close()

	r := NewAddressBookResolver(srv.URL, time.Second)
	resolved, oncall, err := r.Resolve(context.Background(), OnCallAlias)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != "+15550009" || !oncall {
		t.Errorf("Resolve = (%q, %v), want (+15550009, true)", resolved, oncall)
	}
}

func TestResolveOnCallErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"nobody_on_call",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"status":404,"message":"no contact is on call"}`, http.StatusNotFound)
			},
		},
		{
			"empty_phone_number",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"id":"c1","name":"Alice","phone_number":""}`))
			},
		},
		{
			"garbage_body",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			r := NewAddressBookResolver(srv.URL, time.Second)
			if _, _, err := r.Resolve(context.Background(), OnCallAlias); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestResolveOnCallUnreachable(t *testing.T) {
	r := NewAddressBookResolver("http://127.0.0.1:1", 100*time.Millisecond)
	if _, _, err := r.Resolve(context.Background(), OnCallAlias); err == nil {
		t.Errorf("expected a connection error")
	}
}
