package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/dialer"
)

type recorder struct {
	mu       sync.Mutex
	requests []*url.URL
}

func (r *recorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.requests = append(r.requests, req.URL)
		r.mu.Unlock()
		w.Write([]byte(`{"status":200}`))
	}
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, u := range r.requests {
		out = append(out, u.Path)
	}
	return out
}

func newTestDispatcher(t *testing.T, action string, dialerSrv, smsSrv *httptest.Server) *Dispatcher {
	t.Helper()
	d, err := New(Options{
		Dialer:      dialer.NewClient(dialerSrv.URL, time.Second),
		SMSURL:      smsSrv.URL,
		Timeout:     time.Second,
		Action:      action,
		SMSCallWait: 10 * time.Millisecond,
		Log:         zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestNewRejectsUnknownAction(t *testing.T) {
	_, err := New(Options{Action: "shout_from_rooftop"})
	if err == nil {
		t.Fatalf("expected an error for an unknown action")
	}
}

func TestDispatchCallOnlyRewritesPlus(t *testing.T) {
	calls := &recorder{}
	smsRec := &recorder{}
	dialerSrv := httptest.NewServer(calls.handler())
	defer dialerSrv.Close()
	smsSrv := httptest.NewServer(smsRec.handler())
	defer smsSrv.Close()

	d := newTestDispatcher(t, ActionCallOnly, dialerSrv, smsSrv)
	d.Dispatch(context.Background(), Alert{Message: "fire", Receivers: []string{"+15550001"}})

	calls.mu.Lock()
	defer calls.mu.Unlock()
	if len(calls.requests) != 1 {
		t.Fatalf("dialer got %d requests, want 1", len(calls.requests))
	}
	if got := calls.requests[0].Query().Get("phone"); got != "0015550001" {
		t.Errorf("phone = %q, want 0015550001 (+ rewritten)", got)
	}
	if len(smsRec.requests) != 0 {
		t.Errorf("call_only sent %d SMS", len(smsRec.requests))
	}
}

func TestDispatchSMSOnlyKeepsPlus(t *testing.T) {
	calls := &recorder{}
	smsRec := &recorder{}
	dialerSrv := httptest.NewServer(calls.handler())
	defer dialerSrv.Close()
	smsSrv := httptest.NewServer(smsRec.handler())
	defer smsSrv.Close()

	d := newTestDispatcher(t, ActionSMSOnly, dialerSrv, smsSrv)
	d.Dispatch(context.Background(), Alert{Message: "fire", Receivers: []string{"+15550001"}})

	smsRec.mu.Lock()
	defer smsRec.mu.Unlock()
	if len(smsRec.requests) != 1 {
		t.Fatalf("sms gateway got %d requests, want 1", len(smsRec.requests))
	}
	if got := smsRec.requests[0].Query().Get("phone"); got != "+15550001" {
		t.Errorf("sms phone = %q, want the + kept", got)
	}
	if len(calls.requests) != 0 {
		t.Errorf("sms_only placed %d calls", len(calls.requests))
	}
}

func TestDispatchCallAndSMS(t *testing.T) {
	calls := &recorder{}
	smsRec := &recorder{}
	dialerSrv := httptest.NewServer(calls.handler())
	defer dialerSrv.Close()
	smsSrv := httptest.NewServer(smsRec.handler())
	defer smsSrv.Close()

	d := newTestDispatcher(t, ActionCallAndSMS, dialerSrv, smsSrv)
	d.Dispatch(context.Background(), Alert{Message: "fire", Receivers: []string{"+1", "+2"}})

	calls.mu.Lock()
	nCalls := len(calls.requests)
	calls.mu.Unlock()
	smsRec.mu.Lock()
	nSMS := len(smsRec.requests)
	smsRec.mu.Unlock()
	if nCalls != 2 || nSMS != 2 {
		t.Errorf("got %d calls and %d SMS, want 2 and 2", nCalls, nSMS)
	}
}

func TestDispatchSMSBeforeCall(t *testing.T) {
	calls := &recorder{}
	smsRec := &recorder{}
	dialerSrv := httptest.NewServer(calls.handler())
	defer dialerSrv.Close()
	smsSrv := httptest.NewServer(smsRec.handler())
	defer smsSrv.Close()

	d := newTestDispatcher(t, ActionSMSBeforeCall, dialerSrv, smsSrv)
	d.Dispatch(context.Background(), Alert{Message: "fire", Receivers: []string{"+1"}})

	// The SMS is synchronous; the call trails after SMSCallWait.
	smsRec.mu.Lock()
	nSMS := len(smsRec.requests)
	smsRec.mu.Unlock()
	if nSMS != 1 {
		t.Fatalf("sms gateway got %d requests, want 1", nSMS)
	}

	deadline := time.After(2 * time.Second)
	for {
		calls.mu.Lock()
		n := len(calls.requests)
		calls.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("trailing call never placed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
