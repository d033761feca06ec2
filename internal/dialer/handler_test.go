package dialer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/ari"
	"github.com/snarg/call-engine/internal/register"
)

type staticResolver struct {
	number string
	oncall bool
}

func (r staticResolver) Resolve(ctx context.Context, phone string) (string, bool, error) {
	if phone == OnCallAlias {
		return r.number, true, nil
	}
	return phone, false, nil
}

func newTestHandler(t *testing.T, pbx, reg *httptest.Server, resolver OnCallResolver) *Handler {
	t.Helper()
	return NewHandler(Options{
		ARI: ari.NewClient(ari.Options{
			BaseURL: pbx.URL, User: "ari", Pass: "p",
			ChanType: "SIP/trunk", Timeout: time.Second, Log: zerolog.Nop(),
		}),
		Resolver:  resolver,
		Register:  register.NewClient(reg.URL, time.Second),
		Queue:     NewMemoryQueue(2),
		AudioURL:  "http://audio:8082",
		Extension: "3216",
		Context:   "call-engine",
		CallerID:  "alerts",
		Log:       zerolog.Nop(),
	})
}

func TestPlaceCallRegistersOriginalPhone(t *testing.T) {
	pbx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chan-77"}`))
	}))
	defer pbx.Close()

	var regQuery url.Values
	reg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		regQuery = r.URL.Query()
		w.Write([]byte(`{"status":200}`))
	}))
	defer reg.Close()

	h := newTestHandler(t, pbx, reg, staticResolver{number: "+15550009"})

	status, err := h.PlaceCall(context.Background(), OnCallAlias, "fire", false)
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}

	// The register receives the alias, not the resolved number, so later
	// retries re-resolve against the current roster.
	if got := regQuery.Get("phone"); got != OnCallAlias {
		t.Errorf("registered phone = %q, want %q", got, OnCallAlias)
	}
	if regQuery.Get("oncall") != "true" || regQuery.Get("backup_callee") != "false" {
		t.Errorf("flags = oncall:%s backup:%s", regQuery.Get("oncall"), regQuery.Get("backup_callee"))
	}
	if got := regQuery.Get("asterisk_chan"); got != "chan-77" {
		t.Errorf("asterisk_chan = %q, want chan-77", got)
	}
}

func TestPlaceCallPBXRejection(t *testing.T) {
	pbx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no trunk", http.StatusServiceUnavailable)
	}))
	defer pbx.Close()

	var registered bool
	reg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registered = true
	}))
	defer reg.Close()

	h := newTestHandler(t, pbx, reg, staticResolver{})
	status, err := h.PlaceCall(context.Background(), "+1", "fire", false)
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want the PBX's 503 passed through", status)
	}
	if registered {
		t.Errorf("a rejected originate must not be registered")
	}
}

func TestCallToQueueOverflowIs429(t *testing.T) {
	pbx := httptest.NewServer(http.NotFoundHandler())
	defer pbx.Close()
	reg := httptest.NewServer(http.NotFoundHandler())
	defer reg.Close()

	h := newTestHandler(t, pbx, reg, staticResolver{})
	// Fill the two-slot queue, then overflow.
	for i, wantCode := range []int{200, 200, 429} {
		r := httptest.NewRequest(http.MethodPost, "/call_to_queue?phone=%2B1&message=m", nil)
		w := httptest.NewRecorder()
		h.CallToQueue(w, r)
		if w.Code != wantCode {
			t.Errorf("enqueue %d: status = %d, want %d", i, w.Code, wantCode)
		}
	}
}

func TestPlayIssuesContinueAfterFailedPlayback(t *testing.T) {
	var paths []string
	pbx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Query().Get("media") != "" {
			http.Error(w, "no such sound", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer pbx.Close()
	reg := httptest.NewServer(http.NotFoundHandler())
	defer reg.Close()

	h := newTestHandler(t, pbx, reg, staticResolver{})
	r := httptest.NewRequest(http.MethodPost, "/play?asterisk_chan=chanA&msg_chk_sum=aabbccdd", nil)
	w := httptest.NewRecorder()
	h.Play(w, r)

	// The dialplan continue must go out even though the playback failed;
	// the channel must never stay parked in the control application.
	if len(paths) != 2 || paths[1] != "/ari/channels/chanA/continue" {
		t.Fatalf("paths = %v, want play then continue", paths)
	}
}
