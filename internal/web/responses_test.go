package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ack?asterisk_chan=chanA", nil)
	w := httptest.NewRecorder()

	v, ok := Param(w, r, "asterisk_chan", "missing")
	if !ok || v != "chanA" {
		t.Errorf("Param = (%q, %v), want (chanA, true)", v, ok)
	}
}

func TestParamMissingWrites400(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ack", nil)
	w := httptest.NewRecorder()

	_, ok := Param(w, r, "asterisk_chan", "no 'asterisk_chan' parameter passed")
	if ok {
		t.Fatalf("Param reported ok for a missing parameter")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if env.Status != 400 || env.Message != "no 'asterisk_chan' parameter passed" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestOptionalBool(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"flag=true", true},
		{"flag=1", true},
		{"flag=yes", true},
		{"flag=false", false},
		{"flag=banana", false},
		{"", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
		if got := OptionalBool(r, "flag"); got != tt.want {
			t.Errorf("OptionalBool(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestWriteStatusEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteStatus(w, http.StatusOK)
	if w.Code != http.StatusOK {
		t.Errorf("http status = %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	var env Envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if env.Status != 200 || env.Message != "" {
		t.Errorf("envelope = %+v", env)
	}
}
