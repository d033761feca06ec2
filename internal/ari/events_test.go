package ari

import (
	"testing"
)

func TestParseEventChannelExtraction(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantType string
		wantChan string
	}{
		{
			"stasis_start",
			`{"type":"StasisStart","application":"call-engine","channel":{"id":"1710000000.42","state":"Up"}}`,
			"StasisStart",
			"1710000000.42",
		},
		{
			"playback_started_target_uri",
			`{"type":"PlaybackStarted","playback":{"id":"pb1","target_uri":"channel:1710000000.42","state":"playing"}}`,
			"PlaybackStarted",
			"1710000000.42",
		},
		{
			"playback_finished_target_uri",
			`{"type":"PlaybackFinished","playback":{"target_uri":"channel:chanA"}}`,
			"PlaybackFinished",
			"chanA",
		},
		{
			"channel_destroyed",
			`{"type":"ChannelDestroyed","channel":{"id":"chanB","state":"Down"}}`,
			"ChannelDestroyed",
			"chanB",
		},
		{
			"unknown_type_with_channel",
			`{"type":"Dial","channel":{"id":"chanC"}}`,
			"Dial",
			"chanC",
		},
		{
			"no_channel_fragment",
			`{"type":"DeviceStateChanged"}`,
			"DeviceStateChanged",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if ev.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", ev.Type, tt.wantType)
			}
			if got := ev.AsteriskChan(); got != tt.wantChan {
				t.Errorf("AsteriskChan() = %q, want %q", got, tt.wantChan)
			}
			if string(ev.Raw) != tt.frame {
				t.Errorf("Raw frame not preserved")
			}
		})
	}
}

func TestPickedUp(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"stasis_start_up", `{"type":"StasisStart","channel":{"id":"c","state":"Up"}}`, true},
		{"stasis_start_ringing", `{"type":"StasisStart","channel":{"id":"c","state":"Ringing"}}`, false},
		{"stasis_end_up", `{"type":"StasisEnd","channel":{"id":"c","state":"Up"}}`, false},
		{"state_change_up", `{"type":"ChannelStateChange","channel":{"id":"c","state":"Up"}}`, false},
		{"stasis_start_no_channel", `{"type":"StasisStart"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if got := ev.PickedUp(); got != tt.want {
				t.Errorf("PickedUp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKnown(t *testing.T) {
	known := []string{"StasisStart", "StasisEnd", "PlaybackStarted", "PlaybackFinished", "ChannelStateChange", "ChannelDestroyed"}
	for _, typ := range known {
		ev := &Event{Type: typ}
		if !ev.Known() {
			t.Errorf("Known() = false for %q", typ)
		}
	}
	if (&Event{Type: "Dial"}).Known() {
		t.Errorf("Known() = true for unmodelled type Dial")
	}
}

func TestParseEventMalformed(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"type":`)); err == nil {
		t.Errorf("expected an error for truncated JSON")
	}
}
