package ari

import (
	"encoding/json"
	"strings"
)

// Known ARI event types. Anything else is carried as an opaque frame; the
// raw JSON is persisted either way.
const (
	EventStasisStart        = "StasisStart"
	EventStasisEnd          = "StasisEnd"
	EventPlaybackStarted    = "PlaybackStarted"
	EventPlaybackFinished   = "PlaybackFinished"
	EventChannelStateChange = "ChannelStateChange"
	EventChannelDestroyed   = "ChannelDestroyed"
)

// ChannelStateUp is the channel state once the callee has picked up.
const ChannelStateUp = "Up"

// Channel is the channel fragment embedded in most events.
type Channel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Playback is the playback fragment of PlaybackStarted/PlaybackFinished.
type Playback struct {
	ID        string `json:"id"`
	MediaURI  string `json:"media_uri"`
	TargetURI string `json:"target_uri"`
	State     string `json:"state"`
}

// Event is one decoded WebSocket frame. Channel and Playback are nil when
// the frame does not carry them; Raw always holds the original bytes.
type Event struct {
	Type        string    `json:"type"`
	Application string    `json:"application"`
	Channel     *Channel  `json:"channel"`
	Playback    *Playback `json:"playback"`

	Raw json.RawMessage `json:"-"`
}

// ParseEvent decodes a frame, keeping the raw bytes for persistence.
func ParseEvent(frame []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return nil, err
	}
	ev.Raw = json.RawMessage(frame)
	return &ev, nil
}

// Known reports whether the event type is one this system models.
func (e *Event) Known() bool {
	switch e.Type {
	case EventStasisStart, EventStasisEnd, EventPlaybackStarted,
		EventPlaybackFinished, EventChannelStateChange, EventChannelDestroyed:
		return true
	}
	return false
}

// AsteriskChan extracts the channel identity of the frame. Playback events
// name the channel inside the playback target URI ("channel:<id>"); every
// other event carries a channel fragment.
func (e *Event) AsteriskChan() string {
	switch e.Type {
	case EventPlaybackStarted, EventPlaybackFinished:
		if e.Playback == nil {
			return ""
		}
		if _, id, ok := strings.Cut(e.Playback.TargetURI, ":"); ok {
			return id
		}
		return e.Playback.TargetURI
	default:
		if e.Channel == nil {
			return ""
		}
		return e.Channel.ID
	}
}

// PickedUp reports the moment worth acting on: the callee answered and the
// channel entered the control application.
func (e *Event) PickedUp() bool {
	return e.Type == EventStasisStart && e.Channel != nil && e.Channel.State == ChannelStateUp
}
