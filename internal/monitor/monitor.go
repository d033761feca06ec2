// Package monitor is the single long-lived consumer of the PBX WebSocket
// event stream. Every frame is persisted; a callee picking up triggers
// audio synthesis and playback on the live channel.
//
// The monitor deliberately dies on a lost connection or a database error:
// the event stream has no replay, so a supervisor restart with a fresh
// subscription is the only sound recovery.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/ari"
	"github.com/snarg/call-engine/internal/audio"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/register"
)

// ErrConnectionLost signals main to exit non-zero so the supervisor
// restarts the process.
var ErrConnectionLost = errors.New("connection to the Asterisk PBX lost")

type Monitor struct {
	wsURL    string
	db       *database.DB
	register *register.Client
	audio    *audio.Client
	dialer   *dialer.Client

	readyRetries  int
	readyInterval time.Duration
	log           zerolog.Logger
}

type Options struct {
	WsURL    string // ws://pbx/ari/events?api_key=...&app=...
	DB       *database.DB
	Register *register.Client
	Audio    *audio.Client
	Dialer   *dialer.Client

	ReadyRetries  int
	ReadyInterval time.Duration
	Log           zerolog.Logger
}

func New(opts Options) *Monitor {
	return &Monitor{
		wsURL:         opts.WsURL,
		db:            opts.DB,
		register:      opts.Register,
		audio:         opts.Audio,
		dialer:        opts.Dialer,
		readyRetries:  opts.ReadyRetries,
		readyInterval: opts.ReadyInterval,
		log:           opts.Log,
	}
}

// Run consumes frames until the connection drops or a database write
// fails; both are fatal. Frames are processed strictly in arrival order.
func (m *Monitor) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.wsURL, nil)
	if err != nil {
		return fmt.Errorf("unable to establish a connection with the Asterisk PBX: %w", err)
	}
	defer conn.Close()
	m.log.Info().Str("url", redactWsURL(m.wsURL)).Msg("connected to the PBX event stream")

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				m.log.Info().Msg("event monitor stopping")
				return nil
			}
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}

		if err := m.handleFrame(ctx, frame); err != nil {
			return err
		}
	}
}

func (m *Monitor) handleFrame(ctx context.Context, frame []byte) error {
	ev, err := ari.ParseEvent(frame)
	if err != nil {
		m.log.Warn().Err(err).Msg("undecodable frame, skipping")
		return nil
	}
	asteriskChan := ev.AsteriskChan()
	metrics.PbxEventsTotal.WithLabelValues(ev.Type).Inc()

	// The raw frame is always persisted, known event type or not. A failed
	// write is fatal: an event log with holes is worse than a restart.
	if err := m.db.InsertWsEvent(ctx, asteriskChan, ev.Type, ev.Raw); err != nil {
		return fmt.Errorf("persisting PBX event: %w", err)
	}

	if !ev.PickedUp() {
		return nil
	}

	m.log.Info().Str("asterisk_chan", asteriskChan).Msg("callee picked up, taking control of the dialplan")
	m.playMessage(ctx, asteriskChan)
	return nil
}

// playMessage fetches the message bound to the channel, waits for its audio
// artifact, and plays it. Failures are logged, never fatal: the callee
// simply hears silence and the recaller tries again.
func (m *Monitor) playMessage(ctx context.Context, asteriskChan string) {
	message, msgChkSum, err := m.register.VoiceMessage(ctx, asteriskChan)
	if err != nil {
		m.log.Error().Err(err).Str("asterisk_chan", asteriskChan).
			Msg("unable to query the call register")
		return
	}
	if message == "" || msgChkSum == "" {
		m.log.Warn().Str("asterisk_chan", asteriskChan).
			Msg("no registered message for this channel, nothing to play")
		return
	}

	if err := m.audio.MakeAudio(ctx, message, msgChkSum); err != nil {
		m.log.Error().Err(err).Str("msg_chk_sum", msgChkSum).
			Msg("unable to request audio synthesis")
		return
	}

	if !m.waitForAudio(ctx, msgChkSum) {
		m.log.Error().Str("msg_chk_sum", msgChkSum).
			Int("retries", m.readyRetries).
			Msg("audio artifact not ready after maximum retries")
		return
	}

	if err := m.dialer.Play(ctx, asteriskChan, msgChkSum); err != nil {
		m.log.Error().Err(err).Str("asterisk_chan", asteriskChan).
			Msg("unable to request playback")
		return
	}
	m.log.Info().Str("asterisk_chan", asteriskChan).Str("msg_chk_sum", msgChkSum).
		Msg("playback requested")
}

// waitForAudio polls readiness at the configured interval until the
// artifact appears or the retry budget runs out.
func (m *Monitor) waitForAudio(ctx context.Context, msgChkSum string) bool {
	for attempt := 0; attempt < m.readyRetries; attempt++ {
		ready, err := m.audio.IsAudioReady(ctx, msgChkSum)
		if err != nil {
			m.log.Warn().Err(err).Str("msg_chk_sum", msgChkSum).Msg("readiness probe failed, retrying")
		} else if ready {
			return true
		}

		select {
		case <-time.After(m.readyInterval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// redactWsURL hides the api_key credential pair when logging the URL.
func redactWsURL(wsURL string) string {
	i := strings.Index(wsURL, "api_key=")
	if i < 0 {
		return wsURL
	}
	end := i + len("api_key=")
	if j := strings.IndexByte(wsURL[end:], '&'); j >= 0 {
		end += j
	} else {
		end = len(wsURL)
	}
	return wsURL[:i] + "api_key=***" + wsURL[end:]
}
