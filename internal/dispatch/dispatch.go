// Package dispatch turns already-shaped alert notifications into call and
// SMS actions, fanning out across receivers at a controlled pace.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/dialer"
	"github.com/snarg/call-engine/internal/metrics"
)

// The four notification actions, selected by configuration.
const (
	ActionCallOnly      = "call_only"
	ActionSMSOnly       = "sms_only"
	ActionSMSBeforeCall = "sms_before_call"
	ActionCallAndSMS    = "call_and_sms"
)

// receiverPace spaces the per-receiver fan-out so a wide alert does not
// slam the downstream services at once.
const receiverPace = 400 * time.Millisecond

// Alert is the shaped notification the dispatcher accepts. Parsing of
// monitoring-product webhook bodies into this shape happens upstream.
type Alert struct {
	Message   string   `json:"message"`
	Receivers []string `json:"receivers"`
}

type Dispatcher struct {
	dialer      *dialer.Client
	smsURL      string
	httpc       *http.Client
	action      string
	smsCallWait time.Duration
	log         zerolog.Logger
}

type Options struct {
	Dialer      *dialer.Client
	SMSURL      string
	Timeout     time.Duration
	Action      string
	SMSCallWait time.Duration
	Log         zerolog.Logger
}

func New(opts Options) (*Dispatcher, error) {
	switch opts.Action {
	case ActionCallOnly, ActionSMSOnly, ActionSMSBeforeCall, ActionCallAndSMS:
	default:
		return nil, fmt.Errorf("unknown dispatch action %q", opts.Action)
	}
	return &Dispatcher{
		dialer:      opts.Dialer,
		smsURL:      strings.TrimRight(opts.SMSURL, "/"),
		httpc:       &http.Client{Timeout: opts.Timeout},
		action:      opts.Action,
		smsCallWait: opts.SMSCallWait,
		log:         opts.Log,
	}, nil
}

// Dispatch fans the alert out to every receiver through the configured
// action. Per-receiver failures are logged; the fan-out keeps going.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) {
	for i, receiver := range alert.Receivers {
		if i > 0 {
			select {
			case <-time.After(receiverPace):
			case <-ctx.Done():
				return
			}
		}
		d.log.Info().Str("receiver", receiver).Str("action", d.action).
			Msg("dispatching alert notification")
		metrics.AlertsDispatchedTotal.WithLabelValues(d.action).Inc()

		switch d.action {
		case ActionCallOnly:
			d.call(ctx, receiver, alert.Message)
		case ActionSMSOnly:
			d.sms(ctx, receiver, alert.Message)
		case ActionCallAndSMS:
			d.sms(ctx, receiver, alert.Message)
			d.call(ctx, receiver, alert.Message)
		case ActionSMSBeforeCall:
			// The SMS gives the callee a head start; the call follows on
			// its own goroutine so the other receivers are not held up.
			d.sms(ctx, receiver, alert.Message)
			go func(rcv string) {
				select {
				case <-time.After(d.smsCallWait):
					d.call(ctx, rcv, alert.Message)
				case <-ctx.Done():
				}
			}(receiver)
		}
	}
}

// call dials the receiver. PBX trunks want international prefixes in
// 00-form, so a leading plus is rewritten.
func (d *Dispatcher) call(ctx context.Context, receiver, message string) {
	phone := strings.Replace(receiver, "+", "00", 1)
	if err := d.dialer.PlaceCall(ctx, phone, message, false); err != nil {
		d.log.Error().Err(err).Str("receiver", receiver).Msg("unable to start the call")
	}
}

func (d *Dispatcher) sms(ctx context.Context, receiver, message string) {
	q := url.Values{}
	q.Set("phone", receiver)
	q.Set("message", message)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.smsURL+"/sms?"+q.Encode(), nil)
	if err != nil {
		d.log.Error().Err(err).Str("receiver", receiver).Msg("unable to build the sms request")
		return
	}
	resp, err := d.httpc.Do(req)
	if err != nil {
		d.log.Error().Err(err).Str("receiver", receiver).Msg("unable to reach the sms gateway")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		d.log.Error().Int("status", resp.StatusCode).Str("receiver", receiver).
			Msg("sms gateway rejected the message")
	}
}
