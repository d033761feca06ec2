// Package dialer places outbound calls through the PBX control API and
// serves per-channel audio playback requests. Retries live in the recaller,
// not here: every operation is one-shot.
package dialer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/ari"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/register"
	"github.com/snarg/call-engine/internal/web"
)

type Handler struct {
	ari       *ari.Client
	resolver  OnCallResolver
	register  *register.Client
	queue     CallQueue
	audioURL  string // base URL the PBX fetches artifacts from
	extension string
	context_  string
	callerID  string
	log       zerolog.Logger
}

type Options struct {
	ARI       *ari.Client
	Resolver  OnCallResolver
	Register  *register.Client
	Queue     CallQueue
	AudioURL  string
	Extension string
	Context   string
	CallerID  string
	Log       zerolog.Logger
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		ari:       opts.ARI,
		resolver:  opts.Resolver,
		register:  opts.Register,
		queue:     opts.Queue,
		audioURL:  opts.AudioURL,
		extension: opts.Extension,
		context_:  opts.Context,
		callerID:  opts.CallerID,
		log:       opts.Log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/place_call", h.PlaceCallHandler)
	r.Post("/call_to_queue", h.CallToQueue)
	r.Post("/play", h.Play)
}

// PlaceCall resolves the on-call alias, originates the channel, and
// registers the attempt. The register receives the caller's original phone
// value so a later retry re-resolves "oncall" against the current roster.
func (h *Handler) PlaceCall(ctx context.Context, phone, message string, backupCallee bool) (int, error) {
	resolved, oncall, err := h.resolver.Resolve(ctx, phone)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", phone, err)
	}

	status, channelID, err := h.ari.Originate(ctx, ari.OriginateParams{
		Phone:     resolved,
		Extension: h.extension,
		Context:   h.context_,
		CallerID:  h.callerID,
	})
	if err != nil {
		metrics.CallsPlacedTotal.WithLabelValues("pbx_unreachable").Inc()
		return 0, fmt.Errorf("unable to connect to the asterisk system: %w", err)
	}
	if status != http.StatusOK {
		metrics.CallsPlacedTotal.WithLabelValues("pbx_rejected").Inc()
		return status, nil
	}

	if err := h.register.RegisterCall(ctx, phone, message, channelID, oncall, backupCallee); err != nil {
		// The call is already ringing; losing the register write is worth
		// surfacing loudly but not worth failing the request.
		h.log.Error().Err(err).Str("phone", phone).Str("asterisk_chan", channelID).
			Msg("call placed but register_call failed")
	}

	metrics.CallsPlacedTotal.WithLabelValues("ok").Inc()
	h.log.Info().Str("phone", resolved).Str("asterisk_chan", channelID).
		Bool("oncall", oncall).Bool("backup_callee", backupCallee).
		Msg("call placed")
	return status, nil
}

func (h *Handler) PlaceCallHandler(w http.ResponseWriter, r *http.Request) {
	phone, ok := web.Param(w, r, "phone", "no 'phone' parameter passed")
	if !ok {
		return
	}
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}
	backupCallee := web.OptionalBool(r, "backup_callee")

	status, err := h.PlaceCall(r.Context(), phone, message, backupCallee)
	if err != nil {
		h.log.Error().Err(err).Str("phone", phone).Msg("place_call failed")
		web.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{Status: status})
}

// CallToQueue parks the request on the bounded in-process queue; the
// worker drains it at one call per firing window.
func (h *Handler) CallToQueue(w http.ResponseWriter, r *http.Request) {
	phone, ok := web.Param(w, r, "phone", "no 'phone' parameter passed")
	if !ok {
		return
	}
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}

	call := NewQueuedCall(phone, message)
	if !h.queue.Enqueue(call) {
		h.log.Warn().Str("phone", phone).Int("pending", h.queue.Len()).Msg("call queue full")
		web.WriteError(w, http.StatusTooManyRequests, "call queue is full")
		return
	}
	h.log.Info().Str("phone", phone).Str("queue_id", call.ID).Int("pending", h.queue.Len()).
		Msg("call enqueued")
	web.WriteStatus(w, http.StatusOK)
}

// Play asks the PBX to play the artifact on the channel, then hands control
// back to the dialplan. The continue must go out even when the playback
// failed, or the channel stays parked in the Stasis application.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	asteriskChan, ok := web.Param(w, r, "asterisk_chan", "no 'asterisk_chan' parameter passed")
	if !ok {
		return
	}
	msgChkSum, ok := web.Param(w, r, "msg_chk_sum", "no 'msg_chk_sum' parameter passed")
	if !ok {
		return
	}

	mediaURI := h.audioURL + "/audio/" + msgChkSum + ".wav"
	playStatus, playErr := h.ari.Play(r.Context(), asteriskChan, mediaURI)
	if playErr != nil {
		h.log.Error().Err(playErr).Str("asterisk_chan", asteriskChan).
			Msg("unable to connect to the asterisk system for playback")
	} else if playStatus == http.StatusCreated {
		h.log.Info().Str("asterisk_chan", asteriskChan).Str("artifact", msgChkSum+".wav").
			Msg("playing audio to the channel")
	} else {
		h.log.Error().Int("status", playStatus).Str("asterisk_chan", asteriskChan).
			Str("artifact", msgChkSum+".wav").Msg("unable to play audio to the channel")
	}

	contStatus, contErr := h.ari.Continue(r.Context(), asteriskChan)
	if contErr != nil {
		h.log.Error().Err(contErr).Str("asterisk_chan", asteriskChan).
			Msg("unable to restore call control to the PBX")
	} else if contStatus == http.StatusNoContent {
		h.log.Info().Str("asterisk_chan", asteriskChan).Msg("call control restored to the PBX")
	} else {
		h.log.Error().Int("status", contStatus).Str("asterisk_chan", asteriskChan).
			Msg("unexpected status restoring call control")
	}

	if playErr != nil {
		web.WriteError(w, http.StatusBadGateway, "unable to reach the PBX")
		return
	}
	web.WriteJSON(w, http.StatusOK, web.Envelope{Status: playStatus})
}
