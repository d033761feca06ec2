// Package register is the authoritative state store for call cycles. Every
// other component mutates call state only through this HTTP surface.
package register

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/checksum"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/scheduler"
	"github.com/snarg/call-engine/internal/web"
)

type Handler struct {
	db              *database.DB
	timesToDial     int
	secondsToForget int
	localTZ         *time.Location
	log             zerolog.Logger
}

type Options struct {
	DB              *database.DB
	TimesToDial     int
	SecondsToForget int
	LocalTZ         *time.Location
	Log             zerolog.Logger
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		db:              opts.DB,
		timesToDial:     opts.TimesToDial,
		secondsToForget: opts.SecondsToForget,
		localTZ:         opts.LocalTZ,
		log:             opts.Log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/register_call", h.RegisterCall)
	r.Post("/msg", h.VoiceMessage)
	r.Post("/scheduled_call", h.ScheduledCall)
	r.Get("/ack", h.Acknowledge)
	r.Get("/heard", h.Heard)
}

// RegisterCall deduplicates an incoming dial attempt into its call cycle:
// a fresh row when no open cycle exists inside the retry window, otherwise
// a touch of the open row (last_dial, clamped dial counter, new channel).
func (h *Handler) RegisterCall(w http.ResponseWriter, r *http.Request) {
	phone, ok := web.Param(w, r, "phone", "no 'phone' parameter passed")
	if !ok {
		return
	}
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}
	asteriskChan := r.URL.Query().Get("asterisk_chan")
	oncall := web.OptionalBool(r, "oncall")
	backupCallee := web.OptionalBool(r, "backup_callee")

	ctx := r.Context()
	firstDial := time.Now().UTC()
	row := &database.CallRow{
		Phone:           phone,
		Message:         message,
		AsteriskChan:    asteriskChan,
		CallChkSum:      checksum.Call(phone, message),
		MsgChkSum:       checksum.Message(message),
		UniqueChkSum:    checksum.Unique(phone, message, firstDial),
		FirstDial:       firstDial,
		TimesToDial:     int16(h.timesToDial),
		SecondsToForget: h.secondsToForget,
		OnCall:          oncall,
		BackupCallee:    backupCallee,
	}

	exists, err := h.db.CycleExists(ctx, row.CallChkSum)
	if err != nil {
		h.dbError(w, err, "register_call existence check failed")
		return
	}

	if !exists {
		h.log.Info().Str("phone", phone).Str("message", message).
			Msg("first call for this phone and message, starting a cycle")
		h.insert(w, r, row)
		return
	}

	id, _, found, err := h.db.ActiveCycle(ctx, row.CallChkSum)
	if err != nil {
		h.dbError(w, err, "register_call active cycle lookup failed")
		return
	}
	if !found {
		h.log.Info().Str("phone", phone).Str("message", message).
			Int("seconds_to_forget", h.secondsToForget).
			Msg("no uncompleted cycle inside the retry period, starting a new cycle")
		h.insert(w, r, row)
		return
	}

	if err := h.db.TouchCycle(ctx, id, asteriskChan); err != nil {
		h.dbError(w, err, "register_call cycle update failed")
		return
	}
	h.log.Info().Str("phone", phone).Str("message", message).Str("call_id", id).
		Msg("updating the call status for an open cycle")
	metrics.CallsRegisteredTotal.WithLabelValues("retry").Inc()
	web.WriteStatus(w, http.StatusOK)
}

func (h *Handler) insert(w http.ResponseWriter, r *http.Request, row *database.CallRow) {
	if err := h.db.InsertCall(r.Context(), row); err != nil {
		h.dbError(w, err, "register_call insert failed")
		return
	}
	metrics.CallsRegisteredTotal.WithLabelValues("new_cycle").Inc()
	web.WriteStatus(w, http.StatusOK)
}

// VoiceMessage recovers the message payload bound to a PBX channel. Unknown
// channels answer with empty strings rather than an error; the monitor
// treats that as "nothing to play".
func (h *Handler) VoiceMessage(w http.ResponseWriter, r *http.Request) {
	asteriskChan, ok := web.Param(w, r, "asterisk_chan", "no 'asterisk_chan' parameter passed")
	if !ok {
		return
	}
	message, msgChkSum, err := h.db.MessageByChan(r.Context(), asteriskChan)
	if err != nil {
		h.dbError(w, err, "voice_message lookup failed")
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]string{
		"message":     message,
		"msg_chk_sum": msgChkSum,
	})
}

// Acknowledge closes the cycle when the ack lands inside the firing window
// and cascades to the on-call peers sharing the message checksum. A late
// ack keeps the timestamp but reports failure.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	asteriskChan, ok := web.Param(w, r, "asterisk_chan", "no 'asterisk_chan' parameter passed")
	if !ok {
		return
	}

	within, msgChkSum, err := h.db.Acknowledge(r.Context(), asteriskChan)
	if errors.Is(err, database.ErrUnknownChannel) {
		web.WriteError(w, http.StatusBadRequest, "no call found for this asterisk channel")
		return
	}
	if err != nil {
		h.dbError(w, err, "acknowledge update failed")
		return
	}

	if !within {
		h.log.Info().Str("asterisk_chan", asteriskChan).
			Msg("call not acknowledged as it's outside the firing period")
		metrics.AcknowledgementsTotal.WithLabelValues("outside").Inc()
		web.WriteJSON(w, http.StatusBadRequest, struct {
			web.Envelope
			Acknowledged bool `json:"acknowledged"`
		}{web.Envelope{Status: 400, Message: "call acknowledged outside the firing period"}, false})
		return
	}

	if msgChkSum != "" {
		closed, err := h.db.CloseOnCallPeers(r.Context(), msgChkSum)
		if err != nil {
			h.dbError(w, err, "acknowledge cascade failed")
			return
		}
		if closed > 0 {
			h.log.Info().Str("msg_chk_sum", msgChkSum).Int64("closed", closed).
				Msg("marked related oncall cycles as done, stopping backup calls")
		}
	}

	h.log.Info().Str("asterisk_chan", asteriskChan).Msg("call acknowledged within the firing period")
	metrics.AcknowledgementsTotal.WithLabelValues("within").Inc()
	web.WriteJSON(w, http.StatusOK, struct {
		web.Envelope
		Acknowledged bool `json:"acknowledged"`
	}{web.Envelope{Status: 200}, true})
}

// Heard stamps the moment the PBX finished playing the message.
func (h *Handler) Heard(w http.ResponseWriter, r *http.Request) {
	asteriskChan, ok := web.Param(w, r, "asterisk_chan", "no 'asterisk_chan' parameter passed")
	if !ok {
		return
	}
	if err := h.db.MarkHeard(r.Context(), asteriskChan); err != nil {
		h.dbError(w, err, "heard update failed")
		return
	}
	web.WriteStatus(w, http.StatusOK)
}

// ScheduledCall records a future-dated call. The wall clock arrives in the
// configured local timezone; DST-ambiguous or skipped times are rejected.
func (h *Handler) ScheduledCall(w http.ResponseWriter, r *http.Request) {
	phone, ok := web.Param(w, r, "phone", "no 'phone' parameter passed")
	if !ok {
		return
	}
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}
	scheduledAtStr, ok := web.Param(w, r, "scheduled_at", "no 'scheduled_at' parameter passed")
	if !ok {
		return
	}

	scheduledAt, err := scheduler.ToUTC(scheduledAtStr, h.localTZ)
	if err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.db.InsertScheduledCall(r.Context(), phone, message,
		checksum.Call(phone, message), scheduledAt)
	if err != nil {
		h.dbError(w, err, "scheduled_call insert failed")
		return
	}
	h.log.Info().Str("phone", phone).Time("scheduled_at", scheduledAt).Msg("scheduled call recorded")
	web.WriteStatus(w, http.StatusOK)
}

func (h *Handler) dbError(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	web.WriteError(w, http.StatusInternalServerError, "database error")
}
