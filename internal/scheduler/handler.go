// Package scheduler accepts future-dated calls, converts their local wall
// clock to UTC, and hands them to the delayed dispatcher. A record also
// lands in scheduled_calls so the UI can show what's pending.
package scheduler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/checksum"
	"github.com/snarg/call-engine/internal/database"
	"github.com/snarg/call-engine/internal/web"
)

type Handler struct {
	db         *database.DB
	dispatcher DelayedDispatcher
	localTZ    *time.Location
	log        zerolog.Logger
}

func NewHandler(db *database.DB, dispatcher DelayedDispatcher, localTZ *time.Location, log zerolog.Logger) *Handler {
	return &Handler{db: db, dispatcher: dispatcher, localTZ: localTZ, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/schedule_call", h.ScheduleCall)
}

func (h *Handler) ScheduleCall(w http.ResponseWriter, r *http.Request) {
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

	h.log.Info().Str("phone", phone).Str("scheduled_at", scheduledAtStr).
		Msg("received a call to be scheduled")

	when, err := ToUTC(scheduledAtStr, h.localTZ)
	if err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dispatcher.Schedule(r.Context(), NewJob(phone, message, when)); err != nil {
		h.log.Error().Err(err).Str("phone", phone).Msg("unable to enqueue the scheduled call")
		web.WriteError(w, http.StatusInternalServerError, "unable to enqueue the scheduled call")
		return
	}

	err = h.db.InsertScheduledCall(r.Context(), phone, message,
		checksum.Call(phone, message), when)
	if err != nil {
		// The job is already queued; the missing UI record is log-worthy
		// but not a reason to fail the request.
		h.log.Error().Err(err).Str("phone", phone).Msg("scheduled call queued but not recorded")
	}

	web.WriteStatus(w, http.StatusOK)
}
