package sms

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/web"
)

type Handler struct {
	pool *Pool
	log  zerolog.Logger
}

func NewHandler(pool *Pool, log zerolog.Logger) *Handler {
	return &Handler{pool: pool, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/sms", h.SendSMS)
}

func (h *Handler) SendSMS(w http.ResponseWriter, r *http.Request) {
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}
	phone, ok := web.Param(w, r, "phone", "no 'phone' parameter passed")
	if !ok {
		return
	}

	if !h.pool.Enqueue(phone, message) {
		web.WriteError(w, http.StatusTooManyRequests, "sms queue is full")
		return
	}
	h.log.Info().Str("phone", phone).Msg("SMS queued for sending")
	web.WriteStatus(w, http.StatusOK)
}
