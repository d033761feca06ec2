package dispatch

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/web"
)

type Handler struct {
	dispatcher *Dispatcher
	log        zerolog.Logger
}

func NewHandler(dispatcher *Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/notify", h.Notify)
}

// Notify accepts a shaped alert and fans it out in the background; the
// webhook caller gets its answer before the calls are placed.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var alert Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		web.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if alert.Message == "" || len(alert.Receivers) == 0 {
		web.WriteError(w, http.StatusBadRequest, "missing 'message' or 'receivers'")
		return
	}

	// The request context dies with this handler; the fan-out must not.
	go h.dispatcher.Dispatch(context.WithoutCancel(r.Context()), alert)
	web.WriteStatus(w, http.StatusOK)
}
