package audio

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/call-engine/internal/metrics"
	"github.com/snarg/call-engine/internal/web"
)

// Handler serves the audio-cache HTTP surface: synthesis requests from the
// event monitor, readiness probes, and the static WAV files the PBX fetches.
type Handler struct {
	cache *Cache
	log   zerolog.Logger
}

func NewHandler(cache *Cache, log zerolog.Logger) *Handler {
	return &Handler{cache: cache, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/make_audio", h.MakeAudio)
	r.Get("/is_audio_ready", h.IsAudioReady)
	// Serve in production behind Nginx or a CDN; self-serving keeps small
	// deployments to a single moving part.
	r.Handle("/audio/*", http.StripPrefix("/audio/", http.FileServer(http.Dir(h.cache.Dir()))))
}

type makeAudioResponse struct {
	Status int  `json:"status"`
	Cached bool `json:"cached"`
}

func (h *Handler) MakeAudio(w http.ResponseWriter, r *http.Request) {
	message, ok := web.Param(w, r, "message", "no 'message' parameter passed")
	if !ok {
		return
	}
	msgChkSum, ok := web.Param(w, r, "msg_chk_sum", "no 'msg_chk_sum' parameter passed")
	if !ok {
		return
	}

	cached, err := h.cache.Generate(r.Context(), message, msgChkSum)
	if err != nil {
		h.log.Error().Err(err).Str("msg_chk_sum", msgChkSum).Msg("unable to generate the audio file")
		metrics.AudioSynthesisTotal.WithLabelValues("failed").Inc()
		web.WriteJSON(w, http.StatusInternalServerError, makeAudioResponse{Status: 500})
		return
	}
	if cached {
		metrics.AudioSynthesisTotal.WithLabelValues("cached").Inc()
	} else {
		metrics.AudioSynthesisTotal.WithLabelValues("synthesized").Inc()
	}
	web.WriteJSON(w, http.StatusOK, makeAudioResponse{Status: 200, Cached: cached})
}

func (h *Handler) IsAudioReady(w http.ResponseWriter, r *http.Request) {
	msgChkSum, ok := web.Param(w, r, "msg_chk_sum", "no 'msg_chk_sum' parameter passed")
	if !ok {
		return
	}
	web.WriteJSON(w, http.StatusOK, map[string]bool{"exists": h.cache.Ready(msgChkSum)})
}
