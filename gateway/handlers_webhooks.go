package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sardis/services/webhookd"
)

type createWebhookRequest struct {
	URL       string   `json:"url"`
	Secret    string   `json:"secret"`
	Events    []string `json:"events,omitempty"`
	RateLimit int      `json:"rate_limit,omitempty"`
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := webhookd.NewSubscription(webhookd.CreateInput{
		URL:       req.URL,
		Secret:    req.Secret,
		Events:    req.Events,
		RateLimit: req.RateLimit,
	}, time.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Webhooks.PutSubscription(r.Context(), sub); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Webhooks.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleWebhookAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	attempts, err := s.deps.Webhooks.AttemptsForSubscription(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}
