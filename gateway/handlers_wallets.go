package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sardis/gateway/middleware"
	"sardis/native/wallet"
)

type createWalletRequest struct {
	AgentID     string            `json:"agent_id,omitempty"`
	AccountType string            `json:"account_type"`
	Addresses   map[string]string `json:"addresses"`
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = middleware.AgentID(r.Context())
	}
	created, err := s.deps.Wallets.Create(r.Context(), wallet.CreateInput{
		AgentID:     agentID,
		AccountType: wallet.AccountType(req.AccountType),
		Addresses:   req.Addresses,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		agentID = middleware.AgentID(r.Context())
	}
	list, err := s.deps.Wallets.ListForAgent(r.Context(), agentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"wallets": list})
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	got, err := s.deps.Wallets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleFreezeWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.deps.Wallets.SetFrozen(r.Context(), chi.URLParam(r, "id"), true, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleUnfreezeWallet(w http.ResponseWriter, r *http.Request) {
	got, err := s.deps.Wallets.SetFrozen(r.Context(), chi.URLParam(r, "id"), false, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}
