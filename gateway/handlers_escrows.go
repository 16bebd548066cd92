package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sardis/gateway/middleware"
	"sardis/native/escrow"
)

type createEscrowRequest struct {
	PayerAgentID string            `json:"payer_agent_id,omitempty"`
	PayeeAgentID string            `json:"payee_agent_id"`
	Amount       int64             `json:"amount"`
	Token        string            `json:"token"`
	Chain        string            `json:"chain"`
	Description  string            `json:"description,omitempty"`
	TTLSeconds   int64             `json:"ttl_seconds,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleCreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req createEscrowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	payer := req.PayerAgentID
	if payer == "" {
		payer = middleware.AgentID(r.Context())
	}
	created, err := s.deps.Escrows.Create(r.Context(), escrow.CreateInput{
		PayerAgentID: payer,
		PayeeAgentID: req.PayeeAgentID,
		Amount:       req.Amount,
		Token:        req.Token,
		Chain:        req.Chain,
		Description:  req.Description,
		TTL:          time.Duration(req.TTLSeconds) * time.Second,
		Metadata:     req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	got, err := s.deps.Escrows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleListEscrows(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Escrows.ListForAgent(r.Context(), chi.URLParam(r, "agent_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"escrows": list})
}

func (s *Server) handleFundEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxHash string `json:"tx_hash"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.deps.Escrows.Fund(r.Context(), chi.URLParam(r, "id"), req.TxHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleDeliverEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Proof string `json:"proof"`
	}
	if err := decodeJSONOptional(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.deps.Escrows.ConfirmDelivery(r.Context(), chi.URLParam(r, "id"), middleware.AgentID(r.Context()), req.Proof)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	got, err := s.deps.Escrows.Release(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleRefundEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSONOptional(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.deps.Escrows.Refund(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleEscrowSettlements(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Settlements.SettlementsForEscrow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"settlements": list})
}

func (s *Server) handleDisputeEscrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	got, err := s.deps.Escrows.Dispute(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, got)
}
