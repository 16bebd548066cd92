package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sardis/native/holds"
)

type createHoldRequest struct {
	WalletID        string `json:"wallet_id"`
	MerchantID      string `json:"merchant_id,omitempty"`
	Amount          int64  `json:"amount"`
	Token           string `json:"token"`
	Purpose         string `json:"purpose,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
}

func (s *Server) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	var req createHoldRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	hold, err := s.deps.Holds.Create(r.Context(), holds.CreateInput{
		WalletID:   req.WalletID,
		MerchantID: req.MerchantID,
		Amount:     req.Amount,
		Token:      req.Token,
		Purpose:    req.Purpose,
		Duration:   time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, hold)
}

func (s *Server) handleGetHold(w http.ResponseWriter, r *http.Request) {
	hold, err := s.deps.Holds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hold)
}

func (s *Server) handleListHolds(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Holds.ListForWallet(r.Context(), chi.URLParam(r, "wid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"holds": list})
}

func (s *Server) handleCaptureHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      int64  `json:"amount,omitempty"`
		CaptureTxID string `json:"capture_tx_id,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	hold, err := s.deps.Holds.Capture(r.Context(), chi.URLParam(r, "id"), req.Amount, req.CaptureTxID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hold)
}

func (s *Server) handleVoidHold(w http.ResponseWriter, r *http.Request) {
	hold, err := s.deps.Holds.Void(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hold)
}
