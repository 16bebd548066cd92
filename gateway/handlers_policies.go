package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sardis/errs"
	"sardis/native/policy"
)

type applyPolicyRequest struct {
	WalletID string                 `json:"wallet_id"`
	Policy   *policy.SpendingPolicy `json:"policy"`
}

func (s *Server) handleApplyPolicy(w http.ResponseWriter, r *http.Request) {
	var req applyPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.WalletID == "" || req.Policy == nil {
		s.writeError(w, r, errs.Validation("wallet_id and policy required"))
		return
	}
	if req.Policy.PolicyID == "" {
		s.writeError(w, r, errs.Validation("policy_id required"))
		return
	}
	if err := s.deps.Policies.PutPolicy(r.Context(), req.WalletID, req.Policy); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"policy_id": req.Policy.PolicyID, "wallet_id": req.WalletID})
}

type checkPolicyRequest struct {
	WalletID         string   `json:"wallet_id"`
	AmountMinor      int64    `json:"amount_minor"`
	FeeMinor         int64    `json:"fee_minor,omitempty"`
	Chain            string   `json:"chain"`
	Token            string   `json:"token"`
	MerchantID       string   `json:"merchant_id,omitempty"`
	MerchantCategory string   `json:"merchant_category,omitempty"`
	MCC              string   `json:"mcc,omitempty"`
	Scope            string   `json:"scope,omitempty"`
	DriftScore       *float64 `json:"drift_score,omitempty"`
}

// handleCheckPolicy runs a dry evaluation: no spend is recorded and no
// attestation is anchored.
func (s *Server) handleCheckPolicy(w http.ResponseWriter, r *http.Request) {
	var req checkPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pol, err := s.deps.Policies.PolicyForWallet(r.Context(), req.WalletID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	decision, err := s.deps.PolicyEngine.Evaluate(r.Context(), pol, policy.Input{
		WalletID:         req.WalletID,
		AmountMinor:      req.AmountMinor,
		FeeMinor:         req.FeeMinor,
		Chain:            req.Chain,
		Token:            req.Token,
		MerchantID:       req.MerchantID,
		MerchantCategory: req.MerchantCategory,
		MCC:              req.MCC,
		Scope:            req.Scope,
		DriftScore:       req.DriftScore,
		Balance:          s.deps.Balances,
		State:            s.deps.PolicyState,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

// handleGetPolicies returns the active policy of every wallet the agent owns.
func (s *Server) handleGetPolicies(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")
	wallets, err := s.deps.Wallets.ListForAgent(r.Context(), agentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	policies := make(map[string]*policy.SpendingPolicy)
	for _, wlt := range wallets {
		pol, err := s.deps.Policies.PolicyForWallet(r.Context(), wlt.WalletID)
		if err != nil {
			if errs.IsCode(err, errs.CodeNotFound) {
				continue
			}
			s.writeError(w, r, err)
			return
		}
		policies[wlt.WalletID] = pol
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agent_id": agentID, "policies": policies})
}
