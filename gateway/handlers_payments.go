package gateway

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"sardis/errs"
	"sardis/native/mandate"
	"sardis/native/payments"
)

type executeRequest struct {
	Intent   mandate.IntentMandate  `json:"intent"`
	Cart     mandate.CartMandate    `json:"cart"`
	Mandate  mandate.PaymentMandate `json:"mandate"`
	WalletID string                 `json:"wallet_id"`
	Context  struct {
		Scope            string   `json:"scope,omitempty"`
		MerchantID       string   `json:"merchant_id,omitempty"`
		MerchantCategory string   `json:"merchant_category,omitempty"`
		MCC              string   `json:"mcc,omitempty"`
		FeeMinor         int64    `json:"fee_minor,omitempty"`
		DriftScore       *float64 `json:"drift_score,omitempty"`
	} `json:"context"`
}

type executeResponse struct {
	PaymentID   string `json:"payment_id"`
	LedgerTxID  string `json:"ledger_tx_id,omitempty"`
	ChainTxHash string `json:"chain_tx_hash,omitempty"`
	Chain       string `json:"chain"`
	Status      string `json:"status"`
}

func (s *Server) handleExecuteMandate(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Mandate.WalletID = req.WalletID
	chain := &mandate.Chain{Intent: req.Intent, Cart: req.Cart, Payment: req.Mandate}

	pctx := payments.Context{
		AgentID:          req.Mandate.Issuer,
		Scope:            req.Context.Scope,
		MerchantID:       req.Context.MerchantID,
		MerchantCategory: req.Context.MerchantCategory,
		MCC:              req.Context.MCC,
		FeeMinor:         req.Context.FeeMinor,
		DriftScore:       req.Context.DriftScore,
	}
	payment, err := s.deps.Payments.Submit(r.Context(), chain, pctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, executeResponse{
		PaymentID:   payment.PaymentID,
		LedgerTxID:  payment.LedgerTx,
		ChainTxHash: payment.TxHash,
		Chain:       payment.Chain,
		Status:      string(payment.Status),
	})
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	payment, err := s.deps.Orchestrator.Get(r.Context(), chi.URLParam(r, "tx_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payment)
}

func (s *Server) handleEstimateGas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chain string `json:"chain"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	gas, err := s.deps.Executor.EstimateGas(r.Context(), req.Chain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"chain": req.Chain, "gas_estimate": gas})
}

func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"chains": s.deps.Executor.SupportedChains()})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	chain := chi.URLParam(r, "chain")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"chain":  chain,
		"tokens": s.deps.Tokens.TokensOnChain(chain),
	})
}

type routeRequest struct {
	Token          string `json:"token"`
	AmountMinor    int64  `json:"amount_minor"`
	PreferredChain string `json:"preferred_chain,omitempty"`
}

type routeResponse struct {
	Chain           string `json:"chain"`
	ContractAddress string `json:"contract_address"`
	GasEstimate     uint64 `json:"gas_estimate"`
	EstimatedAt     string `json:"estimated_at"`
}

// handleRouteTransaction picks the cheapest supported chain that carries the
// token; an explicit preference wins when it is viable.
func (s *Server) handleRouteTransaction(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AmountMinor <= 0 {
		s.writeError(w, r, errs.Validation("amount must be positive"))
		return
	}

	supported := make(map[string]bool)
	for _, chain := range s.deps.Executor.SupportedChains() {
		supported[chain] = true
	}
	var candidates []string
	for chain := range supported {
		if _, err := s.deps.Tokens.ContractAddress(req.Token, chain); err == nil {
			candidates = append(candidates, chain)
		}
	}
	if len(candidates) == 0 {
		s.writeError(w, r, errs.Newf(errs.CodeValidation, "token %s not available on any supported chain", req.Token))
		return
	}
	sort.Strings(candidates)

	best := ""
	var bestGas uint64
	if req.PreferredChain != "" && supported[req.PreferredChain] {
		for _, chain := range candidates {
			if chain == req.PreferredChain {
				best = chain
				bestGas, _ = s.deps.Executor.EstimateGas(r.Context(), chain)
			}
		}
	}
	if best == "" {
		for _, chain := range candidates {
			gas, err := s.deps.Executor.EstimateGas(r.Context(), chain)
			if err != nil {
				continue
			}
			if best == "" || gas < bestGas {
				best, bestGas = chain, gas
			}
		}
	}
	if best == "" {
		s.writeError(w, r, errs.New(errs.CodeUpstreamUnavailable, "no chain available for routing"))
		return
	}
	contract, err := s.deps.Tokens.ContractAddress(req.Token, best)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, routeResponse{
		Chain:           best,
		ContractAddress: contract,
		GasEstimate:     bestGas,
		EstimatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}
