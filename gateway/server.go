// Package gateway exposes the platform over HTTP: mandate execution, holds,
// wallets, policies, escrows, webhook subscriptions, transaction helpers and
// the ledger, all under /api/v2.
package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sardis/gateway/middleware"
	"sardis/native/escrow"
	"sardis/native/holds"
	"sardis/native/identity"
	"sardis/native/ledger"
	"sardis/native/payments"
	"sardis/native/policy"
	"sardis/native/token"
	"sardis/native/wallet"
	"sardis/services/webhookd"
)

// PolicyRepository persists spending policies keyed by wallet.
type PolicyRepository interface {
	payments.PolicyStore
	PutPolicy(ctx context.Context, walletID string, p *policy.SpendingPolicy) error
}

// SettlementReader lists the persisted settlement rows for an escrow.
type SettlementReader interface {
	SettlementsForEscrow(ctx context.Context, escrowID string) ([]*escrow.Settlement, error)
}

// Config carries the transport-level settings of the API server.
type Config struct {
	Auth             middleware.AuthConfig
	CORS             middleware.CORSConfig
	PaymentRateLimit middleware.RateLimitConfig
	Info             PlatformInfo
}

// PlatformInfo is the deployment metadata served on /api/v2/info.
type PlatformInfo struct {
	Environment         string   `json:"environment"`
	ChainMode           string   `json:"chain_mode"`
	APIBaseURL          string   `json:"api_base_url,omitempty"`
	ERC4337Enabled      bool     `json:"erc4337_enabled"`
	ERC4337RolloutStage string   `json:"erc4337_rollout_stage,omitempty"`
	ERC4337Chains       []string `json:"erc4337_chains,omitempty"`
}

// Deps wires the domain services the handlers dispatch into.
type Deps struct {
	Payments     *payments.Service
	Orchestrator *payments.Orchestrator
	Executor     payments.ChainExecutorPort
	Tokens       *token.Registry
	Wallets      *wallet.Service
	Holds        *holds.Manager
	Policies     PolicyRepository
	PolicyEngine *policy.Engine
	Balances     policy.BalancePort
	PolicyState  policy.StatePort
	Ledger       *ledger.Ledger
	Escrows      *escrow.Engine
	Settlements  SettlementReader
	Webhooks     webhookd.Store
	Identity     *identity.Registry
	Logger       *slog.Logger
}

// Server is the HTTP front door.
type Server struct {
	deps    Deps
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	cors    func(http.Handler) http.Handler
	info    PlatformInfo
	logger  *slog.Logger
}

// NewServer builds the API server; the router is obtained from Router.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		deps:    deps,
		auth:    middleware.NewAuthenticator(cfg.Auth, logger),
		limiter: middleware.NewRateLimiter(cfg.PaymentRateLimit),
		cors:    middleware.CORS(cfg.CORS),
		info:    cfg.Info,
		logger:  logger,
	}
}

// Auth exposes the authenticator so operators can mint tokens.
func (s *Server) Auth() *middleware.Authenticator {
	return s.auth
}

// Router assembles the /api/v2 surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)
	r.Use(middleware.Metrics)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v2", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/info", s.handleInfo)

		api.Group(func(authed chi.Router) {
			authed.Use(s.auth.Middleware())

			authed.Get("/auth/me", s.handleAuthMe)

			authed.Group(func(pay chi.Router) {
				pay.Use(s.limiter.Middleware())
				pay.Post("/mandates/execute", s.handleExecuteMandate)
			})

			authed.Route("/holds", func(h chi.Router) {
				h.Post("/", s.handleCreateHold)
				h.Get("/{id}", s.handleGetHold)
				h.Post("/{id}/capture", s.handleCaptureHold)
				h.Post("/{id}/void", s.handleVoidHold)
				h.Get("/wallet/{wid}", s.handleListHolds)
			})

			authed.Route("/wallets", func(w chi.Router) {
				w.Post("/", s.handleCreateWallet)
				w.Get("/", s.handleListWallets)
				w.Get("/{id}", s.handleGetWallet)
				w.Post("/{id}/freeze", s.handleFreezeWallet)
				w.Post("/{id}/unfreeze", s.handleUnfreezeWallet)
			})

			authed.Route("/policies", func(p chi.Router) {
				p.Post("/apply", s.handleApplyPolicy)
				p.Post("/check", s.handleCheckPolicy)
				p.Get("/{agent_id}", s.handleGetPolicies)
			})

			authed.Route("/transactions", func(tx chi.Router) {
				tx.Post("/estimate-gas", s.handleEstimateGas)
				tx.Get("/tokens/{chain}", s.handleListTokens)
				tx.Get("/chains", s.handleListChains)
				tx.Post("/route", s.handleRouteTransaction)
				tx.Get("/status/{tx_id}", s.handleTransactionStatus)
			})

			authed.Route("/escrows", func(e chi.Router) {
				e.Post("/", s.handleCreateEscrow)
				e.Get("/{id}", s.handleGetEscrow)
				e.Post("/{id}/fund", s.handleFundEscrow)
				e.Post("/{id}/deliver", s.handleDeliverEscrow)
				e.Post("/{id}/release", s.handleReleaseEscrow)
				e.Post("/{id}/refund", s.handleRefundEscrow)
				e.Post("/{id}/dispute", s.handleDisputeEscrow)
				e.Get("/{id}/settlements", s.handleEscrowSettlements)
				e.Get("/agent/{agent_id}", s.handleListEscrows)
			})

			authed.Route("/webhooks", func(wh chi.Router) {
				wh.Post("/", s.handleCreateWebhook)
				wh.Get("/{id}", s.handleGetWebhook)
				wh.Get("/{id}/attempts", s.handleWebhookAttempts)
			})

			authed.Route("/agents", func(a chi.Router) {
				a.Post("/", s.handleRegisterAgent)
				a.Post("/{id}/rotate", s.handleRotateAgentKey)
			})

			authed.Get("/ledger/recent", s.handleRecentLedger)
		})
	})

	return r
}
