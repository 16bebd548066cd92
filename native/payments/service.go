package payments

import (
	"context"
	"log/slog"
	"time"

	"sardis/errs"
	"sardis/native/mandate"
	"sardis/observability"
)

const defaultReplayTTL = 24 * time.Hour

// Service is the verification front door. It validates the mandate chain,
// checks the payment signature against the issuing agent's keys, claims the
// mandate id in the replay cache and only then hands off to the orchestrator.
type Service struct {
	orchestrator *Orchestrator
	verifier     SignatureVerifier
	replay       ReplayPort
	replayTTL    time.Duration
	log          *slog.Logger
	nowFn        func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithReplayTTL overrides how long a claimed mandate id stays unusable.
func WithReplayTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.replayTTL = ttl
		}
	}
}

// WithServiceLogger overrides the default logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithServiceClock overrides the time source, for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService wires verification ahead of the orchestrator.
func NewService(orchestrator *Orchestrator, verifier SignatureVerifier, replay ReplayPort, opts ...ServiceOption) *Service {
	s := &Service{
		orchestrator: orchestrator,
		verifier:     verifier,
		replay:       replay,
		replayTTL:    defaultReplayTTL,
		log:          slog.Default(),
		nowFn:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit verifies and executes a full mandate chain.
func (s *Service) Submit(ctx context.Context, chain *mandate.Chain, pctx Context) (*Payment, error) {
	if chain == nil {
		return nil, errs.Validation("nil mandate chain")
	}
	now := s.nowFn()
	if err := chain.Validate(now); err != nil {
		return nil, err
	}
	pm := chain.Payment

	payload, err := mandate.PaymentSigningPayload(pm)
	if err != nil {
		return nil, errs.Wrap(errs.CodeValidation, "payment signing payload", err)
	}
	if err := s.verifier.VerifyAgent(ctx, pm.Issuer, pm.Domain, payload, pm.Proof); err != nil {
		return nil, errs.Wrap(errs.CodeUnauthorized, "payment signature", err)
	}

	ttl := s.replayTTL
	if remaining := pm.ExpiresAt.Sub(now); remaining > ttl {
		ttl = remaining
	}
	claimed, err := s.replay.Claim(ctx, pm.MandateID, ttl)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.log.Warn("replay rejected", "mandate_id", pm.MandateID, "issuer", pm.Issuer)
		observability.Payments().RecordReplay()
		return nil, errs.ReplayDetected(pm.MandateID)
	}

	if pctx.AgentID == "" {
		pctx.AgentID = pm.Issuer
	}
	if pctx.Scope == "" && len(chain.Intent.Scope) > 0 {
		pctx.Scope = chain.Intent.Scope[0]
	}
	if pctx.MerchantID == "" {
		pctx.MerchantID = chain.Cart.MerchantDomain
	}
	return s.orchestrator.Execute(ctx, &pm, pctx)
}
