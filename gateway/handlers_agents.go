package gateway

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sardis/errs"
	"sardis/native/identity"
)

type registerAgentRequest struct {
	AgentID   string `json:"agent_id"`
	Algorithm string `json:"algorithm"`
	Domain    string `json:"domain"`
	PublicKey string `json:"public_key"`
}

func decodePublicKey(algorithm identity.Algorithm, raw string) (any, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errs.Wrap(errs.CodeValidation, "decode public key", err)
	}
	switch algorithm {
	case identity.AlgorithmEd25519:
		if len(decoded) != ed25519.PublicKeySize {
			return nil, errs.Validation("ed25519 public key must be 32 bytes")
		}
		return ed25519.PublicKey(decoded), nil
	default:
		return nil, errs.Newf(errs.CodeValidation, "unsupported algorithm %q for key upload", algorithm)
	}
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	algorithm := identity.Algorithm(req.Algorithm)
	public, err := decodePublicKey(algorithm, req.PublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.deps.Identity.Register(identity.AgentIdentity{
		AgentID:   req.AgentID,
		Algorithm: algorithm,
		Domain:    req.Domain,
		CreatedAt: time.Now().UTC(),
	}, public)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeValidation, "register agent", err))
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"agent_id": req.AgentID,
		"key_id":   key.KeyID,
		"state":    key.State,
	})
}

type rotateKeyRequest struct {
	PublicKey string `json:"public_key"`
	Emergency bool   `json:"emergency,omitempty"`
}

func (s *Server) handleRotateAgentKey(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req rotateKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ident, err := s.deps.Identity.Identity(agentID)
	if err != nil {
		s.writeError(w, r, errs.NotFound("agent", agentID))
		return
	}
	public, err := decodePublicKey(ident.Algorithm, req.PublicKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var key *identity.Key
	if req.Emergency {
		key, err = s.deps.Identity.EmergencyRotate(agentID, public)
	} else {
		key, err = s.deps.Identity.Rotate(agentID, public)
	}
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeConflict, "rotate key", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":  agentID,
		"key_id":    key.KeyID,
		"state":     key.State,
		"emergency": req.Emergency,
	})
}
