package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"strings"
)

// Verify checks the signature over message against every valid key for the
// agent and returns the key that verified it. The mandate domain must match
// the registered identity domain; a mismatch is a hard reject regardless of
// which keys exist.
func (r *Registry) Verify(agentID, domain string, message, signature []byte) (*Key, error) {
	ident, err := r.Identity(agentID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(domain), strings.TrimSpace(ident.Domain)) {
		return nil, ErrDomainMismatch
	}
	keys, err := r.ValidKeys(agentID)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if verifyWithKey(key, message, signature) {
			return key, nil
		}
	}
	return nil, ErrNoValidKey
}

// VerifyAgent is the context-taking form consumed by the payment pipeline.
func (r *Registry) VerifyAgent(_ context.Context, agentID, domain string, message, signature []byte) error {
	_, err := r.Verify(agentID, domain, message, signature)
	return err
}

func verifyWithKey(key *Key, message, signature []byte) bool {
	switch key.Algorithm {
	case AlgorithmEd25519:
		pub, ok := key.Public.(ed25519.PublicKey)
		if !ok {
			return false
		}
		return ed25519.Verify(pub, message, signature)
	case AlgorithmECDSAP256:
		pub, ok := key.Public.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(pub, digest[:], signature)
	default:
		return false
	}
}
