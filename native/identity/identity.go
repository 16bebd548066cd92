// Package identity manages agent identities and their signing keys. Each
// agent has one active key plus zero or more previous keys still inside a
// rotation grace window; verification accepts any non-revoked key so in-flight
// mandates survive a routine rotation.
package identity

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Algorithm identifies the signature scheme bound to an agent key.
type Algorithm string

const (
	AlgorithmEd25519   Algorithm = "ed25519"
	AlgorithmECDSAP256 Algorithm = "ecdsa-p256"
)

// Valid reports whether the algorithm is supported.
func (a Algorithm) Valid() bool {
	return a == AlgorithmEd25519 || a == AlgorithmECDSAP256
}

// KeyState tracks a key through its rotation lifecycle.
type KeyState string

const (
	KeyActive   KeyState = "ACTIVE"
	KeyRotating KeyState = "ROTATING"
	KeyRevoked  KeyState = "REVOKED"
)

// AgentIdentity binds an agent to its signing domain. The domain on a mandate
// must match this record exactly; a mismatch is rejected before any key is
// tried.
type AgentIdentity struct {
	AgentID   string
	Algorithm Algorithm
	Domain    string
	CreatedAt time.Time
}

// Key is a single signing key tracked by the registry.
type Key struct {
	KeyID      string
	Algorithm  Algorithm
	State      KeyState
	Public     any
	CreatedAt  time.Time
	RotatedAt  time.Time
	GraceUntil time.Time
	RevokedAt  time.Time
}

var (
	ErrAgentNotFound    = errors.New("identity: agent not registered")
	ErrDomainMismatch   = errors.New("identity: mandate domain does not match agent domain")
	ErrNoValidKey       = errors.New("identity: no valid key verified the signature")
	ErrUnsupportedAlgo  = errors.New("identity: unsupported signature algorithm")
	ErrInvalidPublicKey = errors.New("identity: public key type does not match algorithm")
)

const defaultGraceWindow = 24 * time.Hour

type agentRecord struct {
	identity AgentIdentity
	keys     []*Key
}

// Registry is the explicit, process-owned key registry. Construct one per
// process root; tests construct fresh instances.
type Registry struct {
	mu          sync.RWMutex
	agents      map[string]*agentRecord
	graceWindow time.Duration
	nowFn       func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithGraceWindow overrides the rotation grace period.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.graceWindow = d
		}
	}
}

// WithClock overrides the registry time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.nowFn = now
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		agents:      make(map[string]*agentRecord),
		graceWindow: defaultGraceWindow,
		nowFn:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func validatePublic(algo Algorithm, public any) error {
	switch algo {
	case AlgorithmEd25519:
		if _, ok := public.(ed25519.PublicKey); !ok {
			return ErrInvalidPublicKey
		}
	case AlgorithmECDSAP256:
		key, ok := public.(*ecdsa.PublicKey)
		if !ok || key.Curve == nil || key.Curve.Params().Name != "P-256" {
			return ErrInvalidPublicKey
		}
	default:
		return ErrUnsupportedAlgo
	}
	return nil
}

func keyID(agentID string, public any, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%v|%d", agentID, public, createdAt.UnixNano())))
	return "key_" + hex.EncodeToString(sum[:8])
}

// Register records a new agent with its first active key.
func (r *Registry) Register(identity AgentIdentity, public any) (*Key, error) {
	agentID := strings.TrimSpace(identity.AgentID)
	if agentID == "" {
		return nil, fmt.Errorf("identity: agent id required")
	}
	if !identity.Algorithm.Valid() {
		return nil, ErrUnsupportedAlgo
	}
	if strings.TrimSpace(identity.Domain) == "" {
		return nil, fmt.Errorf("identity: domain required")
	}
	if err := validatePublic(identity.Algorithm, public); err != nil {
		return nil, err
	}
	now := r.nowFn()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	key := &Key{
		KeyID:     keyID(agentID, public, now),
		Algorithm: identity.Algorithm,
		State:     KeyActive,
		Public:    public,
		CreatedAt: now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agentID]; exists {
		return nil, fmt.Errorf("identity: agent %s already registered", agentID)
	}
	r.agents[agentID] = &agentRecord{identity: identity, keys: []*Key{key}}
	return cloneKey(key), nil
}

// Identity returns the registered identity record for an agent.
func (r *Registry) Identity(agentID string) (AgentIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[agentID]
	if !ok {
		return AgentIdentity{}, ErrAgentNotFound
	}
	return rec.identity, nil
}

// Rotate installs a new active key and moves the previous active key into the
// ROTATING state for the configured grace window.
func (r *Registry) Rotate(agentID string, public any) (*Key, error) {
	return r.rotate(agentID, public, false)
}

// EmergencyRotate installs a new active key and revokes the previous key
// immediately, with no grace period.
func (r *Registry) EmergencyRotate(agentID string, public any) (*Key, error) {
	return r.rotate(agentID, public, true)
}

func (r *Registry) rotate(agentID string, public any, emergency bool) (*Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	if err := validatePublic(rec.identity.Algorithm, public); err != nil {
		return nil, err
	}
	now := r.nowFn()
	for _, key := range rec.keys {
		if key.State != KeyActive {
			continue
		}
		key.RotatedAt = now
		if emergency {
			key.State = KeyRevoked
			key.RevokedAt = now
		} else {
			key.State = KeyRotating
			key.GraceUntil = now.Add(r.graceWindow)
		}
	}
	next := &Key{
		KeyID:     keyID(agentID, public, now),
		Algorithm: rec.identity.Algorithm,
		State:     KeyActive,
		Public:    public,
		CreatedAt: now,
	}
	rec.keys = append(rec.keys, next)
	return cloneKey(next), nil
}

// SweepExpiredGrace transitions ROTATING keys past their grace deadline to
// REVOKED and returns how many were revoked.
func (r *Registry) SweepExpiredGrace() int {
	now := r.nowFn()
	revoked := 0
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.agents {
		for _, key := range rec.keys {
			if key.State == KeyRotating && !now.Before(key.GraceUntil) {
				key.State = KeyRevoked
				key.RevokedAt = now
				revoked++
			}
		}
	}
	return revoked
}

// ValidKeys returns the keys currently usable for verification: the active key
// plus rotating keys still inside their grace window.
func (r *Registry) ValidKeys(agentID string) ([]*Key, error) {
	now := r.nowFn()
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	out := make([]*Key, 0, len(rec.keys))
	for _, key := range rec.keys {
		switch key.State {
		case KeyActive:
			out = append(out, cloneKey(key))
		case KeyRotating:
			if now.Before(key.GraceUntil) {
				out = append(out, cloneKey(key))
			}
		}
	}
	return out, nil
}

func cloneKey(k *Key) *Key {
	clone := *k
	return &clone
}
