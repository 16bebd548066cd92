package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Receipt is the deterministic, Merkle-anchored proof of a policy decision.
// The policy hash reflects policy intent only: runtime counters are excluded
// from canonicalization, so the hash is invariant under RecordSpend and window
// resets.
type Receipt struct {
	DecisionID   string    `json:"decision_id"`
	Decision     bool      `json:"decision"`
	Reason       string    `json:"reason"`
	PolicyHash   string    `json:"policy_hash"`
	ContextHash  string    `json:"context_hash"`
	DecisionHash string    `json:"decision_hash"`
	MerkleRoot   string    `json:"merkle_root"`
	AuditAnchor  string    `json:"audit_anchor"`
	IssuedAt     time.Time `json:"issued_at"`
}

// decisionRecord is the hashed decision leaf.
type decisionRecord struct {
	DecisionID  string `json:"decision_id"`
	PolicyHash  string `json:"policy_hash"`
	Decision    bool   `json:"decision"`
	Reason      string `json:"reason"`
	ContextHash string `json:"context_hash"`
}

// decisionContext captures the evaluation inputs the engine consumed.
type decisionContext struct {
	WalletID         string   `json:"wallet_id"`
	AmountMinor      int64    `json:"amount_minor"`
	FeeMinor         int64    `json:"fee_minor"`
	Chain            string   `json:"chain"`
	Token            string   `json:"token"`
	MerchantID       string   `json:"merchant_id,omitempty"`
	MerchantCategory string   `json:"merchant_category,omitempty"`
	MCC              string   `json:"mcc,omitempty"`
	Scope            string   `json:"scope"`
	DriftScore       *float64 `json:"drift_score,omitempty"`
}

func hashJSON(v any) ([32]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return [32]byte{}, fmt.Errorf("policy attest: marshal: %w", err)
	}
	return sha256.Sum256(raw), nil
}

// ComputePolicyHash returns the canonical SHA-256 of the policy's intent
// fields.
func ComputePolicyHash(p *SpendingPolicy) (string, error) {
	sum, err := hashJSON(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// merkleRoot folds leaves into a pairwise-sorted SHA-256 Merkle root so
// inclusion proofs do not depend on leaf order.
func merkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return sha256.Sum256(nil)
	}
	level := append([][32]byte(nil), leaves...)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			left, right := level[i], level[i+1]
			if bytes.Compare(left[:], right[:]) > 0 {
				left, right = right, left
			}
			next = append(next, sha256.Sum256(append(left[:], right[:]...)))
		}
		level = next
	}
	return level[0]
}

// Attest produces the receipt for one evaluation.
func Attest(p *SpendingPolicy, in Input, decision Decision, now time.Time) (*Receipt, error) {
	policyLeaf, err := hashJSON(p)
	if err != nil {
		return nil, err
	}
	contextLeaf, err := hashJSON(decisionContext{
		WalletID:         in.WalletID,
		AmountMinor:      in.AmountMinor,
		FeeMinor:         in.FeeMinor,
		Chain:            in.Chain,
		Token:            in.Token,
		MerchantID:       in.MerchantID,
		MerchantCategory: in.MerchantCategory,
		MCC:              in.MCC,
		Scope:            in.Scope,
		DriftScore:       in.DriftScore,
	})
	if err != nil {
		return nil, err
	}
	decisionID := "dec_" + uuid.NewString()
	decisionLeaf, err := hashJSON(decisionRecord{
		DecisionID:  decisionID,
		PolicyHash:  hex.EncodeToString(policyLeaf[:]),
		Decision:    decision.Allowed,
		Reason:      decision.Reason,
		ContextHash: hex.EncodeToString(contextLeaf[:]),
	})
	if err != nil {
		return nil, err
	}
	root := merkleRoot([][32]byte{policyLeaf, contextLeaf, decisionLeaf})
	rootHex := hex.EncodeToString(root[:])
	return &Receipt{
		DecisionID:   decisionID,
		Decision:     decision.Allowed,
		Reason:       decision.Reason,
		PolicyHash:   hex.EncodeToString(policyLeaf[:]),
		ContextHash:  hex.EncodeToString(contextLeaf[:]),
		DecisionHash: hex.EncodeToString(decisionLeaf[:]),
		MerkleRoot:   rootHex,
		AuditAnchor:  "merkle::" + rootHex,
		IssuedAt:     now,
	}, nil
}
