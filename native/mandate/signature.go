package mandate

import "crypto/sha256"

// SigningPayload binds a mandate's serialized body to its domain, nonce and
// purpose: SHA256(domain) | SHA256(nonce) | SHA256(purpose) | body. Hashing
// the three context fields gives them fixed width so no delimiter ambiguity
// can shift bytes between fields.
func SigningPayload(domain, nonce, purpose string, body []byte) []byte {
	out := make([]byte, 0, 3*sha256.Size+len(body))
	for _, field := range []string{domain, nonce, purpose} {
		sum := sha256.Sum256([]byte(field))
		out = append(out, sum[:]...)
	}
	return append(out, body...)
}

// PaymentSigningPayload assembles the full signed payload for a payment
// mandate.
func PaymentSigningPayload(p PaymentMandate) ([]byte, error) {
	body, err := p.SigningBytes()
	if err != nil {
		return nil, err
	}
	return SigningPayload(p.Domain, p.Nonce, p.Purpose, body), nil
}
