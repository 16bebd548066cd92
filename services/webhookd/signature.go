package webhookd

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far a delivery timestamp may drift from the
// verifier's clock.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMalformedSignature = errors.New("webhookd: malformed signature header")
	ErrTimestampOutside   = errors.New("webhookd: timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("webhookd: signature mismatch")
)

// Sign produces the delivery signature header: t=<unix>,v1=<hex>. The HMAC
// covers "<t>.<payload>" so the timestamp cannot be swapped after signing.
func Sign(secret string, t time.Time, payload []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a received signature header against the payload. Both the
// timestamp window and the constant-time HMAC comparison must pass.
func Verify(secret, header string, payload []byte, now time.Time, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrMalformedSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	sent := time.Unix(unix, 0)
	drift := now.Sub(sent)
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return ErrTimestampOutside
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	want, err := hex.DecodeString(v1)
	if err != nil {
		return ErrMalformedSignature
	}
	if !hmac.Equal(want, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}
