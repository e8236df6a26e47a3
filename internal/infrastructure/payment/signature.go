package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
)

const SignatureHeader = "Payment-Signature"

var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrMalformedEvent   = errors.New("malformed payment event")
)

// SignatureVerifier checks "t=<unix>,v1=<hex>" headers where v1 is
// HMAC-SHA256(secret, "<t>.<body>").
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	clock     clock.Clock
}

func NewSignatureVerifier(secret string, tolerance time.Duration, clk clock.Clock) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance, clock: clk}
}

func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: no signing secret configured", ErrInvalidSignature)
	}

	ts, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}
	if v.tolerance > 0 {
		age := v.clock.Now().Sub(ts)
		if age > v.tolerance || age < -v.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := computeSignature(v.secret, ts, payload)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

// Sign builds a header for payload. Used by tests and local tooling.
func Sign(secret string, payload []byte, ts time.Time) string {
	sig := computeSignature([]byte(secret), ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func computeSignature(secret []byte, ts time.Time, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseHeader(header string) (time.Time, [][]byte, error) {
	var (
		ts         time.Time
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			unix, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = time.Unix(unix, 0).UTC()
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if ts.IsZero() {
		return time.Time{}, nil, fmt.Errorf("%w: missing timestamp", ErrInvalidSignature)
	}
	if len(signatures) == 0 {
		return time.Time{}, nil, fmt.Errorf("%w: missing v1 signature", ErrInvalidSignature)
	}
	return ts, signatures, nil
}
