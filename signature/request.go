package signature

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Header names carrying the request signature.
const (
	HeaderTimestamp = "X-Wormhole-Timestamp"
	HeaderSignature = "X-Wormhole-Signature"
)

// DefaultTolerance is the accepted clock skew between signer and verifier.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMissingSignature is returned when the signature headers are absent or malformed.
	ErrMissingSignature = errors.New("signature: missing signature headers")

	// ErrStaleTimestamp is returned when the signed timestamp is outside the tolerance.
	ErrStaleTimestamp = errors.New("signature: timestamp outside tolerance")

	// ErrInvalidSignature is returned when the signature does not match the body.
	ErrInvalidSignature = errors.New("signature: invalid signature")
)

// SignRequest stamps req with the timestamp and signature of body.
func SignRequest(req *http.Request, body []byte, secret string, now time.Time) {
	ts := now.Unix()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Sign(body, secret, ts))
}

// VerifyRequest checks the signature headers of r against body. A tolerance
// of 0 uses DefaultTolerance.
func VerifyRequest(r *http.Request, body []byte, secret string, tolerance time.Duration, now time.Time) error {
	raw := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if raw == "" || sig == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ErrMissingSignature
	}

	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > tolerance || skew < -tolerance {
		return ErrStaleTimestamp
	}

	if !Verify(body, secret, ts, sig) {
		return ErrInvalidSignature
	}
	return nil
}
