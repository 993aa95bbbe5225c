package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// SignatureVersion is the Slack request signing scheme version.
const SignatureVersion = "v0"

// DefaultReplayWindow is the maximum accepted skew between a request's
// timestamp and the verifier's clock.
const DefaultReplayWindow = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing slack signature")
	ErrInvalidSignature = errors.New("invalid slack signature")
	ErrStaleTimestamp   = errors.New("stale slack timestamp")
)

// SignatureVerifier checks Slack's v0 HMAC-SHA256 request signatures.
type SignatureVerifier struct {
	window time.Duration
	logger *slog.Logger
}

// VerifierConfig configures a SignatureVerifier.
type VerifierConfig struct {
	ReplayWindow time.Duration
	Logger       *slog.Logger
}

// NewSignatureVerifier creates a verifier. A zero window means DefaultReplayWindow.
func NewSignatureVerifier(cfg VerifierConfig) *SignatureVerifier {
	if cfg.ReplayWindow <= 0 {
		cfg.ReplayWindow = DefaultReplayWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SignatureVerifier{window: cfg.ReplayWindow, logger: cfg.Logger}
}

// Verify reports whether signature authenticates body at timestamp.
func (v *SignatureVerifier) Verify(body []byte, signature, timestamp, secret string, now time.Time) bool {
	if err := v.Check(body, signature, timestamp, secret, now); err != nil {
		v.logger.Warn("slack signature rejected", "reason", err)
		return false
	}
	return true
}

// Check is Verify with the rejection reason.
func (v *SignatureVerifier) Check(body []byte, signature, timestamp, secret string, now time.Time) error {
	if signature == "" || timestamp == "" || secret == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	// Compared in whole seconds so far-off timestamps cannot overflow a Duration.
	n, w := now.Unix(), int64(v.window/time.Second)
	if ts < n-w || ts > n+w {
		return ErrStaleTimestamp
	}

	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the v0 signature header value for body sent at timestamp.
// The base string is "v0:<timestamp>:<body>" over the raw bytes.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(SignatureVersion + ":" + timestamp + ":"))
	_, _ = mac.Write(body)
	return SignatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
