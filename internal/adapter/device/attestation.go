// Package device turns a signed report from the mobile client into the
// biometric capability the authorization machine consumes.
package device

import (
	"context"
	"math"
	"time"

	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

const defaultMaxAge = 2 * time.Minute

// Attestation is what the device reports after running the local biometric
// prompt. Signature is HMAC-SHA256 over the canonical attestation string.
type Attestation struct {
	DeviceID    string
	HasHardware bool
	Enrolled    bool
	Passed      bool
	Timestamp   int64 // unix seconds
	Nonce       string
	Signature   string
}

// Verifier checks attestations against the shared device secret.
type Verifier struct {
	sig    ports.SignatureService
	nonces ports.NonceStore
	secret string
	maxAge time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewVerifier creates an attestation verifier.
func NewVerifier(sig ports.SignatureService, nonces ports.NonceStore, secret string, maxAge time.Duration, log zerolog.Logger) *Verifier {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Verifier{
		sig:    sig,
		nonces: nonces,
		secret: secret,
		maxAge: maxAge,
		log:    log,
		now:    time.Now,
	}
}

// Capability wraps a single attestation as a ports.BiometricCapability.
func (v *Verifier) Capability(a Attestation) ports.BiometricCapability {
	return &capability{verifier: v, att: a}
}

type capability struct {
	verifier *Verifier
	att      Attestation
}

func (c *capability) HasHardware(context.Context) (bool, error) { return c.att.HasHardware, nil }

func (c *capability) IsEnrolled(context.Context) (bool, error) { return c.att.Enrolled, nil }

// Challenge reports the device's outcome once the attestation is proven
// fresh, authentic and unused.
// Pipeline: Check timestamp -> Verify signature -> Check nonce.
func (c *capability) Challenge(ctx context.Context, prompt string) (bool, error) {
	v, a := c.verifier, c.att
	l := v.log.With().Str("device_id", a.DeviceID).Logger()

	if a.DeviceID == "" || a.Nonce == "" || a.Signature == "" {
		l.Warn().Msg("attestation missing fields")
		return false, apperror.ErrInvalidAttestation()
	}

	drift := math.Abs(float64(v.now().Unix() - a.Timestamp))
	if drift > v.maxAge.Seconds() {
		l.Warn().Float64("drift_seconds", drift).Msg("attestation expired")
		return false, apperror.ErrInvalidAttestation()
	}

	payload := v.sig.BuildAttestationString(a.DeviceID, a.HasHardware, a.Enrolled, a.Passed, a.Timestamp, a.Nonce)
	if !v.sig.Verify(v.secret, payload, a.Signature) {
		l.Warn().Msg("attestation signature mismatch")
		return false, apperror.ErrInvalidAttestation()
	}

	fresh, err := v.nonces.CheckAndSet(ctx, a.DeviceID, a.Nonce, 2*v.maxAge)
	if err != nil {
		return false, err
	}
	if !fresh {
		l.Warn().Str("nonce", a.Nonce).Msg("attestation nonce replayed")
		return false, apperror.ErrInvalidAttestation()
	}

	l.Debug().Str("prompt", prompt).Bool("passed", a.Passed).Msg("attestation accepted")
	return a.Passed, nil
}
