package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secretKey, payload) in constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// BuildAttestationString constructs the canonical payload a device signs when
// it reports a biometric outcome.
// Format: DEVICE|HARDWARE|ENROLLED|PASSED|TIMESTAMP|NONCE
func (s *HMACSignatureService) BuildAttestationString(deviceID string, hasHardware, enrolled, passed bool, timestamp int64, nonce string) string {
	return fmt.Sprintf("%s|%t|%t|%t|%d|%s", deviceID, hasHardware, enrolled, passed, timestamp, nonce)
}
