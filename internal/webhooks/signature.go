package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Delivery headers set on every signed webhook POST.
const (
	HeaderSignature = "X-Signature"
	HeaderEventType = "X-Event-Type"
)

// SignHMAC returns the lowercase hex HMAC-SHA256 of body under secret,
// the value carried in the X-Signature header.
func SignHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether provided is a valid signature for body.
// Comparison is constant-time; a malformed hex string never verifies.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	got, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
