package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is where payvault puts the hex-encoded HMAC-SHA256 of
// the raw request body.
const SignatureHeader = "X-Payvault-Signature"

// VerifySignature reports whether the given signature matches the HMAC of
// the raw body under the shared secret. Must be checked before the body
// is parsed; comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(strings.TrimPrefix(signature, "sha256="))

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), expected)
}
