package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignReturn computes the signature the gateway appends to the return URL.
func SignReturn(reference, status, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(reference + ":" + strings.ToLower(status)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyReturnSignature checks a gateway return. An empty secret disables
// verification for local development.
func VerifyReturnSignature(reference, status, signature, secret string) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return true
	}
	decoded, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil || len(decoded) == 0 {
		return false
	}
	expected, _ := hex.DecodeString(SignReturn(reference, status, secret))
	return hmac.Equal(expected, decoded)
}

// ParseReturnStatus maps the gateway status onto paid or failed. ok is false
// for a status the gateway does not send on return.
func ParseReturnStatus(status string) (paid bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "success", "succeeded":
		return true, true
	case "failed", "canceled", "cancelled", "declined":
		return false, true
	default:
		return false, false
	}
}
