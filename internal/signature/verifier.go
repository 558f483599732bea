// Package signature validates gateway webhook and payment-confirmation
// signatures. Verification always runs over the exact raw bytes the gateway
// signed; re-serializing parsed JSON would break the hash.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhook reports whether sig is a valid HMAC-SHA256 of payload under
// secret. It returns false for a missing secret or signature and never panics.
func VerifyWebhook(payload []byte, sig string, secret string) bool {
	if secret == "" || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyPayment validates the gateway's payment-confirmation triple. The
// signed message is the order id and payment id joined by a pipe.
func VerifyPayment(orderID, paymentID, sig string, secret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifyWebhook([]byte(orderID+"|"+paymentID), sig, secret)
}
