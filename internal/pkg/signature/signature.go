// Package signature verifies Razorpay HMAC-SHA256 signatures.
//
// Two message shapes exist. The redirect flow signs "order_id|payment_id"
// with the API key secret. The webhook flow signs the raw request body with
// the dedicated webhook secret; the body must be hashed byte-for-byte as it
// arrived, never re-serialized.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verify reports whether sig is a valid hex HMAC-SHA256 of message under
// secret. The comparison is constant time.
func Verify(message []byte, sig, secret string) bool {
	if len(sig) == 0 || len(secret) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}

// PaymentMessage builds the redirect-flow message for the given gateway
// order and payment identifiers.
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// Sign is the inverse of Verify, used by tests and dev tooling to produce
// valid signatures.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
