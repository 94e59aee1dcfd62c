package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyAcceptsValidPaymentSignature(t *testing.T) {
	secret := "test-key-secret"
	msg := PaymentMessage("order_A1", "pay_B2")
	sig := Sign(msg, secret)

	if !Verify(msg, sig, secret) {
		t.Fatalf("valid signature rejected")
	}
}

func TestVerifyMatchesReferenceHMAC(t *testing.T) {
	secret := "test-key-secret"
	msg := []byte("order_A1|pay_B2")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	reference := hex.EncodeToString(mac.Sum(nil))

	if !Verify(msg, reference, secret) {
		t.Fatalf("reference hmac rejected")
	}
}

func TestVerifyRejectsAnySingleByteMutation(t *testing.T) {
	secret := "test-key-secret"
	orderID, paymentID := "order_A1", "pay_B2"
	msg := PaymentMessage(orderID, paymentID)
	sig := Sign(msg, secret)

	// Tampered signature.
	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		if Verify(msg, string(mutated), secret) {
			t.Fatalf("mutated signature accepted at byte %d", i)
		}
	}

	// Tampered order id.
	if Verify(PaymentMessage("order_A2", paymentID), sig, secret) {
		t.Fatalf("signature accepted for different order id")
	}

	// Tampered payment id.
	if Verify(PaymentMessage(orderID, "pay_B3"), sig, secret) {
		t.Fatalf("signature accepted for different payment id")
	}

	// Wrong secret.
	if Verify(msg, sig, "other-secret") {
		t.Fatalf("signature accepted under wrong secret")
	}
}

func TestVerifyWebhookBodyIsByteExact(t *testing.T) {
	secret := "webhook-secret"
	raw := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	sig := Sign(raw, secret)

	if !Verify(raw, sig, secret) {
		t.Fatalf("raw body signature rejected")
	}

	// A semantically identical but re-serialized body (extra space) must fail.
	reserialized := []byte(`{"event": "payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	if Verify(reserialized, sig, secret) {
		t.Fatalf("re-serialized body accepted")
	}
}

func TestVerifyRejectsEmptyInputs(t *testing.T) {
	msg := []byte("order|payment")
	if Verify(msg, "", "secret") {
		t.Fatalf("empty signature accepted")
	}
	if Verify(msg, Sign(msg, "secret"), "") {
		t.Fatalf("empty secret accepted")
	}
}
