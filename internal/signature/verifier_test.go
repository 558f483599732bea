package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/smallbiznis/paygate/internal/signature"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"id":"pay_1"}}}`)
	secret := "whsec_test"
	sig := sign(payload, secret)

	if !signature.VerifyWebhook(payload, sig, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if signature.VerifyWebhook(payload, sig, "other_secret") {
		t.Fatal("expected wrong secret to fail")
	}
	if signature.VerifyWebhook(payload, "", secret) {
		t.Fatal("expected missing signature to fail")
	}
	if signature.VerifyWebhook(payload, sig, "") {
		t.Fatal("expected missing secret to fail")
	}
	if signature.VerifyWebhook(payload, "not-hex!", secret) {
		t.Fatal("expected malformed signature to fail")
	}
}

func TestVerifyWebhookSingleByteMutation(t *testing.T) {
	payload := []byte(`{"event":"order.paid"}`)
	secret := "whsec_test"
	sig := sign(payload, secret)

	mutated := append([]byte(nil), payload...)
	mutated[0] ^= 0x01
	if signature.VerifyWebhook(mutated, sig, secret) {
		t.Fatal("expected mutated payload to fail")
	}

	badSig := []byte(sig)
	if badSig[0] == '0' {
		badSig[0] = '1'
	} else {
		badSig[0] = '0'
	}
	if signature.VerifyWebhook(payload, string(badSig), secret) {
		t.Fatal("expected mutated signature to fail")
	}
}

func TestVerifyPayment(t *testing.T) {
	secret := "key_secret"
	sig := sign([]byte("order_1|pay_1"), secret)

	if !signature.VerifyPayment("order_1", "pay_1", sig, secret) {
		t.Fatal("expected valid confirmation to verify")
	}
	if signature.VerifyPayment("order_1", "pay_2", sig, secret) {
		t.Fatal("expected mismatched payment id to fail")
	}
	if signature.VerifyPayment("", "pay_1", sig, secret) {
		t.Fatal("expected empty order id to fail")
	}
}
