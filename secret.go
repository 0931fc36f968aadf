package receipts

import (
	"crypto/hmac"
	"crypto/sha256"
)

// ReceiptSecretGenerationString is prepended to the nonce before it is
// keyed with the server seed. Issuers handing out receipt secrets must use
// the same construction.
const ReceiptSecretGenerationString = "receipt_secret"

// GenerateReceiptSecret derives the per-nonce receipt key as
// HMAC-SHA256(seed, "receipt_secret" || nonce).
func GenerateReceiptSecret(seed []byte, nonce []byte) []byte {
	msg := make([]byte, 0, len(ReceiptSecretGenerationString)+len(nonce))
	msg = append(msg, ReceiptSecretGenerationString...)
	msg = append(msg, nonce...)
	return hmacSHA256(seed, msg)
}

// ReceiptTag computes the tag an issuer appends to a receipt body.
func ReceiptTag(secret []byte, body []byte) []byte {
	return hmacSHA256(secret, body)
}

// VerifyReceiptHMAC recomputes the receipt tag with secret and compares it to
// the embedded tag in constant time. A mismatch is reported as false.
func VerifyReceiptHMAC(r *Receipt, secret []byte) bool {
	expected := ReceiptTag(secret, r.Body())
	return hmac.Equal(expected, r.Tag[:])
}

func hmacSHA256(key []byte, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}
