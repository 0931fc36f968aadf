package receipts_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	receipts "github.com/x402-foundation/receipt-verifier"
	"github.com/x402-foundation/receipt-verifier/receipttest"
)

func TestGenerateReceiptSecret(t *testing.T) {
	nonce1 := bytes.Repeat([]byte{1}, receipts.NonceLength)
	nonce2 := bytes.Repeat([]byte{2}, receipts.NonceLength)

	secret := receipts.GenerateReceiptSecret(testSeed, nonce1)
	assert.Len(t, secret, 32)

	// Deterministic
	assert.Equal(t, secret, receipts.GenerateReceiptSecret(testSeed, nonce1))

	// Bound to both nonce and seed
	assert.NotEqual(t, secret, receipts.GenerateReceiptSecret(testSeed, nonce2))
	assert.NotEqual(t, secret, receipts.GenerateReceiptSecret(make([]byte, 32), nonce1))

	// Fixed construction shared with issuers
	mac := hmac.New(sha256.New, testSeed)
	mac.Write([]byte("receipt_secret"))
	mac.Write(nonce1)
	assert.Equal(t, mac.Sum(nil), secret)
}

func TestVerifyReceiptHMAC(t *testing.T) {
	nonce := receipttest.RandomNonce()
	secret := receipttest.SecretFor(testSeed, nonce)
	raw := receipttest.Create(receipttest.Options{Nonce: nonce, StreamID: 1, TotalReceived: 10, Secret: secret})

	r, err := receipts.DecodeReceipt(raw)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.True(t, receipts.VerifyReceiptHMAC(r, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, receipts.VerifyReceiptHMAC(r, receipttest.SecretFor(make([]byte, 32), nonce)))
	})

	t.Run("tampered amount", func(t *testing.T) {
		tampered := append([]byte(nil), raw...)
		tampered[25]++
		tr, err := receipts.DecodeReceipt(tampered)
		require.NoError(t, err)
		assert.False(t, receipts.VerifyReceiptHMAC(tr, secret))
	})

	t.Run("tampered tag", func(t *testing.T) {
		tampered := append([]byte(nil), raw...)
		tampered[receipts.Length-1] ^= 0xff
		tr, err := receipts.DecodeReceipt(tampered)
		require.NoError(t, err)
		assert.False(t, receipts.VerifyReceiptHMAC(tr, secret))
	})
}
