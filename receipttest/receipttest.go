// Package receipttest builds signed receipts the way a STREAM payee issues
// them, for use in tests of code that verifies receipts.
package receipttest

import (
	"crypto/rand"
	"encoding/base64"

	receipts "github.com/x402-foundation/receipt-verifier"
)

// Options describes a receipt to build.
type Options struct {
	Nonce         [receipts.NonceLength]byte
	StreamID      uint8
	TotalReceived uint64
	// Secret is the per-nonce receipt secret. Use SecretFor to derive it from a seed.
	Secret []byte
}

// Create returns the 58-byte binary receipt for opts.
func Create(opts Options) []byte {
	body := receipts.EncodeReceiptBody(opts.Nonce, opts.StreamID, opts.TotalReceived)
	return append(body, receipts.ReceiptTag(opts.Secret, body)...)
}

// CreateEncoded returns the base64 form of Create(opts), as POSTed to /receipts.
func CreateEncoded(opts Options) string {
	return base64.StdEncoding.EncodeToString(Create(opts))
}

// SecretFor derives the receipt secret for nonce under seed.
func SecretFor(seed []byte, nonce [receipts.NonceLength]byte) []byte {
	return receipts.GenerateReceiptSecret(seed, nonce[:])
}

// Signed is shorthand for an encoded receipt whose secret is derived from seed.
func Signed(seed []byte, nonce [receipts.NonceLength]byte, streamID uint8, totalReceived uint64) string {
	return CreateEncoded(Options{
		Nonce:         nonce,
		StreamID:      streamID,
		TotalReceived: totalReceived,
		Secret:        SecretFor(seed, nonce),
	})
}

// RandomNonce returns a random nonce. It panics if the system RNG fails.
func RandomNonce() [receipts.NonceLength]byte {
	var nonce [receipts.NonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic(err)
	}
	return nonce
}

// NonceKey returns the base64 store key for nonce.
func NonceKey(nonce [receipts.NonceLength]byte) string {
	return base64.StdEncoding.EncodeToString(nonce[:])
}
