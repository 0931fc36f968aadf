// Package receipts verifies STREAM payment receipts and protects against replay.
//
// A receipt is a 58-byte record signed by a payee with a per-nonce secret:
//
//	version(1) | nonce(16) | streamId(1) | totalReceived(8, big-endian) | tag(32)
//
// The tag is HMAC-SHA256 over the first 26 bytes, keyed with
// GenerateReceiptSecret(seed, nonce). Only the holder of the server seed can
// derive receipt secrets, so a valid tag proves the receipt came from a payee
// that was handed the secret for that nonce.
//
// # Verification
//
// Verifier checks, in order: structure, tag, amount range, then progress.
// A receipt is accepted only if its totalReceived is strictly greater than
// the highest amount previously accepted for the nonce, and the nonce was
// registered with RegisterNonce within the configured TTL.
//
//	verifier, _ := receipts.NewVerifier(receipts.Config{ReceiptSeed: seed}, store.NewInMemoryStore())
//	nonce, secret, _ := verifier.IssueReceiptSecret(ctx)
//	// ... hand nonce and secret to the payee, receive receipts back ...
//	resp, err := verifier.VerifyEncoded(ctx, body)
//	if errors.Is(err, receipts.ErrExpiredReceipt) {
//	    // replayed, stale or unknown nonce
//	}
//
// Progress is kept in a ProgressStore; see package store for the in-memory
// and Redis implementations.
package receipts
