package receipts

import (
	"context"
	"time"
)

// ProgressStore holds the highest accepted totalReceived per nonce.
// Implementations must be safe for concurrent use, including across
// processes when the backend is shared.
//
// A nonce only exists after Ensure. Receipts never create progress records,
// they can only move an existing one forward.
type ProgressStore interface {
	// Ensure creates a record for nonce holding baseline that expires after
	// ttl. It does nothing if the record already exists.
	Ensure(ctx context.Context, nonce string, baseline uint64, ttl time.Duration) error

	// GetAndUpdateIfGreater atomically reads the stored value for nonce and,
	// if candidate is strictly greater, replaces it while keeping the
	// record's expiry.
	//
	// Returns:
	//   - the value stored before the call
	//   - ErrNonceNotFound if there is no live record for nonce
	//   - any other error for backend failures
	//
	// The caller detects "not an improvement" by comparing previous with candidate.
	GetAndUpdateIfGreater(ctx context.Context, nonce string, candidate uint64) (previous uint64, err error)
}
