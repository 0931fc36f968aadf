package receipts

import "errors"

// Rejection errors. Their messages are the exact text returned to HTTP
// clients and must not change.
var (
	ErrMalformedReceipt      = errors.New("malformed receipt")
	ErrInvalidHMAC           = errors.New("invalid hmac")
	ErrExpiredReceipt        = errors.New("expired receipt")
	ErrAmountExceedsMaxInt64 = errors.New("receipt amount exceeds max 64 bit signed integer")
	ErrReceiptTooLarge       = errors.New("request entity too large")
)

// Causes joined with ErrExpiredReceipt. Clients only ever see "expired receipt".
var (
	// ErrNonceNotFound is returned by a ProgressStore when the nonce was never
	// registered or its registration has expired.
	ErrNonceNotFound = errors.New("receipts: nonce not found")
	// ErrStaleReceipt means the stored progress is already at or above the receipt amount.
	ErrStaleReceipt = errors.New("receipts: amount not greater than recorded progress")
)

// Config validation errors
var (
	ErrMissingReceiptSeed = errors.New("receipts: receipt seed is required")
	ErrInvalidReceiptTTL  = errors.New("receipts: receipt ttl must be positive")
	ErrMissingStore       = errors.New("receipts: progress store is required")
)

// IsRejection reports whether err is one of the client-caused rejections, as
// opposed to an infrastructure failure such as an unreachable store.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMalformedReceipt) ||
		errors.Is(err, ErrInvalidHMAC) ||
		errors.Is(err, ErrExpiredReceipt) ||
		errors.Is(err, ErrAmountExceedsMaxInt64) ||
		errors.Is(err, ErrReceiptTooLarge)
}
