package receipts

import (
	"context"
	"time"
)

// ============================================================================
// Verifier Hook Context Types
// ============================================================================

// VerifyContext contains information passed to verifier hooks
type VerifyContext struct {
	Ctx       context.Context
	Timestamp time.Time
	// Receipt is nil when the body could not be decoded
	Receipt *Receipt
}

// VerifyResultContext contains an accepted receipt and timing
type VerifyResultContext struct {
	VerifyContext
	Result   ReceiptResponse
	Previous uint64
	Duration time.Duration
}

// VerifyFailureContext contains a rejected receipt and the classified error
type VerifyFailureContext struct {
	VerifyContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Verifier Hook Function Types
// ============================================================================

// AfterVerifyHook is called after a receipt is accepted and progress was recorded.
// Any error returned will be ignored and will not affect the result.
type AfterVerifyHook func(VerifyResultContext) error

// OnVerifyFailureHook is called when a receipt is rejected or the store fails.
// Any error returned will be ignored; rejections cannot be recovered.
type OnVerifyFailureHook func(VerifyFailureContext) error
