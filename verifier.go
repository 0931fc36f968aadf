package receipts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Verifier checks receipts against the server seed and records per-nonce
// progress. It holds no per-request state; all coordination between
// concurrent requests happens inside the ProgressStore.
type Verifier struct {
	mu sync.RWMutex

	seed      []byte
	ttl       time.Duration
	maxLength int
	store     ProgressStore
	logger    *slog.Logger

	// Lifecycle hooks
	afterVerifyHooks     []AfterVerifyHook
	onVerifyFailureHooks []OnVerifyFailureHook
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLogger sets the logger used for rejection and store failure events.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a Verifier from config and a progress store.
func NewVerifier(config Config, store ProgressStore, opts ...VerifierOption) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrMissingStore
	}

	v := &Verifier{
		seed:      append([]byte(nil), config.ReceiptSeed...),
		ttl:       config.GetReceiptTTL(),
		maxLength: config.GetMaxReceiptLength(),
		store:     store,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// MaxReceiptLength is the largest encoded receipt VerifyEncoded accepts.
func (v *Verifier) MaxReceiptLength() int {
	return v.maxLength
}

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (v *Verifier) OnAfterVerify(hook AfterVerifyHook) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.afterVerifyHooks = append(v.afterVerifyHooks, hook)
	return v
}

func (v *Verifier) OnVerifyFailure(hook OnVerifyFailureHook) *Verifier {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onVerifyFailureHooks = append(v.onVerifyFailureHooks, hook)
	return v
}

// ============================================================================
// Nonce Registration
// ============================================================================

// RegisterNonce makes nonce eligible for receipts for the configured TTL.
// Registering an active nonce again leaves its progress untouched.
func (v *Verifier) RegisterNonce(ctx context.Context, nonce [NonceLength]byte) error {
	key := base64.StdEncoding.EncodeToString(nonce[:])
	if err := v.store.Ensure(ctx, key, 0, v.ttl); err != nil {
		return fmt.Errorf("receipts: register nonce: %w", err)
	}
	return nil
}

// IssueReceiptSecret creates a fresh nonce, registers it and returns it with
// the matching receipt secret, ready to be handed to a payee.
func (v *Verifier) IssueReceiptSecret(ctx context.Context) (nonce [NonceLength]byte, secret []byte, err error) {
	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, nil, fmt.Errorf("receipts: generate nonce: %w", err)
	}
	if err = v.RegisterNonce(ctx, nonce); err != nil {
		return nonce, nil, err
	}
	return nonce, GenerateReceiptSecret(v.seed, nonce[:]), nil
}

// ============================================================================
// Verification
// ============================================================================

// VerifyEncoded verifies a base64 receipt as received in a request body.
// Bodies longer than MaxReceiptLength are rejected before any decoding.
func (v *Verifier) VerifyEncoded(ctx context.Context, body []byte) (*ReceiptResponse, error) {
	start := time.Now()
	if len(body) > v.maxLength {
		return nil, v.fail(ctx, start, nil, ErrReceiptTooLarge)
	}
	r, err := DecodeEncodedReceipt(body)
	if err != nil {
		return nil, v.fail(ctx, start, nil, err)
	}
	return v.verify(ctx, start, r)
}

// Verify verifies a raw binary receipt.
func (v *Verifier) Verify(ctx context.Context, data []byte) (*ReceiptResponse, error) {
	start := time.Now()
	r, err := DecodeReceipt(data)
	if err != nil {
		return nil, v.fail(ctx, start, nil, err)
	}
	return v.verify(ctx, start, r)
}

func (v *Verifier) verify(ctx context.Context, start time.Time, r *Receipt) (*ReceiptResponse, error) {
	nonce := r.NonceKey()

	if !VerifyReceiptHMAC(r, GenerateReceiptSecret(v.seed, r.Nonce[:])) {
		v.logger.WarnContext(ctx, "receipt hmac mismatch", "nonce", nonce, "streamId", r.StreamID)
		return nil, v.fail(ctx, start, r, ErrInvalidHMAC)
	}

	// Downstream consumers store amounts as signed 64-bit integers.
	if r.TotalReceived > math.MaxInt64 {
		v.logger.WarnContext(ctx, "receipt amount out of range", "nonce", nonce, "totalReceived", r.TotalReceived)
		return nil, v.fail(ctx, start, r, ErrAmountExceedsMaxInt64)
	}

	previous, err := v.store.GetAndUpdateIfGreater(ctx, nonce, r.TotalReceived)
	if errors.Is(err, ErrNonceNotFound) {
		v.logger.InfoContext(ctx, "receipt for unknown nonce", "nonce", nonce)
		return nil, v.fail(ctx, start, r, fmt.Errorf("%w: %w", ErrExpiredReceipt, ErrNonceNotFound))
	}
	if err != nil {
		v.logger.ErrorContext(ctx, "progress store failed", "nonce", nonce, "error", err)
		return nil, v.fail(ctx, start, r, fmt.Errorf("receipts: progress store: %w", err))
	}
	if previous >= r.TotalReceived {
		v.logger.InfoContext(ctx, "stale receipt", "nonce", nonce, "totalReceived", r.TotalReceived, "recorded", previous)
		return nil, v.fail(ctx, start, r, fmt.Errorf("%w: %w", ErrExpiredReceipt, ErrStaleReceipt))
	}

	response := r.Response()

	v.mu.RLock()
	hooks := v.afterVerifyHooks
	v.mu.RUnlock()
	if len(hooks) > 0 {
		resultCtx := VerifyResultContext{
			VerifyContext: VerifyContext{Ctx: ctx, Timestamp: start, Receipt: r},
			Result:        *response,
			Previous:      previous,
			Duration:      time.Since(start),
		}
		for _, hook := range hooks {
			_ = hook(resultCtx)
		}
	}

	return response, nil
}

// fail runs failure hooks and returns err unchanged.
func (v *Verifier) fail(ctx context.Context, start time.Time, r *Receipt, err error) error {
	v.mu.RLock()
	hooks := v.onVerifyFailureHooks
	v.mu.RUnlock()

	failureCtx := VerifyFailureContext{
		VerifyContext: VerifyContext{Ctx: ctx, Timestamp: start, Receipt: r},
		Error:         err,
		Duration:      time.Since(start),
	}
	for _, hook := range hooks {
		_ = hook(failureCtx)
	}
	return err
}
