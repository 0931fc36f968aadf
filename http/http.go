// Package http exposes the receipt verifier over HTTP.
// The request handling here is framework agnostic; http/gin and http/echo
// mount the same routes on their respective routers.
package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	receipts "github.com/x402-foundation/receipt-verifier"
)

// ============================================================================
// Routes
// ============================================================================

const (
	ReceiptsPath = "/receipts"
	HealthPath   = "/health"
	SPSPPath     = "/spsp"
	MCPPath      = "/mcp"
)

// InternalErrorMessage is returned for failures that are not the client's fault.
const InternalErrorMessage = "internal server error"

// ReceiptVerifier is the part of *receipts.Verifier the handlers depend on.
type ReceiptVerifier interface {
	VerifyEncoded(ctx context.Context, body []byte) (*receipts.ReceiptResponse, error)
	MaxReceiptLength() int
}

var _ ReceiptVerifier = (*receipts.Verifier)(nil)

// Options holds the optional routes and collaborators shared by all adapters.
type Options struct {
	Logger *slog.Logger
	// SPSP serves GET /spsp and GET /spsp/*. Not mounted when nil.
	SPSP http.Handler
	// MCP serves the MCP streamable HTTP endpoint. Not mounted when nil.
	MCP http.Handler
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets the access and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSPSP mounts an SPSP proxy under SPSPPath.
func WithSPSP(handler http.Handler) Option {
	return func(o *Options) {
		o.SPSP = handler
	}
}

// WithMCP mounts an MCP endpoint under MCPPath.
func WithMCP(handler http.Handler) Option {
	return func(o *Options) {
		o.MCP = handler
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ============================================================================
// Receipt Processing
// ============================================================================

// VerifyResult is the transport-independent outcome of a POST /receipts request.
// Response is set when Status is 200, Message otherwise.
type VerifyResult struct {
	Status   int
	Response *receipts.ReceiptResponse
	Message  string
	Err      error
}

// ReadReceiptBody reads at most max+1 bytes so an oversized body is detected
// without buffering it whole.
func ReadReceiptBody(body io.Reader, max int) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(body, int64(max)+1))
}

// ProcessReceipt verifies the receipt carried in body and classifies the outcome.
func ProcessReceipt(ctx context.Context, v ReceiptVerifier, body io.Reader) VerifyResult {
	data, err := ReadReceiptBody(body, v.MaxReceiptLength())
	if err != nil {
		return VerifyResult{Status: http.StatusBadRequest, Message: receipts.ErrMalformedReceipt.Error(), Err: err}
	}

	resp, err := v.VerifyEncoded(ctx, data)
	if err != nil {
		status, message := StatusForError(err)
		return VerifyResult{Status: status, Message: message, Err: err}
	}
	return VerifyResult{Status: http.StatusOK, Response: resp}
}

// StatusForError maps a verification error to its HTTP status and body text.
// Wrapped causes never leak into the text.
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, receipts.ErrReceiptTooLarge):
		return http.StatusRequestEntityTooLarge, receipts.ErrReceiptTooLarge.Error()
	case errors.Is(err, receipts.ErrAmountExceedsMaxInt64):
		return http.StatusConflict, receipts.ErrAmountExceedsMaxInt64.Error()
	case errors.Is(err, receipts.ErrInvalidHMAC):
		return http.StatusBadRequest, receipts.ErrInvalidHMAC.Error()
	case errors.Is(err, receipts.ErrExpiredReceipt):
		return http.StatusBadRequest, receipts.ErrExpiredReceipt.Error()
	case errors.Is(err, receipts.ErrMalformedReceipt):
		return http.StatusBadRequest, receipts.ErrMalformedReceipt.Error()
	default:
		return http.StatusInternalServerError, InternalErrorMessage
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Healthy is the response returned while the process is serving.
var Healthy = HealthResponse{Status: "ok"}
