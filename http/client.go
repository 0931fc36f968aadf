package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	receipts "github.com/x402-foundation/receipt-verifier"
)

// ============================================================================
// HTTP Verifier Client
// ============================================================================

// Client submits receipts to a remote verifier over HTTP.
// Rejections come back as the same sentinel errors a local Verifier returns,
// so callers can use errors.Is regardless of where verification runs.
type Client struct {
	url        string
	httpClient *http.Client
}

// ClientConfig configures the HTTP verifier client
type ClientConfig struct {
	// URL is the base URL of the verifier service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// maxErrorBody bounds how much of a non-200 response is read.
const maxErrorBody = 4096

// NewClient creates a new HTTP verifier client
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		url:        strings.TrimRight(config.URL, "/"),
		httpClient: httpClient,
	}
}

// VerifyEncoded posts a base64 receipt to the remote verifier.
func (c *Client) VerifyEncoded(ctx context.Context, receipt []byte) (*receipts.ReceiptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+ReceiptsPath, strings.NewReader(string(receipt)))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out receipts.ReceiptResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode verify response: %w", err)
		}
		return &out, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return nil, ErrorFromResponse(resp.StatusCode, strings.TrimSpace(string(body)))
}

// ErrorFromResponse maps a non-200 /receipts response back to its sentinel error.
func ErrorFromResponse(status int, text string) error {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return receipts.ErrReceiptTooLarge
	case http.StatusConflict:
		return receipts.ErrAmountExceedsMaxInt64
	case http.StatusBadRequest:
		switch text {
		case receipts.ErrInvalidHMAC.Error():
			return receipts.ErrInvalidHMAC
		case receipts.ErrExpiredReceipt.Error():
			return receipts.ErrExpiredReceipt
		case receipts.ErrMalformedReceipt.Error():
			return receipts.ErrMalformedReceipt
		default:
			return fmt.Errorf("%w: %s", receipts.ErrMalformedReceipt, text)
		}
	}
	return fmt.Errorf("verifier returned %d: %s", status, text)
}
