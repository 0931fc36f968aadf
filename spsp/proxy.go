// Package spsp proxies SPSP queries to a payee's server, attaching a freshly
// registered receipt nonce and secret so the payee's STREAM server can issue
// receipts the verifier will accept.
package spsp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	receipts "github.com/x402-foundation/receipt-verifier"
)

const (
	// ContentType is the SPSP response media type requested upstream.
	ContentType = "application/spsp4+json"

	ReceiptNonceHeader  = "Receipt-Nonce"
	ReceiptSecretHeader = "Receipt-Secret"

	// DefaultTimeout bounds each upstream query.
	DefaultTimeout = 10 * time.Second

	// DefaultPathPrefix is stripped from incoming request paths to find the target.
	DefaultPathPrefix = "/spsp"

	wellKnownPath = "/.well-known/pay"
)

var (
	ErrNoTarget      = errors.New("spsp: no target and no default endpoint configured")
	ErrInvalidTarget = errors.New("spsp: invalid payment pointer")
	ErrIssueSecret   = errors.New("spsp: failed to issue receipt secret")
)

// SecretIssuer issues a registered nonce with its receipt secret.
type SecretIssuer interface {
	IssueReceiptSecret(ctx context.Context) (nonce [receipts.NonceLength]byte, secret []byte, err error)
}

var _ SecretIssuer = (*receipts.Verifier)(nil)

// ============================================================================
// Proxy
// ============================================================================

// ProxyConfig configures the SPSP proxy
type ProxyConfig struct {
	// DefaultEndpoint is queried when the request names no target (optional)
	DefaultEndpoint string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for upstream requests (optional, defaults to 10s)
	Timeout time.Duration

	// PathPrefix is stripped from request paths (optional, defaults to /spsp)
	PathPrefix string

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

// Proxy forwards SPSP queries with receipt headers attached.
type Proxy struct {
	issuer          SecretIssuer
	httpClient      *http.Client
	defaultEndpoint string
	pathPrefix      string
	logger          *slog.Logger
}

// NewProxy creates an SPSP proxy that registers nonces through issuer.
func NewProxy(issuer SecretIssuer, config *ProxyConfig) *Proxy {
	if config == nil {
		config = &ProxyConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	pathPrefix := config.PathPrefix
	if pathPrefix == "" {
		pathPrefix = DefaultPathPrefix
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Proxy{
		issuer:          issuer,
		httpClient:      httpClient,
		defaultEndpoint: config.DefaultEndpoint,
		pathPrefix:      pathPrefix,
		logger:          logger,
	}
}

// ResolvePaymentPointer turns a payment pointer into its SPSP endpoint URL.
//
//	$wallet.example/alice -> https://wallet.example/alice
//	$wallet.example       -> https://wallet.example/.well-known/pay
//
// The leading '$' is optional.
func ResolvePaymentPointer(pointer string) (string, error) {
	pointer = strings.TrimPrefix(pointer, "$")
	if pointer == "" || strings.ContainsAny(pointer, " ?#@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, pointer)
	}

	u, err := url.Parse("https://" + pointer)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, pointer)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = wellKnownPath
	}
	return u.String(), nil
}

// Query issues a receipt nonce and secret and fetches endpoint with them attached.
// The caller owns the returned response body.
func (p *Proxy) Query(ctx context.Context, endpoint string) (*http.Response, error) {
	nonce, secret, err := p.issuer.IssueReceiptSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssueSecret, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("spsp: failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set(ReceiptNonceHeader, base64.StdEncoding.EncodeToString(nonce[:]))
	req.Header.Set(ReceiptSecretHeader, base64.StdEncoding.EncodeToString(secret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spsp: query %s: %w", endpoint, err)
	}
	return resp, nil
}

// Endpoint returns the upstream URL for an incoming request path.
func (p *Proxy) Endpoint(path string) (string, error) {
	target := strings.Trim(strings.TrimPrefix(path, p.pathPrefix), "/")
	if target == "" {
		if p.defaultEndpoint == "" {
			return "", ErrNoTarget
		}
		return p.defaultEndpoint, nil
	}
	return ResolvePaymentPointer(target)
}

// ServeHTTP relays the upstream status, content type and body.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	endpoint, err := p.Endpoint(r.URL.Path)
	if errors.Is(err, ErrNoTarget) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "invalid payment pointer", http.StatusBadRequest)
		return
	}

	resp, err := p.Query(ctx, endpoint)
	if err != nil {
		p.logger.ErrorContext(ctx, "spsp query failed", "endpoint", endpoint, "error", err)
		var netErr net.Error
		switch {
		case errors.Is(err, ErrIssueSecret):
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		case errors.As(err, &netErr) && netErr.Timeout():
			http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
			return
		default:
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.WarnContext(ctx, "spsp response relay interrupted", "endpoint", endpoint, "error", err)
	}
}
