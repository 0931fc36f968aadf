package spsp

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	receipts "github.com/x402-foundation/receipt-verifier"
	"github.com/x402-foundation/receipt-verifier/receipttest"
	"github.com/x402-foundation/receipt-verifier/store"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

type capturedQuery struct {
	path   string
	accept string
	nonce  string
	secret string
}

func newUpstream(t *testing.T, tls bool) (*httptest.Server, *capturedQuery) {
	t.Helper()
	captured := &capturedQuery{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.accept = r.Header.Get("Accept")
		captured.nonce = r.Header.Get(ReceiptNonceHeader)
		captured.secret = r.Header.Get(ReceiptSecretHeader)
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte(`{"destination_account":"test.alice","shared_secret":"AAAA"}`))
	})
	var srv *httptest.Server
	if tls {
		srv = httptest.NewTLSServer(handler)
	} else {
		srv = httptest.NewServer(handler)
	}
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestVerifier(t *testing.T) *receipts.Verifier {
	t.Helper()
	v, err := receipts.NewVerifier(receipts.Config{ReceiptSeed: testSeed, ReceiptTTL: time.Minute}, store.NewInMemoryStore())
	require.NoError(t, err)
	return v
}

func TestResolvePaymentPointer(t *testing.T) {
	tests := []struct {
		pointer string
		want    string
		wantErr bool
	}{
		{pointer: "$wallet.example/alice", want: "https://wallet.example/alice"},
		{pointer: "$wallet.example", want: "https://wallet.example/.well-known/pay"},
		{pointer: "$wallet.example/", want: "https://wallet.example/.well-known/pay"},
		{pointer: "wallet.example/alice/bob", want: "https://wallet.example/alice/bob"},
		{pointer: "$localhost:8080/p", want: "https://localhost:8080/p"},
		{pointer: "$", wantErr: true},
		{pointer: "", wantErr: true},
		{pointer: "$user@wallet.example", wantErr: true},
		{pointer: "$wallet.example/a?b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.pointer, func(t *testing.T) {
			got, err := ResolvePaymentPointer(tt.pointer)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProxy_DefaultEndpoint(t *testing.T) {
	upstream, captured := newUpstream(t, false)
	v := newTestVerifier(t)
	p := NewProxy(v, &ProxyConfig{DefaultEndpoint: upstream.URL + "/pay"})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "destination_account")

	assert.Equal(t, "/pay", captured.path)
	assert.Equal(t, ContentType, captured.accept)

	nonce, err := base64.StdEncoding.DecodeString(captured.nonce)
	require.NoError(t, err)
	require.Len(t, nonce, receipts.NonceLength)
	secret, err := base64.StdEncoding.DecodeString(captured.secret)
	require.NoError(t, err)
	assert.Equal(t, receipts.GenerateReceiptSecret(testSeed, nonce), secret)
}

func TestProxy_IssuedSecretProducesVerifiableReceipts(t *testing.T) {
	upstream, captured := newUpstream(t, false)
	v := newTestVerifier(t)
	p := NewProxy(v, &ProxyConfig{DefaultEndpoint: upstream.URL})

	resp, err := p.Query(context.Background(), upstream.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	rawNonce, err := base64.StdEncoding.DecodeString(captured.nonce)
	require.NoError(t, err)
	secret, err := base64.StdEncoding.DecodeString(captured.secret)
	require.NoError(t, err)

	var nonce [receipts.NonceLength]byte
	copy(nonce[:], rawNonce)

	// The payee signs with the secret it was handed; the nonce is already registered
	encoded := receipttest.CreateEncoded(receipttest.Options{Nonce: nonce, StreamID: 1, TotalReceived: 42, Secret: secret})
	got, err := v.VerifyEncoded(context.Background(), []byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, captured.nonce, got.Nonce)
	assert.Equal(t, "42", got.TotalReceived)
}

func TestProxy_PaymentPointerTarget(t *testing.T) {
	upstream, captured := newUpstream(t, true)
	host := strings.TrimPrefix(upstream.URL, "https://")
	p := NewProxy(newTestVerifier(t), &ProxyConfig{HTTPClient: upstream.Client()})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp/$"+host+"/alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/alice", captured.path)

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp/$"+host, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/.well-known/pay", captured.path)
}

func TestProxy_RelaysUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)
	p := NewProxy(newTestVerifier(t), &ProxyConfig{DefaultEndpoint: upstream.URL})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no such account\n", rec.Body.String())
}

func TestProxy_Errors(t *testing.T) {
	t.Run("no target", func(t *testing.T) {
		p := NewProxy(newTestVerifier(t), nil)
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid pointer", func(t *testing.T) {
		p := NewProxy(newTestVerifier(t), nil)
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp/$user@host", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream unreachable", func(t *testing.T) {
		upstream := httptest.NewServer(http.NotFoundHandler())
		upstream.Close()
		p := NewProxy(newTestVerifier(t), &ProxyConfig{DefaultEndpoint: upstream.URL})

		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("upstream timeout", func(t *testing.T) {
		release := make(chan struct{})
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		t.Cleanup(upstream.Close)
		t.Cleanup(func() { close(release) })
		p := NewProxy(newTestVerifier(t), &ProxyConfig{DefaultEndpoint: upstream.URL, Timeout: 50 * time.Millisecond})

		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("nonce registration fails", func(t *testing.T) {
		p := NewProxy(failingIssuer{}, &ProxyConfig{DefaultEndpoint: "http://127.0.0.1:1"})
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spsp", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type failingIssuer struct{}

func (failingIssuer) IssueReceiptSecret(context.Context) ([receipts.NonceLength]byte, []byte, error) {
	return [receipts.NonceLength]byte{}, nil, errors.New("store unavailable")
}
