package integration_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	receipts "github.com/x402-foundation/receipt-verifier"
	receipthttp "github.com/x402-foundation/receipt-verifier/http"
	echorouter "github.com/x402-foundation/receipt-verifier/http/echo"
	ginrouter "github.com/x402-foundation/receipt-verifier/http/gin"
	"github.com/x402-foundation/receipt-verifier/mcp"
	"github.com/x402-foundation/receipt-verifier/receipttest"
	"github.com/x402-foundation/receipt-verifier/spsp"
	"github.com/x402-foundation/receipt-verifier/store"
)

var testSeed = []byte("0123456789abcdef0123456789abcdef")

// payee stands in for a STREAM receiver: it remembers the receipt nonce and
// secret handed to it during the SPSP query and signs receipts with them.
type payee struct {
	mu     sync.Mutex
	nonce  [receipts.NonceLength]byte
	secret []byte
}

func (p *payee) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nonce, err := base64.StdEncoding.DecodeString(r.Header.Get(spsp.ReceiptNonceHeader))
	if err != nil || len(nonce) != receipts.NonceLength {
		http.Error(w, "missing receipt nonce", http.StatusBadRequest)
		return
	}
	secret, err := base64.StdEncoding.DecodeString(r.Header.Get(spsp.ReceiptSecretHeader))
	if err != nil {
		http.Error(w, "missing receipt secret", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	copy(p.nonce[:], nonce)
	p.secret = secret
	p.mu.Unlock()

	w.Header().Set("Content-Type", spsp.ContentType)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"destination_account": "test.payee",
		"shared_secret":       base64.StdEncoding.EncodeToString(make([]byte, 32)),
	})
}

func (p *payee) receipt(amount uint64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return receipttest.CreateEncoded(receipttest.Options{
		Nonce:         p.nonce,
		StreamID:      1,
		TotalReceived: amount,
		Secret:        p.secret,
	})
}

func (p *payee) nonceKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return base64.StdEncoding.EncodeToString(p.nonce[:])
}

type stack struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	payee  *payee
}

func newStack(t *testing.T, framework string) *stack {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	verifier, err := receipts.NewVerifier(
		receipts.Config{ReceiptSeed: testSeed, ReceiptTTL: time.Minute},
		store.NewRedisStore(client),
	)
	require.NoError(t, err)

	p := &payee{}
	upstream := httptest.NewServer(p)
	t.Cleanup(upstream.Close)

	opts := []receipthttp.Option{
		receipthttp.WithSPSP(spsp.NewProxy(verifier, &spsp.ProxyConfig{DefaultEndpoint: upstream.URL})),
		receipthttp.WithMCP(mcp.Handler(mcp.NewServer(verifier, nil))),
	}

	var handler http.Handler
	switch framework {
	case "echo":
		handler = echorouter.NewRouter(verifier, opts...)
	case "stdlib":
		handler = receipthttp.NewHandler(verifier, opts...)
	default:
		gin.SetMode(gin.TestMode)
		handler = ginrouter.NewRouter(verifier, opts...)
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &stack{server: srv, redis: mr, payee: p}
}

func (s *stack) post(t *testing.T, receipt string) (int, string) {
	t.Helper()
	resp, err := http.Post(s.server.URL+"/receipts", "text/plain", strings.NewReader(receipt))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (s *stack) querySPSP(t *testing.T) {
	t.Helper()
	resp, err := http.Get(s.server.URL + "/spsp")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, spsp.ContentType, resp.Header.Get("Content-Type"))
}

func TestReceiptFlow(t *testing.T) {
	for _, framework := range []string{"gin", "echo", "stdlib"} {
		t.Run(framework, func(t *testing.T) {
			s := newStack(t, framework)

			// Unknown nonce before any SPSP query
			status, body := s.post(t, receipttest.Signed(testSeed, receipttest.RandomNonce(), 1, 10))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "expired receipt", body)

			s.querySPSP(t)
			key := store.DefaultKeyPrefix + s.payee.nonceKey()
			require.True(t, s.redis.Exists(key))

			status, body = s.post(t, s.payee.receipt(10))
			require.Equal(t, http.StatusOK, status, body)
			var got receipts.ReceiptResponse
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, "10", got.TotalReceived)

			status, _ = s.post(t, s.payee.receipt(15))
			require.Equal(t, http.StatusOK, status)

			value, err := s.redis.Get(key)
			require.NoError(t, err)
			assert.Equal(t, "15", value)

			status, body = s.post(t, s.payee.receipt(10))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "expired receipt", body)

			// Registration lapses after the TTL
			s.redis.FastForward(2 * time.Minute)
			status, body = s.post(t, s.payee.receipt(20))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "expired receipt", body)
		})
	}
}

func TestStoreOutage(t *testing.T) {
	s := newStack(t, "gin")
	s.querySPSP(t)
	s.redis.Close()

	status, body := s.post(t, s.payee.receipt(10))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, receipthttp.InternalErrorMessage, body)
}

func TestMCPOverHTTP(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, "gin")
	s.querySPSP(t)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "integration", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{
		Endpoint:             s.server.URL + "/mcp",
		DisableStandaloneSSE: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.VerifyReceiptToolName,
		Arguments: map[string]any{"receipt": s.payee.receipt(7)},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	// The same receipt over REST is now stale
	status, body := s.post(t, s.payee.receipt(7))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "expired receipt", body)
}
