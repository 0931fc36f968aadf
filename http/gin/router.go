// Package gin mounts the receipt verifier routes on a gin engine.
package gin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	receipthttp "github.com/x402-foundation/receipt-verifier/http"
)

// NewRouter returns a gin engine serving the receipt routes.
func NewRouter(v receipthttp.ReceiptVerifier, opts ...receipthttp.Option) *gin.Engine {
	r := gin.New()
	Register(r, v, opts...)
	return r
}

// Register adds the receipt routes and middleware to an existing engine.
func Register(r *gin.Engine, v receipthttp.ReceiptVerifier, opts ...receipthttp.Option) {
	o := receipthttp.NewOptions(opts...)

	r.Use(RequestLogger(o.Logger), gin.Recovery())

	r.POST(receipthttp.ReceiptsPath, ReceiptHandler(v, o.Logger))
	r.GET(receipthttp.HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, receipthttp.Healthy)
	})
	if o.SPSP != nil {
		r.GET(receipthttp.SPSPPath, gin.WrapH(o.SPSP))
		r.GET(receipthttp.SPSPPath+"/*target", gin.WrapH(o.SPSP))
	}
	if o.MCP != nil {
		r.Any(receipthttp.MCPPath, gin.WrapH(o.MCP))
	}
}

// ReceiptHandler handles POST /receipts.
func ReceiptHandler(v receipthttp.ReceiptVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := receipthttp.ProcessReceipt(c.Request.Context(), v, c.Request.Body)
		if result.Status == http.StatusOK {
			c.JSON(http.StatusOK, result.Response)
			return
		}
		if result.Status == http.StatusInternalServerError {
			logger.ErrorContext(c.Request.Context(), "receipt verification failed",
				"requestId", c.GetString(requestIDKey),
				"error", result.Err,
			)
		}
		c.String(result.Status, result.Message)
	}
}

const requestIDKey = "requestId"

// RequestLogger tags each request with an id and logs one line when it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := receipthttp.RequestID(c.GetHeader(receipthttp.RequestIDHeader))
		c.Set(requestIDKey, id)
		c.Header(receipthttp.RequestIDHeader, id)

		c.Next()

		logger.InfoContext(c.Request.Context(), "request",
			"requestId", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
