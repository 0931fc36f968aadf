// Package echo mounts the receipt verifier routes on an echo instance.
package echo

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	receipthttp "github.com/x402-foundation/receipt-verifier/http"
)

const requestIDKey = "requestId"

// NewRouter returns an echo instance serving the receipt routes.
func NewRouter(v receipthttp.ReceiptVerifier, opts ...receipthttp.Option) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, v, opts...)
	return e
}

// Register adds the receipt routes and middleware to an existing instance.
func Register(e *echo.Echo, v receipthttp.ReceiptVerifier, opts ...receipthttp.Option) {
	o := receipthttp.NewOptions(opts...)

	e.Use(RequestLogger(o.Logger), middleware.Recover())

	e.POST(receipthttp.ReceiptsPath, ReceiptHandler(v, o.Logger))
	e.GET(receipthttp.HealthPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, receipthttp.Healthy)
	})
	if o.SPSP != nil {
		e.GET(receipthttp.SPSPPath, echo.WrapHandler(o.SPSP))
		e.GET(receipthttp.SPSPPath+"/*", echo.WrapHandler(o.SPSP))
	}
	if o.MCP != nil {
		e.Any(receipthttp.MCPPath, echo.WrapHandler(o.MCP))
	}
}

// ReceiptHandler handles POST /receipts.
func ReceiptHandler(v receipthttp.ReceiptVerifier, logger *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		result := receipthttp.ProcessReceipt(req.Context(), v, req.Body)
		if result.Status == http.StatusOK {
			return c.JSON(http.StatusOK, result.Response)
		}
		if result.Status == http.StatusInternalServerError {
			logger.ErrorContext(req.Context(), "receipt verification failed",
				"requestId", c.Get(requestIDKey),
				"error", result.Err,
			)
		}
		return c.String(result.Status, result.Message)
	}
}

// RequestLogger tags each request with an id and logs one line when it completes.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			id := receipthttp.RequestID(req.Header.Get(receipthttp.RequestIDHeader))
			c.Set(requestIDKey, id)
			c.Response().Header().Set(receipthttp.RequestIDHeader, id)

			if err := next(c); err != nil {
				c.Error(err)
			}

			logger.InfoContext(req.Context(), "request",
				"requestId", id,
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}
