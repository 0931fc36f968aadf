package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	receipthttp "github.com/x402-foundation/receipt-verifier/http"
)

const (
	ServerName    = "receipt-verifier"
	ServerVersion = "1.0.0"

	VerifyReceiptToolName = "verify_receipt"
)

// ServerConfig configures the MCP server
type ServerConfig struct {
	// Name reported to clients (optional, defaults to ServerName)
	Name string

	// Version reported to clients (optional, defaults to ServerVersion)
	Version string

	// Logger (optional, defaults to slog.Default())
	Logger *slog.Logger
}

// NewServer creates an MCP server exposing the receipt verification tools.
func NewServer(v receipthttp.ReceiptVerifier, config *ServerConfig) *mcp.Server {
	if config == nil {
		config = &ServerConfig{}
	}
	name := config.Name
	if name == "" {
		name = ServerName
	}
	version := config.Version
	if version == "" {
		version = ServerVersion
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        VerifyReceiptToolName,
		Description: "Verify a base64 encoded STREAM receipt and record its amount as the new high-water mark for its nonce.",
	}, verifyReceiptHandler(v, logger))
	return server
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func verifyReceiptHandler(v receipthttp.ReceiptVerifier, logger *slog.Logger) mcp.ToolHandlerFor[VerifyReceiptInput, VerifyReceiptOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in VerifyReceiptInput) (*mcp.CallToolResult, VerifyReceiptOutput, error) {
		resp, err := v.VerifyEncoded(ctx, []byte(in.Receipt))
		if err != nil {
			status, message := receipthttp.StatusForError(err)
			if status == http.StatusInternalServerError {
				logger.ErrorContext(ctx, "mcp receipt verification failed", "error", err)
			}
			return nil, VerifyReceiptOutput{}, errors.New(message)
		}

		return nil, VerifyReceiptOutput(*resp), nil
	}
}
