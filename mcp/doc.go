// Package mcp exposes receipt verification to MCP (Model Context Protocol) clients.
//
// The server registers a single tool, verify_receipt, taking {"receipt": "<base64>"}.
// Accepted receipts return the same object as POST /receipts as structured content.
// Rejections are tool errors whose text is the classification an HTTP client
// would see ("invalid hmac", "expired receipt", ...).
//
// # Server Usage
//
//	import (
//	    receipts "github.com/x402-foundation/receipt-verifier"
//	    "github.com/x402-foundation/receipt-verifier/mcp"
//	)
//
//	verifier, _ := receipts.NewVerifier(config, progressStore)
//	server := mcp.NewServer(verifier, nil)
//
//	// Streamable HTTP, mounted next to the REST routes
//	handler := mcp.Handler(server)
//
// # Client Usage
//
//	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "my-agent", Version: "1.0.0"}, nil)
//	session, _ := client.Connect(ctx, transport, nil)
//	result, _ := session.CallTool(ctx, &mcpsdk.CallToolParams{
//	    Name:      mcp.VerifyReceiptToolName,
//	    Arguments: map[string]any{"receipt": encoded},
//	})
package mcp
