package mcp

import receipts "github.com/x402-foundation/receipt-verifier"

// VerifyReceiptInput is the argument object of the verify_receipt tool.
type VerifyReceiptInput struct {
	Receipt string `json:"receipt" jsonschema:"base64 encoded 58 byte receipt"`
}

// VerifyReceiptOutput is the structured result of an accepted receipt.
type VerifyReceiptOutput receipts.ReceiptResponse
