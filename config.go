package receipts

import "time"

// DefaultReceiptTTL is how long a registered nonce stays eligible for receipts
const DefaultReceiptTTL = 300 * time.Second

// Config is the process-wide material the Verifier needs. It is built once at
// startup and passed to NewVerifier.
type Config struct {
	// ReceiptSeed is the server secret all receipt secrets are derived from
	ReceiptSeed []byte
	// ReceiptTTL bounds how long a nonce registered with RegisterNonce stays usable
	ReceiptTTL time.Duration
	// MaxReceiptLength is the largest accepted encoded receipt (default: EncodedLength)
	MaxReceiptLength int
}

// Validate checks that the config has all required fields
func (c *Config) Validate() error {
	if len(c.ReceiptSeed) == 0 {
		return ErrMissingReceiptSeed
	}
	if c.ReceiptTTL < 0 {
		return ErrInvalidReceiptTTL
	}
	return nil
}

// GetReceiptTTL returns the nonce TTL, defaulting to DefaultReceiptTTL if not set
func (c *Config) GetReceiptTTL() time.Duration {
	if c.ReceiptTTL <= 0 {
		return DefaultReceiptTTL
	}
	return c.ReceiptTTL
}

// GetMaxReceiptLength returns the body limit, defaulting to EncodedLength if not set
func (c *Config) GetMaxReceiptLength() int {
	if c.MaxReceiptLength <= 0 {
		return EncodedLength
	}
	return c.MaxReceiptLength
}
