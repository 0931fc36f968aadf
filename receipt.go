package receipts

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
)

// ============================================================================
// Wire Layout
// ============================================================================

const (
	// Version is the only receipt version this verifier understands
	Version = 1

	// NonceLength is the size of the per-stream receipt nonce
	NonceLength = 16

	// TagLength is the size of the HMAC-SHA256 tag
	TagLength = 32

	// BodyLength is the size of the authenticated prefix: version, nonce, streamId, totalReceived
	BodyLength = 1 + NonceLength + 1 + 8

	// Length is the exact size of an encoded receipt
	Length = BodyLength + TagLength
)

// EncodedLength is the size of a base64 encoded receipt, which is also the
// largest request body the verifier accepts.
var EncodedLength = base64.StdEncoding.EncodedLen(Length)

// ============================================================================
// Receipt
// ============================================================================

// Receipt is a decoded STREAM receipt. Values are only produced by
// DecodeReceipt and are never partially populated.
type Receipt struct {
	Version       uint8
	Nonce         [NonceLength]byte
	StreamID      uint8
	TotalReceived uint64
	Tag           [TagLength]byte

	raw []byte
}

// NonceKey returns the base64 form of the nonce, used both as the progress
// store key and in responses.
func (r *Receipt) NonceKey() string {
	return base64.StdEncoding.EncodeToString(r.Nonce[:])
}

// Body returns the bytes covered by the tag.
func (r *Receipt) Body() []byte {
	if r.raw != nil {
		return r.raw[:BodyLength]
	}
	var buf bytes.Buffer
	_ = writeBody(bin.NewBinEncoder(&buf), r.Version, r.Nonce[:], r.StreamID, r.TotalReceived)
	return buf.Bytes()
}

// Response renders the receipt fields the way POST /receipts returns them.
func (r *Receipt) Response() *ReceiptResponse {
	return &ReceiptResponse{
		Nonce:         r.NonceKey(),
		StreamID:      strconv.FormatUint(uint64(r.StreamID), 10),
		TotalReceived: strconv.FormatUint(r.TotalReceived, 10),
	}
}

// ReceiptResponse is the JSON body returned for an accepted receipt.
// Integers are decimal strings so clients without 64-bit integers keep full precision.
type ReceiptResponse struct {
	Nonce         string `json:"nonce"`
	StreamID      string `json:"streamId"`
	TotalReceived string `json:"totalReceived"`
}

// ============================================================================
// Codec
// ============================================================================

// DecodeReceipt parses the fixed 58-byte receipt layout. It performs no
// authentication. Any structural problem is reported as ErrMalformedReceipt.
func DecodeReceipt(data []byte) (*Receipt, error) {
	if len(data) != Length {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedReceipt, Length, len(data))
	}

	dec := bin.NewBinDecoder(data)

	version, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrMalformedReceipt, err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedReceipt, version)
	}

	nonce, err := dec.ReadNBytes(NonceLength)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrMalformedReceipt, err)
	}

	streamID, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: stream id: %v", ErrMalformedReceipt, err)
	}

	totalReceived, err := dec.ReadUint64(binary.BigEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: total received: %v", ErrMalformedReceipt, err)
	}

	tag, err := dec.ReadNBytes(TagLength)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformedReceipt, err)
	}

	r := &Receipt{
		Version:       version,
		StreamID:      streamID,
		TotalReceived: totalReceived,
		raw:           append([]byte(nil), data...),
	}
	copy(r.Nonce[:], nonce)
	copy(r.Tag[:], tag)
	return r, nil
}

// DecodeEncodedReceipt decodes a base64 receipt as sent in a request body.
// Padding is optional.
func DecodeEncodedReceipt(encoded []byte) (*Receipt, error) {
	trimmed := bytes.TrimRight(bytes.TrimSpace(encoded), "=")
	data := make([]byte, base64.RawStdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.RawStdEncoding.Decode(data, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedReceipt, err)
	}
	return DecodeReceipt(data[:n])
}

// writeBody writes the authenticated prefix. Shared by Body and the
// receipttest builder so both sides agree on one layout.
func writeBody(enc *bin.Encoder, version uint8, nonce []byte, streamID uint8, totalReceived uint64) error {
	if err := enc.WriteUint8(version); err != nil {
		return err
	}
	if err := enc.WriteBytes(nonce, false); err != nil {
		return err
	}
	if err := enc.WriteUint8(streamID); err != nil {
		return err
	}
	return enc.WriteUint64(totalReceived, binary.BigEndian)
}

// EncodeReceiptBody returns the authenticated prefix for the given fields.
// Issuers sign this with the receipt secret and append the tag.
func EncodeReceiptBody(nonce [NonceLength]byte, streamID uint8, totalReceived uint64) []byte {
	var buf bytes.Buffer
	_ = writeBody(bin.NewBinEncoder(&buf), Version, nonce[:], streamID, totalReceived)
	return buf.Bytes()
}
