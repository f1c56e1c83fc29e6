package serialization

import (
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Format constants.
const (
	MagicBytes       = "BFRM"
	FormatVersion    = 1
	FrameAlignment   = 64   // Align frame data to 64 bytes
	FixedHeaderSize  = 64   // Fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset   = 0x20 // Checksum offset in fixed header
	frameCountOffset = 0x0C
	headerSizeOffset = 0x10
	dataSizeOffset   = 0x18
)

// Flags for the envelope.
const (
	FlagHasDeviceFrames uint32 = 1 << 0 // bit 0: at least one frame was device resident
	FlagHasMetadata     uint32 = 1 << 1 // bit 1: object specific header keys present
)

// FrameMeta locates one frame in the data section.
type FrameMeta struct {
	Offset int64 `json:"offset"` // Bytes from start of data section
	Size   int64 `json:"size"`   // Size in bytes
}

// Header is the JSON header of an envelope.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the envelope format
	ID            uuid.UUID         `json:"id"`                 // Unique id of this envelope
	CreatedAt     time.Time         `json:"created_at"`         // When the envelope was encoded
	Object        json.RawMessage   `json:"object"`             // Object header as produced by the codec
	Frames        []FrameMeta       `json:"frames"`             // Frame layout
	Metadata      map[string]string `json:"metadata,omitempty"` // Transport metadata
}

// Envelope is a decoded or to-be-encoded envelope.
type Envelope struct {
	Header   Header
	Flags    uint32
	Checksum [ChecksumSize]byte
	// Payloads holds frame bytes in order. After Decode they alias a single
	// data buffer owned by the envelope.
	Payloads [][]byte
}

// HasFlag reports whether flag is set.
func (e *Envelope) HasFlag(flag uint32) bool {
	return e.Flags&flag != 0
}

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// envelopeChecksum is the SHA-256 of the JSON header followed by the data
// section. Covering the header protects the object's placement flags.
func envelopeChecksum(headerJSON, data []byte) [ChecksumSize]byte {
	h := sha256.New()
	_, _ = h.Write(headerJSON)
	_, _ = h.Write(data)
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// alignUp rounds n up to the next multiple of FrameAlignment.
func alignUp(n int64) int64 {
	return (n + FrameAlignment - 1) / FrameAlignment * FrameAlignment
}

// layout computes aligned frame offsets and the resulting data section size.
func layout(payloads [][]byte) ([]FrameMeta, int64) {
	frames := make([]FrameMeta, len(payloads))
	var offset int64
	for i, p := range payloads {
		offset = alignUp(offset)
		frames[i] = FrameMeta{Offset: offset, Size: int64(len(p))}
		offset += int64(len(p))
	}
	return frames, offset
}
