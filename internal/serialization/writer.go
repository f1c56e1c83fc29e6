package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Encode writes env to w.
//
// Encode fills in the format version, a fresh id (unless one is set), the
// creation time and the frame layout. The object header in env.Header.Object
// is written verbatim.
func Encode(w io.Writer, env *Envelope) error {
	if len(env.Header.Object) == 0 {
		return fmt.Errorf("envelope has no object header")
	}
	if len(env.Payloads) > MaxFrameCount {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyFrames, len(env.Payloads), MaxFrameCount)
	}

	header := env.Header
	header.FormatVersion = FormatVersion
	if header.ID == uuid.Nil {
		header.ID = uuid.New()
	}
	header.CreatedAt = time.Now().UTC()

	frames, dataSize := layout(env.Payloads)
	header.Frames = frames

	data := make([]byte, dataSize)
	for i, p := range env.Payloads {
		copy(data[frames[i].Offset:], p)
	}

	// Marshal header to JSON
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	checksum := envelopeChecksum(headerJSON, data)

	// Write fixed header (64 bytes)
	fixedHeader := make([]byte, FixedHeaderSize)

	// 0x00-0x03: Magic bytes "BFRM"
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	// 0x08-0x0B: Flags
	binary.LittleEndian.PutUint32(fixedHeader[8:12], env.Flags)

	// 0x0C-0x0F: Frame count
	//nolint:gosec // G115: frame count bounded by MaxFrameCount above
	binary.LittleEndian.PutUint32(fixedHeader[frameCountOffset:frameCountOffset+4], uint32(len(frames)))

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[headerSizeOffset:headerSizeOffset+8], uint64(len(headerJSON)))

	// 0x18-0x1F: Data size
	//nolint:gosec // G115: dataSize is a sum of slice lengths, never negative
	binary.LittleEndian.PutUint64(fixedHeader[dataSizeOffset:dataSizeOffset+8], uint64(dataSize))

	// 0x20-0x3F: SHA-256 checksum
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}

	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	// Pad so that the data section starts 64-byte aligned
	currentPos := int64(FixedHeaderSize) + int64(len(headerJSON))
	if padding := alignUp(currentPos) - currentPos; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame data: %w", err)
	}

	env.Header = header
	env.Checksum = checksum
	return nil
}

// EncodeBytes encodes env into a new byte slice.
func EncodeBytes(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
