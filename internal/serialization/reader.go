package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ReaderOptions configures the behavior of Decode.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// DefaultReaderOptions returns options with checksum validation and strict checks.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{ValidationLevel: ValidationStrict}
}

// Decode reads one envelope from r.
//
// The returned payloads alias a single buffer holding the data section.
func Decode(r io.Reader, opts ReaderOptions) (*Envelope, error) {
	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixedHeader); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", truncated(err))
	}

	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(fixedHeader[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	env := &Envelope{
		Flags: binary.LittleEndian.Uint32(fixedHeader[8:12]),
	}
	frameCount := binary.LittleEndian.Uint32(fixedHeader[frameCountOffset : frameCountOffset+4])
	headerSize := binary.LittleEndian.Uint64(fixedHeader[headerSizeOffset : headerSizeOffset+8])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[dataSizeOffset : dataSizeOffset+8])
	copy(env.Checksum[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > MaxDataSize {
		return nil, ErrDataTooLarge
	}
	if frameCount > MaxFrameCount {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyFrames, frameCount, MaxFrameCount)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", truncated(err))
	}
	if err := json.Unmarshal(headerBytes, &env.Header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize bounded by MaxHeaderSize above
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	if padding := alignUp(currentPos) - currentPos; padding > 0 {
		if _, err := io.CopyN(io.Discard, r, padding); err != nil {
			return nil, fmt.Errorf("failed to read padding: %w", truncated(err))
		}
	}

	// Grow the buffer as bytes arrive so a lying size field cannot force a
	// huge allocation up front.
	var data bytes.Buffer
	//nolint:gosec // G115: dataSize bounded by MaxDataSize above
	if _, err := io.CopyN(&data, r, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", truncated(err))
	}

	//nolint:gosec // G115: dataSize bounded by MaxDataSize above
	if err := ValidateHeader(&env.Header, frameCount, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(envelopeChecksum(headerBytes, data.Bytes()), env.Checksum); err != nil {
			return nil, err
		}
	}

	raw := data.Bytes()
	env.Payloads = make([][]byte, len(env.Header.Frames))
	for i, f := range env.Header.Frames {
		n := int64(len(raw))
		if f.Offset < 0 || f.Size < 0 || f.Offset > n || f.Size > n-f.Offset {
			return nil, &ValidationError{
				Type:    "out_of_bounds",
				Frame:   i,
				Frame2:  -1,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", f.Offset, f.Size, len(raw)),
			}
		}
		// Full slice expression: appending to one payload must not clobber the next.
		env.Payloads[i] = raw[f.Offset : f.Offset+f.Size : f.Offset+f.Size]
	}

	return env, nil
}

// DecodeBytes decodes an envelope held in b.
func DecodeBytes(b []byte, opts ReaderOptions) (*Envelope, error) {
	return Decode(bytes.NewReader(b), opts)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}
