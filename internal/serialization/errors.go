package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: envelope may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrDataTooLarge       = errors.New("data section exceeds maximum size")
	ErrTooManyFrames      = errors.New("too many frames in envelope")
	ErrTruncated          = errors.New("envelope truncated")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "offset_overlap", "out_of_bounds")
	Frame   int    // Primary frame index involved, -1 if none
	Frame2  int    // Secondary frame index (for overlap errors), -1 if none
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Frame2 >= 0 {
		return fmt.Sprintf("%s: frames %d and %d: %s", e.Type, e.Frame, e.Frame2, e.Details)
	}
	if e.Frame >= 0 {
		return fmt.Sprintf("%s: frame %d: %s", e.Type, e.Frame, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
