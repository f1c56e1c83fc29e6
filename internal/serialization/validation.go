package serialization

import (
	"fmt"
	"sort"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize = 64 * 1024 * 1024 // 64MB - maximum JSON header size
	MaxFrameCount = 1_000_000        // Maximum number of frames in an envelope
	MaxDataSize   = 1 << 40          // 1TB - maximum data section size
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default, recommended for production).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks counts and bounds but not overlap or alignment.
	ValidationNormal
	// ValidationNone skips validation (dangerous! Use only with trusted input).
	ValidationNone
)

// String returns the level name.
func (l ValidationLevel) String() string {
	switch l {
	case ValidationStrict:
		return "strict"
	case ValidationNormal:
		return "normal"
	case ValidationNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseValidationLevel maps a level name to a ValidationLevel.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch s {
	case "strict", "":
		return ValidationStrict, nil
	case "normal":
		return ValidationNormal, nil
	case "none":
		return ValidationNone, nil
	default:
		return ValidationStrict, fmt.Errorf("unknown validation level %q", s)
	}
}

// ValidateFrameOffsets checks frames for negative sizes, out-of-bounds access,
// overlap and misalignment. Malformed envelopes could otherwise alias one
// frame's bytes into another.
func ValidateFrameOffsets(frames []FrameMeta, dataSize int64) error {
	if len(frames) > MaxFrameCount {
		return &ValidationError{
			Type:    "too_many_frames",
			Frame:   -1,
			Frame2:  -1,
			Details: fmt.Sprintf("got %d, max %d", len(frames), MaxFrameCount),
		}
	}

	if err := validateBounds(frames, dataSize); err != nil {
		return err
	}

	// Sort frame indices by offset for overlap detection.
	order := make([]int, len(frames))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frames[order[a]].Offset < frames[order[b]].Offset
	})

	for k, i := range order {
		f := frames[i]
		if f.Offset%FrameAlignment != 0 {
			return &ValidationError{
				Type:    "misaligned",
				Frame:   i,
				Frame2:  -1,
				Details: fmt.Sprintf("offset %d is not a multiple of %d", f.Offset, FrameAlignment),
			}
		}
		if k < len(order)-1 {
			j := order[k+1]
			next := frames[j]
			if f.Offset+f.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Frame:   i,
					Frame2:  j,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						f.Offset, f.Offset+f.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

func validateBounds(frames []FrameMeta, dataSize int64) error {
	for i, f := range frames {
		// Negative values would wrap when converted to slice indices.
		if f.Offset < 0 || f.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Frame:   i,
				Frame2:  -1,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", f.Offset, f.Size),
			}
		}
		if f.Offset > dataSize || f.Size > dataSize-f.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Frame:   i,
				Frame2:  -1,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", f.Offset, f.Size, dataSize),
			}
		}
	}
	return nil
}

// ValidateHeader performs header validation at the requested level.
func ValidateHeader(h *Header, frameCount uint32, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header says %d", ErrUnsupportedVersion, h.FormatVersion)
	}

	if len(h.Frames) > MaxFrameCount {
		return &ValidationError{
			Type:    "too_many_frames",
			Frame:   -1,
			Frame2:  -1,
			Details: fmt.Sprintf("got %d, max %d", len(h.Frames), MaxFrameCount),
		}
	}

	if uint64(len(h.Frames)) != uint64(frameCount) {
		return &ValidationError{
			Type:    "frame_count",
			Frame:   -1,
			Frame2:  -1,
			Details: fmt.Sprintf("fixed header declares %d frames, JSON header lists %d", frameCount, len(h.Frames)),
		}
	}

	if len(h.Object) == 0 {
		return &ValidationError{
			Type:    "missing_object",
			Frame:   -1,
			Frame2:  -1,
			Details: "envelope carries no object header",
		}
	}

	if level == ValidationStrict {
		return ValidateFrameOffsets(h.Frames, dataSize)
	}
	return validateBounds(h.Frames, dataSize)
}
