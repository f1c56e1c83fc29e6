package serialize

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrContractViolation means a Serialize implementation returned a frame that
	// is neither a host view nor a live device buffer.
	ErrContractViolation = errors.New("serialization contract violation")
	// ErrFrameIntegrity means a header disagrees with the frames it describes.
	ErrFrameIntegrity = errors.New("frame integrity error")
	// ErrMissingKey means a header lacks one of the reserved keys.
	ErrMissingKey = fmt.Errorf("%w: missing header key", ErrFrameIntegrity)
	// ErrUnresolvedType means a type token is not registered.
	ErrUnresolvedType = errors.New("unresolved type")
	// ErrNoAllocator means a frame must migrate but the codec has no allocator.
	ErrNoAllocator = errors.New("no device allocator configured")
	// ErrReservedKey means an object tried to set a key owned by the codec.
	ErrReservedKey = errors.New("reserved header key")
	// ErrDuplicateType means a type name or code is already registered.
	ErrDuplicateType = errors.New("type already registered")
)

// IntegrityError describes a header/frame disagreement.
type IntegrityError struct {
	Index  int    // Frame index, -1 when the error is about the header as a whole
	Reason string // What disagreed
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: frame %d: %s", ErrFrameIntegrity, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrFrameIntegrity, e.Reason)
}

// Unwrap makes errors.Is(err, ErrFrameIntegrity) hold.
func (e *IntegrityError) Unwrap() error {
	return ErrFrameIntegrity
}

// ContractError describes a Serialize implementation that broke the contract.
type ContractError struct {
	Type   string // Type name of the offending object
	Index  int    // Frame index, -1 when not about a frame
	Reason string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s: frame %d: %s", ErrContractViolation, e.Type, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrContractViolation, e.Type, e.Reason)
}

// Unwrap makes errors.Is(err, ErrContractViolation) hold.
func (e *ContractError) Unwrap() error {
	return ErrContractViolation
}

// errorKind maps an error to the label used for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrContractViolation):
		return "contract_violation"
	case errors.Is(err, ErrFrameIntegrity):
		return "frame_integrity"
	case errors.Is(err, ErrUnresolvedType):
		return "unresolved_type"
	case errors.Is(err, ErrNoAllocator):
		return "no_allocator"
	default:
		return "other"
	}
}
