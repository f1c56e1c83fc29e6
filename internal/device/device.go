// Package device describes where frame memory lives and the allocator capability
// used to move bytes between host and accelerator memory.
package device

import "errors"

// Device represents the memory domain a buffer is resident in.
type Device int

// Supported memory domains.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
	// Emulated is host RAM presented through the device allocator interface.
	// It stands in for an accelerator on machines without one.
	Emulated
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	case Emulated:
		return "Emulated"
	default:
		return "Unknown"
	}
}

// IsAccelerator reports whether memory on d is not directly addressable by host code.
func (d Device) IsAccelerator() bool {
	switch d {
	case CUDA, Vulkan, Metal, WebGPU, Emulated:
		return true
	default:
		return false
	}
}

// Common errors.
var (
	ErrReleased      = errors.New("device buffer already released")
	ErrForeignBuffer = errors.New("buffer was not allocated by this allocator")
	ErrNegativeSize  = errors.New("negative buffer size")
)

// Buffer is one contiguous allocation in device memory.
type Buffer interface {
	// Len returns the logical size in bytes.
	Len() int
	// Device returns the memory domain the buffer lives in.
	Device() Device
	// Release frees the allocation. Calling it more than once is a no-op.
	Release()
}

// Allocator allocates device memory and copies between device and host.
//
// ToHost and ToDevice are blocking: when they return, the copy is complete.
type Allocator interface {
	Device() Device
	Alloc(size int) (Buffer, error)
	// ToHost copies buf into a newly allocated host slice owned by the caller.
	ToHost(buf Buffer) ([]byte, error)
	// ToDevice copies data into a newly allocated device buffer owned by the caller.
	ToDevice(data []byte) (Buffer, error)
	// Owns reports whether buf was allocated by this allocator.
	Owns(buf Buffer) bool
}

// IsDeviceBuffer reports whether b is a live buffer resident in accelerator memory.
func IsDeviceBuffer(b Buffer) bool {
	return b != nil && b.Device().IsAccelerator()
}
