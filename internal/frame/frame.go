// Package frame defines the unit of serialized object storage: one contiguous
// buffer that is either a host memory view or a device allocation.
package frame

import (
	"fmt"

	"github.com/born-ml/frames/internal/device"
)

// Placement says where a frame's bytes live.
type Placement uint8

// Frame placements. The zero value is invalid so that an uninitialized Frame
// is never mistaken for an empty host view.
const (
	PlacementInvalid Placement = iota
	PlacementHost
	PlacementDevice
)

// String returns a human-readable placement name.
func (p Placement) String() string {
	switch p {
	case PlacementHost:
		return "host"
	case PlacementDevice:
		return "device"
	default:
		return "invalid"
	}
}

// Frame is a tagged variant: Host(bytes) or Device(buffer).
type Frame struct {
	placement Placement
	host      []byte
	buf       device.Buffer
}

// Host wraps b as a host frame. The slice is borrowed, not copied.
func Host(b []byte) Frame {
	return Frame{placement: PlacementHost, host: b}
}

// Device wraps buf as a device frame. The buffer is borrowed, not copied.
func Device(buf device.Buffer) Frame {
	return Frame{placement: PlacementDevice, buf: buf}
}

// Placement returns where the frame lives.
func (f Frame) Placement() Placement {
	return f.placement
}

// IsDevice reports whether f is a device frame backed by accelerator memory.
func (f Frame) IsDevice() bool {
	return f.placement == PlacementDevice && device.IsDeviceBuffer(f.buf)
}

// IsHost reports whether f is a host frame.
func (f Frame) IsHost() bool {
	return f.placement == PlacementHost
}

// Valid reports whether f is a host view or a device frame with a live buffer.
func (f Frame) Valid() bool {
	switch f.placement {
	case PlacementHost:
		return true
	case PlacementDevice:
		return f.buf != nil
	default:
		return false
	}
}

// Len returns the frame size in bytes.
func (f Frame) Len() int {
	switch f.placement {
	case PlacementHost:
		return len(f.host)
	case PlacementDevice:
		if f.buf == nil {
			return 0
		}
		return f.buf.Len()
	default:
		return 0
	}
}

// Bytes returns the host view. ok is false for device frames.
func (f Frame) Bytes() (b []byte, ok bool) {
	if f.placement != PlacementHost {
		return nil, false
	}
	return f.host, true
}

// Buffer returns the device buffer. ok is false for host frames.
func (f Frame) Buffer() (buf device.Buffer, ok bool) {
	if f.placement != PlacementDevice {
		return nil, false
	}
	return f.buf, true
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	if f.placement == PlacementDevice && f.buf != nil {
		return fmt.Sprintf("Frame(%s %s, %d bytes)", f.placement, f.buf.Device(), f.Len())
	}
	return fmt.Sprintf("Frame(%s, %d bytes)", f.placement, f.Len())
}

// Release frees device memory held by the device frames in fs.
// Host frames are left alone; their memory belongs to the Go heap.
func Release(fs []Frame) {
	for _, f := range fs {
		if buf, ok := f.Buffer(); ok && buf != nil {
			buf.Release()
		}
	}
}

// TotalLen returns the sum of frame lengths.
func TotalLen(fs []Frame) int64 {
	var n int64
	for _, f := range fs {
		n += int64(f.Len())
	}
	return n
}
