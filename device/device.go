// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes the memory domains and the allocator capability the
// codec uses to move frames between device and host memory.
package device

import (
	"github.com/born-ml/frames/internal/device"
)

// Device is a memory domain.
type Device = device.Device

// Device constants.
const (
	CPU      Device = device.CPU
	CUDA     Device = device.CUDA
	Vulkan   Device = device.Vulkan
	Metal    Device = device.Metal
	WebGPU   Device = device.WebGPU
	Emulated Device = device.Emulated
)

// Buffer is one contiguous allocation in device memory.
type Buffer = device.Buffer

// Allocator allocates device memory and copies between device and host.
type Allocator = device.Allocator

// EmulatedAllocator backs device buffers with host memory.
type EmulatedAllocator = device.EmulatedAllocator

// EmulatedStats reports emulated allocator usage.
type EmulatedStats = device.EmulatedStats

// Allocator errors.
var (
	ErrReleased      = device.ErrReleased
	ErrForeignBuffer = device.ErrForeignBuffer
	ErrNegativeSize  = device.ErrNegativeSize
)

// NewEmulated creates an allocator whose buffers live in host memory but
// behave like device allocations.
func NewEmulated() *EmulatedAllocator {
	return device.NewEmulated()
}

// IsDeviceBuffer reports whether b is a live buffer in accelerator memory.
func IsDeviceBuffer(b Buffer) bool {
	return device.IsDeviceBuffer(b)
}
