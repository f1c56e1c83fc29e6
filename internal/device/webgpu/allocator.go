//go:build windows

// Package webgpu implements device.Allocator on a WebGPU adapter.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/frames/internal/device"
)

// copyAlignment is the granularity of buffer copies on the queue.
const copyAlignment = 4

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Buffer is a device allocation made by an Allocator.
type Buffer struct {
	owner    *Allocator
	buffer   *wgpu.Buffer
	size     int    // Logical size
	capacity uint64 // Size class of the pooled allocation

	once sync.Once
}

// Len returns the logical size in bytes.
func (b *Buffer) Len() int {
	return b.size
}

// Device returns device.WebGPU.
func (b *Buffer) Device() device.Device {
	return device.WebGPU
}

// Release returns the allocation to the owner's pool. Subsequent calls are no-ops.
func (b *Buffer) Release() {
	b.once.Do(func() {
		b.owner.pool.Put(b.buffer, b.capacity)
		b.owner.live.Add(-int64(b.size))
		b.buffer = nil
	})
}

// Allocator allocates WebGPU storage buffers and copies to and from them.
type Allocator struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	pool     *BufferPool

	live atomic.Int64
}

// New creates an allocator on the highest performance adapter.
// Returns an error if WebGPU is not available or initialization fails.
func New() (alloc *Allocator, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			alloc = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}

	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Allocator{
		instance: instance,
		adapter:  adapter,
		device:   dev,
		queue:    queue,
		pool:     NewBufferPool(dev, storageUsage),
	}, nil
}

// IsAvailable reports whether a WebGPU adapter can be obtained.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Release frees pooled buffers and the device. Buffers still held by callers
// must not be used afterwards.
func (a *Allocator) Release() {
	a.pool.Clear()
	a.queue.Release()
	a.device.Release()
	a.adapter.Release()
	a.instance.Release()
}

// Device returns device.WebGPU.
func (a *Allocator) Device() device.Device {
	return device.WebGPU
}

// LiveBytes returns the logical size of all unreleased buffers.
func (a *Allocator) LiveBytes() int64 {
	return a.live.Load()
}

// PoolStats returns buffer pool usage.
func (a *Allocator) PoolStats() PoolStats {
	return a.pool.Stats()
}

// Alloc allocates a buffer of size bytes. Contents are undefined.
func (a *Allocator) Alloc(size int) (device.Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, device.ErrNegativeSize)
	}
	buf, capacity := a.pool.Acquire(padded(size))
	a.live.Add(int64(size))
	return &Buffer{owner: a, buffer: buf, size: size, capacity: capacity}, nil
}

// ToDevice uploads data into a new buffer through a mapped staging buffer.
func (a *Allocator) ToDevice(data []byte) (device.Buffer, error) {
	out, err := a.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return out, nil
	}
	dst := out.(*Buffer)
	size := padded(len(data))

	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc | wgpu.BufferUsageMapWrite,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*byte)(mappedPtr), size), data)
	staging.Unmap()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst.buffer, 0, size)
	a.queue.Submit(encoder.Finish(nil))

	return dst, nil
}

// ToHost reads buf back into a new host slice. It blocks until the copy completes.
func (a *Allocator) ToHost(buf device.Buffer) ([]byte, error) {
	src, err := a.own(buf)
	if err != nil {
		return nil, err
	}
	if src.size == 0 {
		return []byte{}, nil
	}
	size := padded(src.size)

	// Storage buffers can't be mapped directly.
	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src.buffer, 0, staging, 0, size)
	a.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(a.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	out := make([]byte, src.size)
	copy(out, mapped)
	staging.Unmap()

	return out, nil
}

// Owns reports whether buf was allocated by a.
func (a *Allocator) Owns(buf device.Buffer) bool {
	b, ok := buf.(*Buffer)
	return ok && b.owner == a
}

func (a *Allocator) own(buf device.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b.owner != a {
		return nil, device.ErrForeignBuffer
	}
	if b.buffer == nil {
		return nil, device.ErrReleased
	}
	return b, nil
}

// padded rounds n up to the copy alignment. Zero becomes one aligned unit so
// that every buffer is a valid copy target.
func padded(n int) uint64 {
	if n <= 0 {
		return copyAlignment
	}
	//nolint:gosec // G115: n is positive
	return (uint64(n) + copyAlignment - 1) &^ (copyAlignment - 1)
}

var _ device.Allocator = (*Allocator)(nil)
