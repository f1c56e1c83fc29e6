package device

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// emulatedBuffer is a host allocation posing as device memory.
type emulatedBuffer struct {
	owner *EmulatedAllocator
	data  []byte
	size  int

	released bool
	mu       sync.Mutex // For safe deallocation
}

// Len returns the logical size in bytes.
func (b *emulatedBuffer) Len() int {
	return b.size
}

// Device returns Emulated.
func (b *emulatedBuffer) Device() Device {
	return Emulated
}

// Release frees the memory. Subsequent calls are no-ops.
func (b *emulatedBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.data = nil
	b.owner.live.Add(-int64(b.size))
	b.owner.released.Add(1)
}

// snapshot copies the buffer contents out. Returns ErrReleased after Release.
func (b *emulatedBuffer) snapshot() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	out := make([]byte, b.size)
	copy(out, b.data)
	return out, nil
}

// EmulatedAllocator backs "device" buffers with host memory.
//
// Every copy in or out allocates fresh memory, so buffers behave like real
// device allocations: host code can only see their contents through ToHost.
type EmulatedAllocator struct {
	allocated atomic.Uint64
	released  atomic.Uint64
	live      atomic.Int64
}

// NewEmulated creates a new emulated allocator.
func NewEmulated() *EmulatedAllocator {
	return &EmulatedAllocator{}
}

// Device returns Emulated.
func (a *EmulatedAllocator) Device() Device {
	return Emulated
}

// Alloc allocates a zeroed buffer of size bytes.
func (a *EmulatedAllocator) Alloc(size int) (Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc %d bytes: %w", size, ErrNegativeSize)
	}
	buf := &emulatedBuffer{
		owner: a,
		data:  make([]byte, size),
		size:  size,
	}
	a.allocated.Add(1)
	a.live.Add(int64(size))
	return buf, nil
}

// ToHost copies buf into a new host slice.
func (a *EmulatedAllocator) ToHost(buf Buffer) ([]byte, error) {
	eb, err := a.own(buf)
	if err != nil {
		return nil, err
	}
	return eb.snapshot()
}

// ToDevice copies data into a new emulated buffer.
func (a *EmulatedAllocator) ToDevice(data []byte) (Buffer, error) {
	buf, err := a.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	eb := buf.(*emulatedBuffer)
	copy(eb.data, data)
	return eb, nil
}

// Owns reports whether buf was allocated by a.
func (a *EmulatedAllocator) Owns(buf Buffer) bool {
	eb, ok := buf.(*emulatedBuffer)
	return ok && eb.owner == a
}

// Write copies data into buf at offset. It is the emulated counterpart of a
// queue write on a real device and is mostly useful for building test fixtures.
func (a *EmulatedAllocator) Write(buf Buffer, offset int, data []byte) error {
	eb, err := a.own(buf)
	if err != nil {
		return err
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.released {
		return ErrReleased
	}
	if offset < 0 || offset+len(data) > eb.size {
		return fmt.Errorf("write [%d, %d) outside buffer of %d bytes", offset, offset+len(data), eb.size)
	}
	copy(eb.data[offset:], data)
	return nil
}

// EmulatedStats reports allocator usage.
type EmulatedStats struct {
	Allocated uint64 // Buffers allocated since creation
	Released  uint64 // Buffers freed since creation
	LiveBytes int64  // Bytes currently held by unreleased buffers
}

// Stats returns allocator usage counters.
func (a *EmulatedAllocator) Stats() EmulatedStats {
	return EmulatedStats{
		Allocated: a.allocated.Load(),
		Released:  a.released.Load(),
		LiveBytes: a.live.Load(),
	}
}

func (a *EmulatedAllocator) own(buf Buffer) (*emulatedBuffer, error) {
	eb, ok := buf.(*emulatedBuffer)
	if !ok || eb.owner != a {
		return nil, ErrForeignBuffer
	}
	return eb, nil
}

// Compile-time check.
var _ Allocator = (*EmulatedAllocator)(nil)
