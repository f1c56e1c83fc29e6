//go:build windows

package webgpu

import (
	"math/bits"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

const (
	minClassSize = 256 // Smallest pooled allocation
	maxPerClass  = 32  // Max idle buffers kept per size class
)

// PoolStats reports buffer pool usage.
type PoolStats struct {
	Allocated uint64 // Buffers created on the device
	Returned  uint64 // Buffers handed back to the pool
	Hits      uint64 // Acquires served from the pool
	Misses    uint64 // Acquires that created a buffer
	Idle      int    // Buffers currently pooled
}

// BufferPool reuses device buffers of the same usage and size class.
// Sizes are rounded up to a power of two so that a returned buffer can serve
// any later request in its class.
type BufferPool struct {
	device *wgpu.Device
	usage  wgpu.BufferUsage

	mu    sync.Mutex
	idle  map[uint64][]*wgpu.Buffer
	stats PoolStats
}

// NewBufferPool creates a pool of buffers with the given usage.
func NewBufferPool(device *wgpu.Device, usage wgpu.BufferUsage) *BufferPool {
	return &BufferPool{
		device: device,
		usage:  usage,
		idle:   make(map[uint64][]*wgpu.Buffer),
	}
}

// classSize returns the capacity of the size class holding size bytes.
func classSize(size uint64) uint64 {
	if size <= minClassSize {
		return minClassSize
	}
	return 1 << bits.Len64(size-1)
}

// Acquire returns a buffer of at least size bytes and its capacity.
func (p *BufferPool) Acquire(size uint64) (*wgpu.Buffer, uint64) {
	class := classSize(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if free := p.idle[class]; len(free) > 0 {
		buf := free[len(free)-1]
		p.idle[class] = free[:len(free)-1]
		p.stats.Hits++
		p.stats.Idle--
		return buf, class
	}

	p.stats.Misses++
	p.stats.Allocated++
	buf := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: p.usage,
		Size:  class,
	})
	return buf, class
}

// Put returns a buffer obtained from Acquire. If its class is full the
// buffer is released.
func (p *BufferPool) Put(buf *wgpu.Buffer, class uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Returned++
	if len(p.idle[class]) >= maxPerClass {
		buf.Release()
		return
	}
	p.idle[class] = append(p.idle[class], buf)
	p.stats.Idle++
}

// Clear releases all idle buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class, free := range p.idle {
		for _, buf := range free {
			buf.Release()
		}
		delete(p.idle, class)
	}
	p.stats.Idle = 0
}

// Stats returns a snapshot of pool usage.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
