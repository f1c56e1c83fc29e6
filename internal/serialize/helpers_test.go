package serialize

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/frame"
)

const blobType = "test.blob"

// blob is a minimal participant: a label plus whatever frames it was built with.
type blob struct {
	label  string
	frames []frame.Frame
}

func (b *blob) TypeName() string { return blobType }

func (b *blob) Serialize() (Header, []frame.Frame, error) {
	var h Header
	if err := h.Set("label", b.label); err != nil {
		return Header{}, nil, err
	}
	return h, b.frames, nil
}

func (b *blob) Release() {
	frame.Release(b.frames)
}

// unregistered serializes fine but is never added to a registry.
type unregistered struct{}

func (unregistered) TypeName() string { return "test.unregistered" }

func (unregistered) Serialize() (Header, []frame.Frame, error) {
	return Header{}, nil, nil
}

// newTestRegistry registers blob and counts deserializer calls.
func newTestRegistry(t *testing.T) (*Registry, *atomic.Int64) {
	t.Helper()
	calls := new(atomic.Int64)
	r := NewRegistry()
	require.NoError(t, r.Register(blobType, func(h Header, frames []frame.Frame) (Serializable, error) {
		calls.Add(1)
		var label string
		if err := h.Get("label", &label); err != nil {
			return nil, err
		}
		return &blob{label: label, frames: frames}, nil
	}))
	return r, calls
}

func newTestCodec(t *testing.T, opts ...Option) (*Codec, *device.EmulatedAllocator, *atomic.Int64) {
	t.Helper()
	reg, calls := newTestRegistry(t)
	alloc := device.NewEmulated()
	opts = append([]Option{WithRegistry(reg), WithAllocator(alloc)}, opts...)
	return New(opts...), alloc, calls
}

func devFrame(t *testing.T, alloc *device.EmulatedAllocator, data []byte) frame.Frame {
	t.Helper()
	buf, err := alloc.ToDevice(data)
	require.NoError(t, err)
	return frame.Device(buf)
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// frameState is the observable state of one frame: placement and content.
type frameState struct {
	Device bool
	Data   []byte
}

func observe(t *testing.T, alloc *device.EmulatedAllocator, frames []frame.Frame) []frameState {
	t.Helper()
	out := make([]frameState, len(frames))
	for i, f := range frames {
		if buf, ok := f.Buffer(); ok {
			data, err := alloc.ToHost(buf)
			require.NoError(t, err)
			out[i] = frameState{Device: f.IsDevice(), Data: data}
			continue
		}
		data, _ := f.Bytes()
		out[i] = frameState{Data: append([]byte{}, data...)}
	}
	return out
}

// failingAllocator wraps an emulated allocator and fails ToDevice on the nth call.
type failingAllocator struct {
	*device.EmulatedAllocator
	failOn int
	calls  int
}

func (a *failingAllocator) ToDevice(data []byte) (device.Buffer, error) {
	a.calls++
	if a.calls == a.failOn {
		return nil, errDeviceFull
	}
	return a.EmulatedAllocator.ToDevice(data)
}

var errDeviceFull = errors.New("device out of memory")
