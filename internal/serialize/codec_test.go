package serialize

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/log"
	"github.com/born-ml/frames/internal/metrics"
)

// TestExamplePair covers a 16-byte device frame next to an 8-byte host view.
func TestExamplePair(t *testing.T) {
	c, alloc, _ := newTestCodec(t)

	dev := pattern(16, 0x10)
	host := pattern(8, 0x80)
	obj := &blob{label: "pair", frames: []frame.Frame{devFrame(t, alloc, dev), frame.Host(host)}}

	h, frames, err := c.DeviceSerialize(obj)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, h.IsDevice)
	assert.Equal(t, []int64{16, 8}, h.Lengths)
	assert.Equal(t, TypeToken{Name: blobType, Code: TypeCode(blobType)}, h.Type)

	data, err := json.Marshal(h)
	require.NoError(t, err)
	want := fmt.Sprintf(
		`{"type-serialized":{"name":%q,"code":"%d"},"is-cuda":[true,false],"lengths":[16,8],"label":"pair"}`,
		blobType, TypeCode(blobType))
	assert.Equal(t, want, string(data))

	// Device serialize borrows: same buffer, same backing array.
	assert.Equal(t, obj.frames[0], frames[0])
	hb, ok := frames[1].Bytes()
	require.True(t, ok)
	assert.Same(t, &host[0], &hb[0])

	hh, hostFrames, err := c.HostSerialize(obj)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, hh.IsDevice)
	for _, f := range hostFrames {
		assert.True(t, f.IsHost())
	}
	assert.Equal(t, []frameState{{Data: dev}, {Data: host}}, observe(t, alloc, hostFrames))

	got, err := c.HostDeserialize(hh, hostFrames)
	require.NoError(t, err)
	gb := got.(*blob)
	assert.Equal(t, "pair", gb.label)
	require.Len(t, gb.frames, 2)
	assert.Equal(t, []frameState{{Device: true, Data: dev}, {Data: host}}, observe(t, alloc, gb.frames))

	// Fresh device buffer, not the original.
	origBuf, _ := obj.frames[0].Buffer()
	newBuf, _ := gb.frames[0].Buffer()
	assert.NotSame(t, origBuf, newBuf)
}

func TestDeviceRoundTrip(t *testing.T) {
	c, alloc, calls := newTestCodec(t)
	obj := &blob{label: "x", frames: []frame.Frame{
		frame.Host(pattern(3, 1)),
		devFrame(t, alloc, pattern(5, 2)),
		frame.Host(nil),
	}}
	before := observe(t, alloc, obj.frames)

	h, frames, err := c.DeviceSerialize(obj)
	require.NoError(t, err)
	got, err := c.DeviceDeserialize(h, frames)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, "x", got.(*blob).label)
	assert.Equal(t, before, observe(t, alloc, got.(*blob).frames))
}

func TestHostRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		frames func(t *testing.T, alloc *device.EmulatedAllocator) []frame.Frame
	}{
		{"empty", func(*testing.T, *device.EmulatedAllocator) []frame.Frame { return nil }},
		{"device only", func(t *testing.T, a *device.EmulatedAllocator) []frame.Frame {
			return []frame.Frame{devFrame(t, a, pattern(32, 1)), devFrame(t, a, pattern(7, 9)), devFrame(t, a, nil)}
		}},
		{"host only", func(*testing.T, *device.EmulatedAllocator) []frame.Frame {
			return []frame.Frame{frame.Host(pattern(4, 3)), frame.Host([]byte{})}
		}},
		{"mixed", func(t *testing.T, a *device.EmulatedAllocator) []frame.Frame {
			return []frame.Frame{
				frame.Host(pattern(2, 5)),
				devFrame(t, a, pattern(64, 0)),
				frame.Host(pattern(9, 7)),
				devFrame(t, a, pattern(1, 1)),
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, alloc, _ := newTestCodec(t)
			obj := &blob{label: tt.name, frames: tt.frames(t, alloc)}
			before := observe(t, alloc, obj.frames)

			h, frames, err := c.HostSerialize(obj)
			require.NoError(t, err)
			for i, f := range frames {
				assert.True(t, f.IsHost(), "frame %d", i)
				assert.Equal(t, before[i].Device, h.IsDevice[i], "frame %d", i)
				assert.Equal(t, int64(len(before[i].Data)), h.Lengths[i], "frame %d", i)
			}

			got, err := c.HostDeserialize(h, frames)
			require.NoError(t, err)
			assert.Equal(t, tt.name, got.(*blob).label)
			assert.Equal(t, before, observe(t, alloc, got.(*blob).frames))
		})
	}
}

func TestHostRoundTripIdempotent(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	obj := &blob{label: "twice", frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(pattern(8, 1))}}

	h1, f1, err := c.HostSerialize(obj)
	require.NoError(t, err)
	once, err := c.HostDeserialize(h1, f1)
	require.NoError(t, err)

	h2, f2, err := c.HostSerialize(once)
	require.NoError(t, err)

	j1, err := json.Marshal(h1)
	require.NoError(t, err)
	j2, err := json.Marshal(h2)
	require.NoError(t, err)
	assert.JSONEq(t, string(j1), string(j2))
	assert.Equal(t, observe(t, alloc, f1), observe(t, alloc, f2))
}

func TestDeviceDeserializeTamperedFlag(t *testing.T) {
	for idx := 0; idx < 2; idx++ {
		t.Run(fmt.Sprintf("frame %d", idx), func(t *testing.T) {
			c, alloc, calls := newTestCodec(t)
			obj := &blob{frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(pattern(8, 0))}}

			h, frames, err := c.DeviceSerialize(obj)
			require.NoError(t, err)
			h.IsDevice[idx] = !h.IsDevice[idx]

			got, err := c.DeviceDeserialize(h, frames)
			assert.Nil(t, got)
			var ie *IntegrityError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, idx, ie.Index)
			assert.ErrorIs(t, err, ErrFrameIntegrity)
			assert.Zero(t, calls.Load())
		})
	}
}

func TestDeviceDeserializeShortFrames(t *testing.T) {
	c, alloc, calls := newTestCodec(t)
	obj := &blob{frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(pattern(8, 0))}}

	h, frames, err := c.DeviceSerialize(obj)
	require.NoError(t, err)

	_, err = c.DeviceDeserialize(h, frames[:1])
	assert.ErrorIs(t, err, ErrFrameIntegrity)

	hostH, hostFrames, err := c.HostSerialize(obj)
	require.NoError(t, err)
	_, err = c.HostDeserialize(hostH, hostFrames[:1])
	assert.ErrorIs(t, err, ErrFrameIntegrity)

	assert.Zero(t, calls.Load())
	assert.Equal(t, uint64(1), alloc.Stats().Allocated, "no copy before validation")
}

func TestDeviceDeserializeLengthMismatch(t *testing.T) {
	c, _, calls := newTestCodec(t)
	obj := &blob{frames: []frame.Frame{frame.Host(pattern(8, 0))}}

	h, frames, err := c.DeviceSerialize(obj)
	require.NoError(t, err)
	h.Lengths[0] = 9

	_, err = c.DeviceDeserialize(h, frames)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Index)

	_, err = c.HostDeserialize(h, frames)
	assert.ErrorIs(t, err, ErrFrameIntegrity)
	assert.Zero(t, calls.Load())
}

func TestDeviceSerializeContractViolation(t *testing.T) {
	c, _, _ := newTestCodec(t)

	tests := []struct {
		name  string
		obj   Serializable
		index int
	}{
		{"zero frame", &blob{frames: []frame.Frame{frame.Host(nil), {}}}, 1},
		{"nil device buffer", &blob{frames: []frame.Frame{frame.Device(nil)}}, 0},
		{"host memory device frame", &blob{frames: []frame.Frame{frame.Device(cpuBuffer{n: 4})}}, 0},
		{"nil object", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, frames, err := c.DeviceSerialize(tt.obj)
			assert.Nil(t, frames)
			var ce *ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.index, ce.Index)
			assert.ErrorIs(t, err, ErrContractViolation)

			_, _, err = c.HostSerialize(tt.obj)
			assert.ErrorIs(t, err, ErrContractViolation)
		})
	}
}

type cpuBuffer struct{ n int }

func (b cpuBuffer) Len() int              { return b.n }
func (b cpuBuffer) Device() device.Device { return device.CPU }
func (b cpuBuffer) Release()              {}

func TestUnresolvedType(t *testing.T) {
	c, alloc, _ := newTestCodec(t)

	_, _, err := c.DeviceSerialize(unregistered{})
	assert.ErrorIs(t, err, ErrUnresolvedType)

	h, frames, err := c.DeviceSerialize(&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0))}})
	require.NoError(t, err)

	other := New(WithRegistry(NewRegistry()), WithAllocator(alloc))
	_, err = other.DeviceDeserialize(h, frames)
	assert.ErrorIs(t, err, ErrUnresolvedType)

	hostH, hostFrames, err := c.HostSerialize(&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0))}})
	require.NoError(t, err)
	allocated := alloc.Stats().Allocated
	_, err = other.HostDeserialize(hostH, hostFrames)
	assert.ErrorIs(t, err, ErrUnresolvedType)
	assert.Equal(t, allocated, alloc.Stats().Allocated, "no copy for an unresolved type")
}

func TestHostDeserializeRejectsDeviceFrames(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	h, frames, err := c.DeviceSerialize(&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0))}})
	require.NoError(t, err)

	_, err = c.HostDeserialize(h, frames)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Index)
}

func TestNoAllocator(t *testing.T) {
	withAlloc, alloc, _ := newTestCodec(t)
	obj := &blob{frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0))}}
	h, frames, err := withAlloc.HostSerialize(obj)
	require.NoError(t, err)

	c := New(WithRegistry(withAlloc.Registry()))
	_, _, err = c.HostSerialize(obj)
	assert.ErrorIs(t, err, ErrNoAllocator)
	_, err = c.HostDeserialize(h, frames)
	assert.ErrorIs(t, err, ErrNoAllocator)

	// Host-only objects never need an allocator.
	hostOnly := &blob{frames: []frame.Frame{frame.Host(pattern(4, 0))}}
	h, frames, err = c.HostSerialize(hostOnly)
	require.NoError(t, err)
	_, err = c.HostDeserialize(h, frames)
	assert.NoError(t, err)
}

func TestHostDeserializeReleasesOnCopyFailure(t *testing.T) {
	reg, calls := newTestRegistry(t)
	alloc := &failingAllocator{EmulatedAllocator: device.NewEmulated(), failOn: 3}
	c := New(WithRegistry(reg), WithAllocator(alloc))

	h := Header{
		Type:     TypeToken{Name: blobType, Code: TypeCode(blobType)},
		IsDevice: []bool{true, false, true, true},
		Lengths:  []int64{4, 2, 8, 1},
	}
	require.NoError(t, h.Set("label", "x"))
	frames := []frame.Frame{
		frame.Host(pattern(4, 0)),
		frame.Host(pattern(2, 0)),
		frame.Host(pattern(8, 0)),
		frame.Host(pattern(1, 0)),
	}

	_, err := c.HostDeserialize(h, frames)
	assert.ErrorIs(t, err, errDeviceFull)
	assert.Zero(t, calls.Load())

	stats := alloc.Stats()
	assert.Equal(t, uint64(2), stats.Allocated)
	assert.Equal(t, uint64(2), stats.Released)
	assert.Zero(t, stats.LiveBytes)
}

func TestHostDeserializeReleasesOnDeserializeFailure(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	h := Header{
		Type:     TypeToken{Name: blobType, Code: TypeCode(blobType)},
		IsDevice: []bool{true},
		Lengths:  []int64{4},
	}
	// No "label" key: the deserializer fails after migration.
	_, err := c.HostDeserialize(h, []frame.Frame{frame.Host(pattern(4, 0))})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Zero(t, alloc.Stats().LiveBytes)
}

func TestCodecMetricsAndLogging(t *testing.T) {
	m := metrics.New("test")
	core, logs := observer.New(zapcore.DebugLevel)
	c, alloc, _ := newTestCodec(t, WithMetrics(m), WithLogger(log.NewFromZap(zap.New(core))))

	obj := &blob{frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(pattern(8, 0))}}
	h, frames, err := c.HostSerialize(obj)
	require.NoError(t, err)
	_, err = c.HostDeserialize(h, frames)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesMigrated(metrics.DirectionToHost)))
	assert.Equal(t, 16.0, testutil.ToFloat64(m.BytesMigrated(metrics.DirectionToHost)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesMigrated(metrics.DirectionToDevice)))

	h.Lengths[1] = 99
	_, err = c.HostDeserialize(h, frames)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors("frame_integrity")))

	assert.NotZero(t, logs.FilterMessage("host serialized").Len())
	warn := logs.FilterMessage("serialize failed").All()
	require.Len(t, warn, 1)
	assert.Equal(t, "host_deserialize", warn[0].ContextMap()["op"])
}
