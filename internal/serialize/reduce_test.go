package serialize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/parallel"
	"github.com/born-ml/frames/internal/serialization"
)

func TestReduceApply(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	host := pattern(8, 1)
	obj := &blob{label: "r", frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(host)}}

	red, err := c.Reduce(obj)
	require.NoError(t, err)
	require.Len(t, red.Payloads, 2)
	assert.Equal(t, pattern(16, 0), red.Payloads[0])
	assert.Same(t, &host[0], &red.Payloads[1][0], "host payloads are not copied")

	got, err := red.Apply()
	require.NoError(t, err)
	assert.Equal(t, observe(t, alloc, obj.frames), observe(t, alloc, got.(*blob).frames))
}

func TestReductionWithoutReconstruct(t *testing.T) {
	_, err := Reduction{}.Apply()
	assert.Error(t, err)
}

func TestCopySharesNoMemory(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	host := pattern(8, 1)
	obj := &blob{label: "c", frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0)), frame.Host(host)}}

	cp, err := c.Copy(obj)
	require.NoError(t, err)
	cb := cp.(*blob)
	assert.Equal(t, observe(t, alloc, obj.frames), observe(t, alloc, cb.frames))

	host[0] = 0xFF
	copied, _ := cb.frames[1].Bytes()
	assert.Equal(t, byte(1), copied[0])

	buf, _ := obj.frames[0].Buffer()
	require.NoError(t, alloc.Write(buf, 0, []byte{0xEE}))
	assert.Equal(t, pattern(4, 0), observe(t, alloc, cb.frames)[0].Data)
}

func TestMarshalUnmarshal(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	obj := &blob{label: "m", frames: []frame.Frame{
		devFrame(t, alloc, pattern(16, 0)),
		frame.Host(pattern(8, 9)),
		frame.Host(nil),
	}}

	data, err := c.Marshal(obj)
	require.NoError(t, err)

	env, err := serialization.DecodeBytes(data, serialization.DefaultReaderOptions())
	require.NoError(t, err)
	assert.True(t, env.HasFlag(serialization.FlagHasDeviceFrames))
	assert.True(t, env.HasFlag(serialization.FlagHasMetadata))

	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "m", got.(*blob).label)
	assert.Equal(t, observe(t, alloc, obj.frames), observe(t, alloc, got.(*blob).frames))
}

func TestMarshalHostOnlyFlags(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(unregistered{}.TypeName(), func(Header, []frame.Frame) (Serializable, error) {
		return unregistered{}, nil
	}))
	c := New(WithRegistry(r))

	data, err := c.Marshal(unregistered{})
	require.NoError(t, err)
	env, err := serialization.DecodeBytes(data, serialization.DefaultReaderOptions())
	require.NoError(t, err)
	assert.Zero(t, env.Flags)

	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, unregistered{}, got)
}

func TestEncodeDecodeStream(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	objs := []*blob{
		{label: "a", frames: []frame.Frame{devFrame(t, alloc, pattern(3, 0))}},
		{label: "b", frames: []frame.Frame{frame.Host(pattern(70, 2)), devFrame(t, alloc, pattern(65, 1))}},
	}

	var buf bytes.Buffer
	for _, obj := range objs {
		require.NoError(t, c.Encode(&buf, obj))
	}
	for _, want := range objs {
		got, err := c.Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, want.label, got.(*blob).label)
		assert.Equal(t, observe(t, alloc, want.frames), observe(t, alloc, got.(*blob).frames))
	}
	assert.Zero(t, buf.Len())
}

func TestUnmarshalTampered(t *testing.T) {
	c, alloc, calls := newTestCodec(t)
	data, err := c.Marshal(&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0))}})
	require.NoError(t, err)

	data[len(data)-1] ^= 0x01
	_, err = c.Unmarshal(data)
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)

	_, err = c.Unmarshal(data[:len(data)-4])
	assert.ErrorIs(t, err, serialization.ErrTruncated)
	assert.Zero(t, calls.Load())
}

func TestUnmarshalTamperedPlacement(t *testing.T) {
	c, alloc, calls := newTestCodec(t)
	data, err := c.Marshal(&blob{label: "p", frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0)), frame.Host(pattern(8, 1))}})
	require.NoError(t, err)

	// Same length, so the header size and frame layout stay valid.
	tampered := bytes.Replace(data, []byte(`"is-cuda":[true,false]`), []byte(`"is-cuda":[true,true ]`), 1)
	require.NotEqual(t, data, tampered)

	_, err = c.Unmarshal(tampered)
	assert.ErrorIs(t, err, serialization.ErrChecksumMismatch)
	assert.Zero(t, calls.Load())
}

func TestUnmarshalFlagMismatch(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	data, err := c.Marshal(&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(16, 0))}})
	require.NoError(t, err)

	// Bit 0 of the flags word lives at byte 8; the checksum only covers frame data.
	data[8] &^= byte(serialization.FlagHasDeviceFrames)
	_, err = c.Unmarshal(data)
	assert.ErrorIs(t, err, ErrFrameIntegrity)

	data[8] |= byte(serialization.FlagHasDeviceFrames)
	data[8] &^= byte(serialization.FlagHasMetadata)
	_, err = c.Unmarshal(data)
	assert.ErrorIs(t, err, ErrFrameIntegrity)
}

func TestUnmarshalSkipChecksum(t *testing.T) {
	c, alloc, _ := newTestCodec(t, WithReaderOptions(serialization.ReaderOptions{
		SkipChecksumValidation: true,
		ValidationLevel:        serialization.ValidationNormal,
	}))
	data, err := c.Marshal(&blob{frames: []frame.Frame{frame.Host(pattern(4, 0))}})
	require.NoError(t, err)

	data[len(data)-1] ^= 0xFF
	got, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, byte(3^0xFF), observe(t, alloc, got.(*blob).frames)[0].Data[3])
}

func TestSerde(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	obj := &blob{label: "s", frames: []frame.Frame{devFrame(t, alloc, pattern(5, 0)), frame.Host(pattern(5, 5))}}

	var s Serde[Serializable, []byte] = c.Serde()
	data, err := s.Serialize(obj)
	require.NoError(t, err)
	got, err := s.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, observe(t, alloc, obj.frames), observe(t, alloc, got.(*blob).frames))

	var rs Serde[Serializable, Reduction] = c.ReductionSerde()
	red, err := rs.Serialize(obj)
	require.NoError(t, err)
	got, err = rs.Deserialize(red)
	require.NoError(t, err)
	assert.Equal(t, "s", got.(*blob).label)
}

func TestBatchKeepsOrder(t *testing.T) {
	c, alloc, _ := newTestCodec(t, WithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinItems: 2}))

	objs := make([]Serializable, 32)
	for i := range objs {
		objs[i] = &blob{label: fmt.Sprint(i), frames: []frame.Frame{
			devFrame(t, alloc, pattern(i+1, byte(i))),
			frame.Host(pattern(i, byte(i))),
		}}
	}

	reds, err := c.HostSerializeBatch(context.Background(), objs)
	require.NoError(t, err)
	require.Len(t, reds, len(objs))
	for i, red := range reds {
		assert.Equal(t, []int64{int64(i + 1), int64(i)}, red.Header.Lengths)
	}

	got, err := c.HostDeserializeBatch(context.Background(), reds)
	require.NoError(t, err)
	for i, obj := range got {
		assert.Equal(t, fmt.Sprint(i), obj.(*blob).label)
		assert.Equal(t, observe(t, alloc, objs[i].(*blob).frames), observe(t, alloc, obj.(*blob).frames))
	}
}

func TestBatchFailure(t *testing.T) {
	c, alloc, _ := newTestCodec(t, WithParallel(parallel.Sequential()))

	objs := []Serializable{
		&blob{frames: []frame.Frame{devFrame(t, alloc, pattern(4, 0))}},
		&blob{frames: []frame.Frame{{}}},
	}
	reds, err := c.HostSerializeBatch(context.Background(), objs)
	assert.Nil(t, reds)
	assert.ErrorIs(t, err, ErrContractViolation)

	good, err := c.Reduce(objs[0])
	require.NoError(t, err)
	live := alloc.Stats().LiveBytes

	bad := good
	bad.Header = good.Header.Clone()
	bad.Header.Lengths[0] = 5
	got, err := c.HostDeserializeBatch(context.Background(), []Reduction{good, bad})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrFrameIntegrity)
	assert.Equal(t, live, alloc.Stats().LiveBytes, "rebuilt objects are released")
}

func TestBatchCancelled(t *testing.T) {
	c, alloc, _ := newTestCodec(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.HostSerializeBatch(ctx, []Serializable{&blob{frames: []frame.Frame{devFrame(t, alloc, nil)}}})
	assert.True(t, errors.Is(err, context.Canceled))
}
