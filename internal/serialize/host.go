package serialize

import (
	"fmt"

	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/log"
	"github.com/born-ml/frames/internal/metrics"
)

// HostSerialize serializes obj so that every frame is host addressable.
//
// Device frames are copied into new host slices owned by the caller. Host
// frames pass through uncopied. The header keeps the original placement so
// HostDeserialize knows which frames to move back.
func (c *Codec) HostSerialize(obj Serializable) (Header, []frame.Frame, error) {
	h, frames, err := c.hostSerialize(obj)
	if err != nil {
		return Header{}, nil, c.fail("host_serialize", err)
	}
	return h, frames, nil
}

func (c *Codec) hostSerialize(obj Serializable) (Header, []frame.Frame, error) {
	h, frames, err := c.deviceSerialize(obj)
	if err != nil {
		return Header{}, nil, err
	}
	if h.HasDeviceFrames() && c.allocator == nil {
		return Header{}, nil, fmt.Errorf("%w: %s has device frames", ErrNoAllocator, h.Type.Name)
	}

	out := make([]frame.Frame, len(frames))
	for i, f := range frames {
		if !h.IsDevice[i] {
			out[i] = f
			continue
		}
		buf, _ := f.Buffer()
		data, err := c.allocator.ToHost(buf)
		if err != nil {
			return Header{}, nil, fmt.Errorf("frame %d: copy to host: %w", i, err)
		}
		if int64(len(data)) != h.Lengths[i] {
			return Header{}, nil, &IntegrityError{
				Index:  i,
				Reason: fmt.Sprintf("host copy is %d bytes, header says %d", len(data), h.Lengths[i]),
			}
		}
		c.metrics.Migrated(metrics.DirectionToHost, len(data))
		out[i] = frame.Host(data)
	}

	if c.logger.Enabled(log.LevelDebug) {
		c.logger.Debug("host serialized",
			log.String("type", h.Type.Name),
			log.Int("frames", len(out)),
			log.Int64("bytes", frame.TotalLen(out)),
		)
	}
	return h, out, nil
}

// HostDeserialize rebuilds an object from host frames, copying the frames the
// header flags as device resident into new device buffers.
//
// The header and frames are validated before any copy. If a copy or the final
// deserialize fails, device buffers allocated by this call are released.
func (c *Codec) HostDeserialize(h Header, frames []frame.Frame) (Serializable, error) {
	obj, err := c.hostDeserialize(h, frames)
	if err != nil {
		return nil, c.fail("host_deserialize", err)
	}
	return obj, nil
}

func (c *Codec) hostDeserialize(h Header, frames []frame.Frame) (Serializable, error) {
	if err := h.Validate(len(frames)); err != nil {
		return nil, err
	}
	if _, err := c.registry.Resolve(h.Type); err != nil {
		return nil, err
	}
	for i, f := range frames {
		if !f.IsHost() {
			return nil, &IntegrityError{Index: i, Reason: fmt.Sprintf("expected host frame, got %s", f)}
		}
		if int64(f.Len()) != h.Lengths[i] {
			return nil, &IntegrityError{Index: i, Reason: fmt.Sprintf("length %d, header says %d", f.Len(), h.Lengths[i])}
		}
	}
	if h.HasDeviceFrames() && c.allocator == nil {
		return nil, fmt.Errorf("%w: %s has device frames", ErrNoAllocator, h.Type.Name)
	}

	migrated := make([]frame.Frame, len(frames))
	var allocated []frame.Frame
	release := func() {
		frame.Release(allocated)
	}

	for i, f := range frames {
		if !h.IsDevice[i] {
			migrated[i] = f
			continue
		}
		data, _ := f.Bytes()
		buf, err := c.allocator.ToDevice(data)
		if err != nil {
			release()
			return nil, fmt.Errorf("frame %d: copy to device: %w", i, err)
		}
		migrated[i] = frame.Device(buf)
		allocated = append(allocated, migrated[i])
		c.metrics.Migrated(metrics.DirectionToDevice, len(data))
	}

	obj, err := c.deviceDeserialize(h, migrated)
	if err != nil {
		release()
		return nil, err
	}

	if c.logger.Enabled(log.LevelDebug) {
		c.logger.Debug("host deserialized",
			log.String("type", h.Type.Name),
			log.Int("frames", len(frames)),
			log.Int("migrated", len(allocated)),
		)
	}
	return obj, nil
}
