package serialize

import (
	"fmt"

	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/log"
)

// DeviceSerialize serializes obj and tags every frame with its placement and
// length. Frames are borrowed from obj and never copied.
func (c *Codec) DeviceSerialize(obj Serializable) (Header, []frame.Frame, error) {
	h, frames, err := c.deviceSerialize(obj)
	if err != nil {
		return Header{}, nil, c.fail("device_serialize", err)
	}
	return h, frames, nil
}

func (c *Codec) deviceSerialize(obj Serializable) (Header, []frame.Frame, error) {
	if obj == nil {
		return Header{}, nil, &ContractError{Type: "<nil>", Index: -1, Reason: "nil object"}
	}
	name := obj.TypeName()

	h, frames, err := obj.Serialize()
	if err != nil {
		return Header{}, nil, fmt.Errorf("serialize %s: %w", name, err)
	}

	for i, f := range frames {
		if !f.Valid() {
			return Header{}, nil, &ContractError{
				Type:   name,
				Index:  i,
				Reason: fmt.Sprintf("frame is neither a host view nor a device buffer (%s)", f),
			}
		}
		if f.Placement() == frame.PlacementDevice && !f.IsDevice() {
			buf, _ := f.Buffer()
			return Header{}, nil, &ContractError{
				Type:   name,
				Index:  i,
				Reason: fmt.Sprintf("device frame backed by %s memory", buf.Device()),
			}
		}
	}

	tok, err := c.registry.Token(name)
	if err != nil {
		return Header{}, nil, err
	}

	h.Type = tok
	h.IsDevice = make([]bool, len(frames))
	h.Lengths = make([]int64, len(frames))
	for i, f := range frames {
		h.IsDevice[i] = f.IsDevice()
		h.Lengths[i] = int64(f.Len())
	}

	if c.logger.Enabled(log.LevelDebug) {
		c.logger.Debug("device serialized",
			log.String("type", name),
			log.Int("frames", len(frames)),
			log.Int64("bytes", frame.TotalLen(frames)),
		)
	}
	return h, frames, nil
}

// DeviceDeserialize rebuilds an object from a header and frames whose
// placement matches the header. Nothing is copied.
func (c *Codec) DeviceDeserialize(h Header, frames []frame.Frame) (Serializable, error) {
	obj, err := c.deviceDeserialize(h, frames)
	if err != nil {
		return nil, c.fail("device_deserialize", err)
	}
	return obj, nil
}

func (c *Codec) deviceDeserialize(h Header, frames []frame.Frame) (Serializable, error) {
	if err := h.Validate(len(frames)); err != nil {
		return nil, err
	}

	fn, err := c.registry.Resolve(h.Type)
	if err != nil {
		return nil, err
	}

	if err := checkPlacement(h, frames); err != nil {
		return nil, err
	}

	obj, err := fn(h, frames)
	if err != nil {
		return nil, fmt.Errorf("deserialize %s: %w", h.Type.Name, err)
	}
	return obj, nil
}

// checkPlacement verifies each frame against its is-cuda flag and length.
func checkPlacement(h Header, frames []frame.Frame) error {
	for i, f := range frames {
		if h.IsDevice[i] {
			if !f.IsDevice() {
				return &IntegrityError{Index: i, Reason: fmt.Sprintf("flagged device resident, got %s", f)}
			}
		} else if !f.IsHost() {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("flagged host resident, got %s", f)}
		}
		if int64(f.Len()) != h.Lengths[i] {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("length %d, header says %d", f.Len(), h.Lengths[i])}
		}
	}
	return nil
}
