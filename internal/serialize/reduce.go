package serialize

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/serialization"
)

// Reduction is an object reduced to host data plus the function that rebuilds it.
//
// Any copy or transport layer that can move a header and a list of byte slices
// can carry a Reduction without knowing about device memory.
type Reduction struct {
	Header   Header
	Payloads [][]byte
	// Reconstruct rebuilds the object, moving device flagged payloads back to
	// device memory.
	Reconstruct func(h Header, payloads [][]byte) (Serializable, error)
}

// Apply calls Reconstruct with the reduction's own arguments.
func (r Reduction) Apply() (Serializable, error) {
	if r.Reconstruct == nil {
		return nil, fmt.Errorf("reduction of %q has no reconstruct function", r.Header.Type.Name)
	}
	return r.Reconstruct(r.Header, r.Payloads)
}

// Reduce host-serializes obj and strips the frames down to their raw bytes.
// Payloads of host frames alias obj's memory.
func (c *Codec) Reduce(obj Serializable) (Reduction, error) {
	h, frames, err := c.HostSerialize(obj)
	if err != nil {
		return Reduction{}, err
	}
	return Reduction{
		Header:      h,
		Payloads:    payloads(frames),
		Reconstruct: c.reconstruct,
	}, nil
}

func (c *Codec) reconstruct(h Header, payloads [][]byte) (Serializable, error) {
	frames := make([]frame.Frame, len(payloads))
	for i, p := range payloads {
		frames[i] = frame.Host(p)
	}
	return c.HostDeserialize(h, frames)
}

func payloads(frames []frame.Frame) [][]byte {
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i], _ = f.Bytes()
	}
	return out
}

// Copy returns a deep copy of obj. The copy holds device buffers exactly where
// obj does and shares no memory with it.
func (c *Codec) Copy(obj Serializable) (Serializable, error) {
	red, err := c.Reduce(obj)
	if err != nil {
		return nil, err
	}
	for i, p := range red.Payloads {
		if !red.Header.IsDevice[i] {
			red.Payloads[i] = append([]byte(nil), p...)
		}
	}
	return red.Apply()
}

// Marshal encodes obj into a self-contained envelope.
func (c *Codec) Marshal(obj Serializable) ([]byte, error) {
	env, err := c.envelope(obj)
	if err != nil {
		return nil, err
	}
	data, err := serialization.EncodeBytes(env)
	if err != nil {
		return nil, c.fail("marshal", err)
	}
	return data, nil
}

// Encode writes obj to w as one envelope.
func (c *Codec) Encode(w io.Writer, obj Serializable) error {
	env, err := c.envelope(obj)
	if err != nil {
		return err
	}
	if err := serialization.Encode(w, env); err != nil {
		return c.fail("encode", err)
	}
	return nil
}

func (c *Codec) envelope(obj Serializable) (*serialization.Envelope, error) {
	red, err := c.Reduce(obj)
	if err != nil {
		return nil, err
	}
	object, err := json.Marshal(red.Header)
	if err != nil {
		return nil, c.fail("marshal", fmt.Errorf("encode header: %w", err))
	}

	env := &serialization.Envelope{
		Header:   serialization.Header{Object: object},
		Payloads: red.Payloads,
	}
	if red.Header.HasDeviceFrames() {
		env.Flags |= serialization.FlagHasDeviceFrames
	}
	if len(red.Header.Keys()) > 0 {
		env.Flags |= serialization.FlagHasMetadata
	}
	return env, nil
}

// Unmarshal decodes an envelope produced by Marshal and rebuilds the object.
func (c *Codec) Unmarshal(data []byte) (Serializable, error) {
	env, err := serialization.DecodeBytes(data, c.reader)
	if err != nil {
		return nil, c.fail("unmarshal", err)
	}
	return c.fromEnvelope(env)
}

// Decode reads one envelope from r and rebuilds the object.
func (c *Codec) Decode(r io.Reader) (Serializable, error) {
	env, err := serialization.Decode(r, c.reader)
	if err != nil {
		return nil, c.fail("decode", err)
	}
	return c.fromEnvelope(env)
}

func (c *Codec) fromEnvelope(env *serialization.Envelope) (Serializable, error) {
	var h Header
	if err := json.Unmarshal(env.Header.Object, &h); err != nil {
		return nil, c.fail("unmarshal", err)
	}
	if h.HasDeviceFrames() != env.HasFlag(serialization.FlagHasDeviceFrames) {
		return nil, c.fail("unmarshal", &IntegrityError{
			Index:  -1,
			Reason: "envelope device flag disagrees with header",
		})
	}
	if (len(h.Keys()) > 0) != env.HasFlag(serialization.FlagHasMetadata) {
		return nil, c.fail("unmarshal", &IntegrityError{
			Index:  -1,
			Reason: "envelope metadata flag disagrees with header",
		})
	}
	return c.reconstruct(h, env.Payloads)
}
