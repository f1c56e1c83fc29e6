package tensor

import (
	"fmt"
	"maps"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/serialize"
)

// StateDictTypeName is the registry name of *StateDict.
const StateDictTypeName = "tensor.StateDict"

// TensorMeta describes one entry of a serialized state dict.
type TensorMeta struct {
	Name  string   `json:"name"`  // Tensor name (e.g., "layer.0.weight")
	DType DataType `json:"dtype"` // Data type
	Shape Shape    `json:"shape"` // Tensor shape
	Size  int64    `json:"size"`  // Size in bytes
}

// StateDict is an ordered set of named tensors, such as model parameters.
// Entries may mix host and device storage.
type StateDict struct {
	names    []string
	tensors  map[string]*Tensor
	Metadata map[string]string
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return &StateDict{tensors: make(map[string]*Tensor)}
}

// Set stores t under name. Replacing an entry keeps its position.
func (sd *StateDict) Set(name string, t *Tensor) error {
	if name == "" {
		return fmt.Errorf("state dict: empty tensor name")
	}
	if t == nil {
		return fmt.Errorf("state dict: nil tensor %q", name)
	}
	if _, ok := sd.tensors[name]; !ok {
		sd.names = append(sd.names, name)
	}
	sd.tensors[name] = t
	return nil
}

// Get returns the tensor stored under name.
func (sd *StateDict) Get(name string) (*Tensor, bool) {
	t, ok := sd.tensors[name]
	return t, ok
}

// Names returns tensor names in insertion order.
func (sd *StateDict) Names() []string {
	return append([]string(nil), sd.names...)
}

// Len returns the number of tensors.
func (sd *StateDict) Len() int {
	return len(sd.names)
}

// ToDevice returns a copy of sd with every tensor in alloc's memory.
// Tensors copied before a failure are released.
func (sd *StateDict) ToDevice(alloc device.Allocator) (*StateDict, error) {
	out := NewStateDict()
	out.Metadata = maps.Clone(sd.Metadata)
	for _, name := range sd.names {
		t, err := sd.tensors[name].ToDevice(alloc)
		if err != nil {
			out.Release()
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		out.names = append(out.names, name)
		out.tensors[name] = t
	}
	return out, nil
}

// Release frees the device storage of every tensor.
func (sd *StateDict) Release() {
	for _, name := range sd.names {
		sd.tensors[name].Release()
	}
}

// TypeName implements serialize.Serializable.
func (sd *StateDict) TypeName() string {
	return StateDictTypeName
}

// Serialize implements serialize.Serializable. Each tensor contributes one
// borrowed frame, in insertion order.
func (sd *StateDict) Serialize() (serialize.Header, []frame.Frame, error) {
	metas := make([]TensorMeta, len(sd.names))
	frames := make([]frame.Frame, len(sd.names))
	for i, name := range sd.names {
		t := sd.tensors[name]
		metas[i] = TensorMeta{
			Name:  name,
			DType: t.dtype,
			Shape: t.shape,
			Size:  int64(t.ByteSize()),
		}
		frames[i] = t.storage
	}

	var h serialize.Header
	if err := h.Set("tensors", metas); err != nil {
		return serialize.Header{}, nil, err
	}
	if len(sd.Metadata) > 0 {
		if err := h.Set("metadata", sd.Metadata); err != nil {
			return serialize.Header{}, nil, err
		}
	}
	return h, frames, nil
}

func deserializeStateDict(h serialize.Header, frames []frame.Frame) (serialize.Serializable, error) {
	var metas []TensorMeta
	if err := h.Get("tensors", &metas); err != nil {
		return nil, err
	}
	if len(metas) != len(frames) {
		return nil, fmt.Errorf("state dict lists %d tensors, got %d frames", len(metas), len(frames))
	}

	sd := NewStateDict()
	if h.Has("metadata") {
		if err := h.Get("metadata", &sd.Metadata); err != nil {
			return nil, err
		}
	}
	for i, m := range metas {
		if int64(frames[i].Len()) != m.Size {
			return nil, fmt.Errorf("tensor %q: %w: header says %d bytes, frame has %d", m.Name, ErrSizeMismatch, m.Size, frames[i].Len())
		}
		if _, dup := sd.tensors[m.Name]; dup {
			return nil, fmt.Errorf("state dict: duplicate tensor %q", m.Name)
		}
		t, err := newTensor(m.Shape, m.DType, frames[i])
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", m.Name, err)
		}
		if err := sd.Set(m.Name, t); err != nil {
			return nil, err
		}
	}
	return sd, nil
}
