package tensor

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/serialize"
)

// TensorTypeName is the registry name of *Tensor.
const TensorTypeName = "tensor.Tensor"

// Common errors.
var (
	ErrUnknownDType = errors.New("unknown data type")
	ErrSizeMismatch = errors.New("storage size does not match shape")
	ErrNotHost      = errors.New("tensor is not in host memory")
)

// Tensor is a dense row-major tensor. Its storage is a single frame: a host
// slice or a device buffer.
type Tensor struct {
	shape   Shape
	dtype   DataType
	storage frame.Frame
}

func newTensor(shape Shape, dtype DataType, storage frame.Frame) (*Tensor, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDType, int(dtype))
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.byteSize(dtype); storage.Len() != want {
		return nil, fmt.Errorf("%w: %v %s needs %d bytes, got %d", ErrSizeMismatch, shape, dtype, want, storage.Len())
	}
	return &Tensor{shape: shape.Clone(), dtype: dtype, storage: storage}, nil
}

// New creates a zeroed host tensor.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return newTensor(shape, dtype, frame.Host(make([]byte, shape.byteSize(dtype))))
}

// FromBytes wraps data as a host tensor. data is borrowed, not copied.
func FromBytes(shape Shape, dtype DataType, data []byte) (*Tensor, error) {
	return newTensor(shape, dtype, frame.Host(data))
}

// FromBuffer wraps a device buffer as a tensor. The tensor takes ownership of buf.
func FromBuffer(shape Shape, dtype DataType, buf device.Buffer) (*Tensor, error) {
	if buf == nil {
		return nil, fmt.Errorf("%w: nil buffer", ErrSizeMismatch)
	}
	return newTensor(shape, dtype, frame.Device(buf))
}

// FromSlice creates a host tensor holding a copy of data.
func FromSlice[T DType](data []T, shape Shape) (*Tensor, error) {
	dtype := inferDataType[T]()
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: %v holds %d elements, got %d", ErrSizeMismatch, shape, shape.NumElements(), len(data))
	}
	raw := make([]byte, len(data)*dtype.Size())
	if len(data) > 0 {
		//nolint:gosec // unsafe.Slice for zero-copy view, bounds checked by len(raw)
		copy(raw, unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(raw)))
	}
	return newTensor(shape, dtype, frame.Host(raw))
}

// As interprets a host tensor's storage as []T without copying.
func As[T DType](t *Tensor) ([]T, error) {
	if want := inferDataType[T](); t.dtype != want {
		return nil, fmt.Errorf("tensor dtype is %s, not %s", t.dtype, want)
	}
	data, ok := t.storage.Bytes()
	if !ok {
		return nil, ErrNotHost
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), t.NumElements()), nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the row-major strides of the tensor.
func (t *Tensor) Strides() []int {
	return t.shape.ComputeStrides()
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the storage size in bytes.
func (t *Tensor) ByteSize() int {
	return t.storage.Len()
}

// Device returns where the storage lives. Host tensors report device.CPU.
func (t *Tensor) Device() device.Device {
	if buf, ok := t.storage.Buffer(); ok && buf != nil {
		return buf.Device()
	}
	return device.CPU
}

// IsDevice reports whether the storage is in accelerator memory.
func (t *Tensor) IsDevice() bool {
	return t.storage.IsDevice()
}

// Bytes returns the host storage. ok is false for device tensors.
func (t *Tensor) Bytes() (data []byte, ok bool) {
	return t.storage.Bytes()
}

// Buffer returns the device storage. ok is false for host tensors.
func (t *Tensor) Buffer() (buf device.Buffer, ok bool) {
	return t.storage.Buffer()
}

// HostData returns a copy of the storage, reading it back through alloc if
// the tensor is on a device.
func (t *Tensor) HostData(alloc device.Allocator) ([]byte, error) {
	if data, ok := t.storage.Bytes(); ok {
		return append([]byte(nil), data...), nil
	}
	if alloc == nil {
		return nil, ErrNotHost
	}
	buf, _ := t.storage.Buffer()
	return alloc.ToHost(buf)
}

// ToDevice returns a copy of t in alloc's memory.
func (t *Tensor) ToDevice(alloc device.Allocator) (*Tensor, error) {
	data, err := t.HostData(alloc)
	if err != nil {
		return nil, err
	}
	buf, err := alloc.ToDevice(data)
	if err != nil {
		return nil, fmt.Errorf("copy %v %s to %s: %w", t.shape, t.dtype, alloc.Device(), err)
	}
	return FromBuffer(t.shape, t.dtype, buf)
}

// ToHost returns a host copy of t.
func (t *Tensor) ToHost(alloc device.Allocator) (*Tensor, error) {
	data, err := t.HostData(alloc)
	if err != nil {
		return nil, err
	}
	return FromBytes(t.shape, t.dtype, data)
}

// Release frees device storage. Host tensors are left to the garbage collector.
func (t *Tensor) Release() {
	frame.Release([]frame.Frame{t.storage})
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%v, %s, %s)", t.shape, t.dtype, t.Device())
}

// TypeName implements serialize.Serializable.
func (t *Tensor) TypeName() string {
	return TensorTypeName
}

// Serialize implements serialize.Serializable. The storage frame is borrowed.
func (t *Tensor) Serialize() (serialize.Header, []frame.Frame, error) {
	var h serialize.Header
	if err := h.Set("dtype", t.dtype); err != nil {
		return serialize.Header{}, nil, err
	}
	if err := h.Set("shape", t.shape); err != nil {
		return serialize.Header{}, nil, err
	}
	return h, []frame.Frame{t.storage}, nil
}

func deserializeTensor(h serialize.Header, frames []frame.Frame) (serialize.Serializable, error) {
	if len(frames) != 1 {
		return nil, fmt.Errorf("tensor needs 1 frame, got %d", len(frames))
	}
	var (
		dtype DataType
		shape Shape
	)
	if err := h.Get("dtype", &dtype); err != nil {
		return nil, err
	}
	if err := h.Get("shape", &shape); err != nil {
		return nil, err
	}
	return newTensor(shape, dtype, frames[0])
}
