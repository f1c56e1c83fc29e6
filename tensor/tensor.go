// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"io"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor data types.
// Supported types: float32, float64, int32, int64, uint8, bool.
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a dense tensor stored in host or device memory.
type Tensor = tensor.Tensor

// StateDict is an ordered set of named tensors.
type StateDict = tensor.StateDict

// TensorMeta describes one entry of a serialized state dict.
type TensorMeta = tensor.TensorMeta

// Registry names of the serializable types.
const (
	TensorTypeName    = tensor.TensorTypeName
	StateDictTypeName = tensor.StateDictTypeName
)

// Errors returned by constructors and accessors.
var (
	ErrUnknownDType = tensor.ErrUnknownDType
	ErrSizeMismatch = tensor.ErrSizeMismatch
	ErrNotHost      = tensor.ErrNotHost
	ErrSafetensors  = tensor.ErrSafetensors
)

// New creates a zeroed host tensor.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	return tensor.New(shape, dtype)
}

// FromBytes wraps data as a host tensor without copying.
func FromBytes(shape Shape, dtype DataType, data []byte) (*Tensor, error) {
	return tensor.FromBytes(shape, dtype, data)
}

// FromBuffer wraps a device buffer as a tensor.
func FromBuffer(shape Shape, dtype DataType, buf device.Buffer) (*Tensor, error) {
	return tensor.FromBuffer(shape, dtype, buf)
}

// FromSlice creates a host tensor holding a copy of data.
func FromSlice[T DType](data []T, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// As interprets a host tensor's storage as []T without copying.
func As[T DType](t *Tensor) ([]T, error) {
	return tensor.As[T](t)
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return tensor.NewStateDict()
}

// ParseDataType maps a data type name to a DataType.
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// ReadSafetensors reads a safetensors stream into a state dict of host tensors.
func ReadSafetensors(r io.Reader) (*StateDict, error) {
	return tensor.ReadSafetensors(r)
}

// WriteSafetensors writes sd as safetensors, reading device tensors back
// through alloc.
func WriteSafetensors(w io.Writer, sd *StateDict, alloc device.Allocator) error {
	return tensor.WriteSafetensors(w, sd, alloc)
}
