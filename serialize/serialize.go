// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package serialize splits objects into a header and a list of frames and
// rebuilds them, moving device frames through host memory when needed.
//
// Three tiers are available on a Codec:
//   - DeviceSerialize / DeviceDeserialize: frames stay where they are
//   - HostSerialize / HostDeserialize: every frame is host addressable
//   - Reduce / Marshal / Unmarshal: host data plus a rebuild function, or a
//     self-contained byte envelope
//
// Example:
//
//	codec := serialize.New(serialize.WithAllocator(alloc))
//	h, frames, err := codec.HostSerialize(obj)
//	// ... send h and frames ...
//	obj, err = codec.HostDeserialize(h, frames)
package serialize

import (
	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/frame"
	"github.com/born-ml/frames/internal/serialization"
	"github.com/born-ml/frames/internal/serialize"
)

// Type aliases for public API

// Serializable is implemented by objects that can be split into frames.
type Serializable = serialize.Serializable

// DeserializeFunc rebuilds an object from a header and frames.
type DeserializeFunc = serialize.DeserializeFunc

// Header is the metadata half of a serialized object.
type Header = serialize.Header

// TypeToken identifies a registered type inside a header.
type TypeToken = serialize.TypeToken

// Frame is a host view or a device buffer.
type Frame = frame.Frame

// Registry maps type tokens to deserializers.
type Registry = serialize.Registry

// Codec runs the serialization adapters.
type Codec = serialize.Codec

// Option configures a Codec.
type Option = serialize.Option

// Reduction is an object reduced to host data plus a rebuild function.
type Reduction = serialize.Reduction

// Releaser is implemented by objects that hold device memory.
type Releaser = serialize.Releaser

// IntegrityError describes a header/frame disagreement.
type IntegrityError = serialize.IntegrityError

// ContractError describes a Serialize implementation that broke the contract.
type ContractError = serialize.ContractError

// ReaderOptions configures envelope decoding.
type ReaderOptions = serialization.ReaderOptions

// Reserved header keys.
const (
	KeyType     = serialize.KeyType
	KeyIsDevice = serialize.KeyIsDevice
	KeyLengths  = serialize.KeyLengths
)

// Errors.
var (
	ErrContractViolation = serialize.ErrContractViolation
	ErrFrameIntegrity    = serialize.ErrFrameIntegrity
	ErrMissingKey        = serialize.ErrMissingKey
	ErrUnresolvedType    = serialize.ErrUnresolvedType
	ErrNoAllocator       = serialize.ErrNoAllocator
	ErrReservedKey       = serialize.ErrReservedKey
	ErrDuplicateType     = serialize.ErrDuplicateType
	ErrChecksumMismatch  = serialization.ErrChecksumMismatch
)

// Codec options.
var (
	WithRegistry      = serialize.WithRegistry
	WithAllocator     = serialize.WithAllocator
	WithLogger        = serialize.WithLogger
	WithMetrics       = serialize.WithMetrics
	WithParallel      = serialize.WithParallel
	WithReaderOptions = serialize.WithReaderOptions
)

// DefaultRegistry is populated by participating packages from init.
var DefaultRegistry = serialize.DefaultRegistry

// New creates a codec.
func New(opts ...Option) *Codec {
	return serialize.New(opts...)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return serialize.NewRegistry()
}

// Register adds a deserializer to DefaultRegistry.
func Register(name string, fn DeserializeFunc) error {
	return serialize.Register(name, fn)
}

// MustRegister adds a deserializer to DefaultRegistry and panics on error.
func MustRegister(name string, fn DeserializeFunc) {
	serialize.MustRegister(name, fn)
}

// HostFrame wraps b as a host frame without copying.
func HostFrame(b []byte) Frame {
	return frame.Host(b)
}

// DeviceFrame wraps buf as a device frame without copying.
func DeviceFrame(buf device.Buffer) Frame {
	return frame.Device(buf)
}
