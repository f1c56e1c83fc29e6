// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package serialize_test

import (
	"errors"
	"testing"

	"github.com/born-ml/frames/device"
	"github.com/born-ml/frames/serialize"
)

// embedding is a user-defined type: a vocabulary on the host and vectors on the device.
type embedding struct {
	vocab   []byte
	vectors device.Buffer
}

func (e *embedding) TypeName() string { return "example.embedding" }

func (e *embedding) Serialize() (serialize.Header, []serialize.Frame, error) {
	var h serialize.Header
	if err := h.Set("dim", 4); err != nil {
		return serialize.Header{}, nil, err
	}
	return h, []serialize.Frame{serialize.HostFrame(e.vocab), serialize.DeviceFrame(e.vectors)}, nil
}

func newRegistry(t *testing.T) *serialize.Registry {
	t.Helper()
	r := serialize.NewRegistry()
	err := r.Register("example.embedding", func(_ serialize.Header, frames []serialize.Frame) (serialize.Serializable, error) {
		vocab, _ := frames[0].Bytes()
		vectors, _ := frames[1].Buffer()
		return &embedding{vocab: vocab, vectors: vectors}, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return r
}

// TestCustomType verifies a user type round trips through the public API.
func TestCustomType(t *testing.T) {
	alloc := device.NewEmulated()
	codec := serialize.New(serialize.WithRegistry(newRegistry(t)), serialize.WithAllocator(alloc))

	vectors, err := alloc.ToDevice([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("ToDevice failed: %v", err)
	}
	in := &embedding{vocab: []byte("ab"), vectors: vectors}

	h, frames, err := codec.HostSerialize(in)
	if err != nil {
		t.Fatalf("HostSerialize failed: %v", err)
	}
	if !h.IsDevice[1] || h.IsDevice[0] {
		t.Errorf("IsDevice = %v, want [false true]", h.IsDevice)
	}

	obj, err := codec.HostDeserialize(h, frames)
	if err != nil {
		t.Fatalf("HostDeserialize failed: %v", err)
	}
	out := obj.(*embedding)
	if string(out.vocab) != "ab" {
		t.Errorf("vocab = %q, want %q", out.vocab, "ab")
	}
	data, err := alloc.ToHost(out.vectors)
	if err != nil {
		t.Fatalf("ToHost failed: %v", err)
	}
	if string(data) != "\x01\x02\x03\x04\x05\x06\x07\x08" {
		t.Errorf("vectors = %v", data)
	}
}

// TestTamperedHeader verifies that a flipped placement flag is rejected.
func TestTamperedHeader(t *testing.T) {
	alloc := device.NewEmulated()
	codec := serialize.New(serialize.WithRegistry(newRegistry(t)), serialize.WithAllocator(alloc))

	vectors, err := alloc.ToDevice(make([]byte, 8))
	if err != nil {
		t.Fatalf("ToDevice failed: %v", err)
	}
	h, frames, err := codec.DeviceSerialize(&embedding{vocab: []byte("x"), vectors: vectors})
	if err != nil {
		t.Fatalf("DeviceSerialize failed: %v", err)
	}
	h.IsDevice[0] = true

	_, err = codec.DeviceDeserialize(h, frames)
	var ie *serialize.IntegrityError
	if !errors.As(err, &ie) || ie.Index != 0 {
		t.Fatalf("expected integrity error on frame 0, got %v", err)
	}
	if !errors.Is(err, serialize.ErrFrameIntegrity) {
		t.Errorf("expected ErrFrameIntegrity, got %v", err)
	}
}
