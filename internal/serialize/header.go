package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved header keys written by the codec.
const (
	KeyType     = "type-serialized"
	KeyIsDevice = "is-cuda"
	KeyLengths  = "lengths"
)

func isReserved(key string) bool {
	return key == KeyType || key == KeyIsDevice || key == KeyLengths
}

// TypeToken identifies a registered type inside a header.
type TypeToken struct {
	Name string `json:"name"`
	Code uint64 `json:"code,string"` // xxhash64 of Name, encoded as a decimal string
}

// IsZero reports whether the token is unset.
func (t TypeToken) IsZero() bool {
	return t.Name == "" && t.Code == 0
}

// Header is the metadata half of a serialized object.
//
// The codec owns Type, IsDevice and Lengths. Objects store their own metadata
// with Set and read it back with Get; values are kept JSON encoded so that a
// header can always be handed to a transport as is.
type Header struct {
	Type     TypeToken
	IsDevice []bool
	Lengths  []int64

	fields map[string]json.RawMessage
}

// Set stores v under key. Reserved keys are rejected.
func (h *Header) Set(key string, v any) error {
	if isReserved(key) {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("header key %q: %w", key, err)
	}
	if h.fields == nil {
		h.fields = make(map[string]json.RawMessage)
	}
	h.fields[key] = raw
	return nil
}

// Get decodes the value stored under key into v.
// A missing key is reported as ErrMissingKey.
func (h Header) Get(key string, v any) error {
	raw, ok := h.fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrFrameIntegrity, key, err)
	}
	return nil
}

// Has reports whether an object key is present.
func (h Header) Has(key string) bool {
	_, ok := h.fields[key]
	return ok
}

// Delete removes an object key.
func (h *Header) Delete(key string) {
	delete(h.fields, key)
}

// Keys returns the object keys in sorted order. Reserved keys are not included.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h.fields))
	for k := range h.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	out := Header{
		Type:     h.Type,
		IsDevice: append([]bool(nil), h.IsDevice...),
		Lengths:  append([]int64(nil), h.Lengths...),
	}
	if h.fields != nil {
		out.fields = make(map[string]json.RawMessage, len(h.fields))
		for k, v := range h.fields {
			out.fields[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Validate checks the reserved keys against a frame count. It touches no buffers.
func (h Header) Validate(frames int) error {
	if h.Type.Name == "" {
		return &IntegrityError{Index: -1, Reason: fmt.Sprintf("missing %q", KeyType)}
	}
	if len(h.IsDevice) != frames {
		return &IntegrityError{
			Index:  -1,
			Reason: fmt.Sprintf("%q has %d entries for %d frames", KeyIsDevice, len(h.IsDevice), frames),
		}
	}
	if len(h.Lengths) != frames {
		return &IntegrityError{
			Index:  -1,
			Reason: fmt.Sprintf("%q has %d entries for %d frames", KeyLengths, len(h.Lengths), frames),
		}
	}
	for i, n := range h.Lengths {
		if n < 0 {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("negative length %d", n)}
		}
	}
	return nil
}

// HasDeviceFrames reports whether any frame was device resident at serialize time.
func (h Header) HasDeviceFrames() bool {
	for _, d := range h.IsDevice {
		if d {
			return true
		}
	}
	return false
}

// MarshalJSON writes the reserved keys first, then object keys in sorted order.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, raw []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
	}

	typ, err := json.Marshal(h.Type)
	if err != nil {
		return nil, err
	}
	write(KeyType, typ)

	isDevice := h.IsDevice
	if isDevice == nil {
		isDevice = []bool{}
	}
	flags, err := json.Marshal(isDevice)
	if err != nil {
		return nil, err
	}
	write(KeyIsDevice, flags)

	lengths := h.Lengths
	if lengths == nil {
		lengths = []int64{}
	}
	lens, err := json.Marshal(lengths)
	if err != nil {
		return nil, err
	}
	write(KeyLengths, lens)

	for _, k := range h.Keys() {
		write(k, h.fields[k])
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a header. All reserved keys must be present.
func (h *Header) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrFrameIntegrity, err)
	}

	for _, key := range []string{KeyType, KeyIsDevice, KeyLengths} {
		if _, ok := raw[key]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, key)
		}
	}

	var out Header
	if err := json.Unmarshal(raw[KeyType], &out.Type); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrFrameIntegrity, KeyType, err)
	}
	if err := json.Unmarshal(raw[KeyIsDevice], &out.IsDevice); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrFrameIntegrity, KeyIsDevice, err)
	}
	if err := json.Unmarshal(raw[KeyLengths], &out.Lengths); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrFrameIntegrity, KeyLengths, err)
	}

	for k, v := range raw {
		if isReserved(k) {
			continue
		}
		if out.fields == nil {
			out.fields = make(map[string]json.RawMessage)
		}
		out.fields[k] = v
	}

	*h = out
	return nil
}
