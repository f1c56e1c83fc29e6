package tensor

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/born-ml/frames/internal/device"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// maxSafetensorsHeader bounds the JSON header of a safetensors file.
const maxSafetensorsHeader = 100 * 1024 * 1024

const safetensorsMetadataKey = "__metadata__"

// ErrSafetensors is returned for malformed safetensors input.
var ErrSafetensors = errors.New("invalid safetensors data")

// safetensorsInfo describes one tensor in a safetensors header.
type safetensorsInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end)
}

var safetensorsDTypes = map[string]DataType{
	"F32":  Float32,
	"F64":  Float64,
	"I32":  Int32,
	"I64":  Int64,
	"U8":   Uint8,
	"BOOL": Bool,
}

func safetensorsDType(dt DataType) string {
	for name, d := range safetensorsDTypes {
		if d == dt {
			return name
		}
	}
	return ""
}

// ReadSafetensors reads a safetensors stream into a state dict of host
// tensors. Tensors are kept in data offset order. F16 and BF16 are rejected.
func ReadSafetensors(r io.Reader) (*StateDict, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("%w: header size: %w", ErrSafetensors, err)
	}
	if headerSize > maxSafetensorsHeader {
		return nil, fmt.Errorf("%w: header size %d too large", ErrSafetensors, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrSafetensors, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("%w: header JSON: %w", ErrSafetensors, err)
	}

	sd := NewStateDict()
	if m, ok := raw[safetensorsMetadataKey]; ok {
		if err := json.Unmarshal(m, &sd.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrSafetensors, err)
		}
		delete(raw, safetensorsMetadataKey)
	}

	type entry struct {
		name string
		info safetensorsInfo
	}
	entries := make([]entry, 0, len(raw))
	for name, value := range raw {
		var info safetensorsInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %w", ErrSafetensors, name, err)
		}
		entries = append(entries, entry{name: name, info: info})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].info.DataOffsets[0] != entries[j].info.DataOffsets[0] {
			return entries[i].info.DataOffsets[0] < entries[j].info.DataOffsets[0]
		}
		return entries[i].name < entries[j].name
	})

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %w", ErrSafetensors, err)
	}

	for _, e := range entries {
		dtype, ok := safetensorsDTypes[e.info.DType]
		if !ok {
			return nil, fmt.Errorf("%w: tensor %s: unsupported dtype %s", ErrSafetensors, e.name, e.info.DType)
		}
		start, end := e.info.DataOffsets[0], e.info.DataOffsets[1]
		if start < 0 || end < start || end > int64(len(data)) {
			return nil, fmt.Errorf("%w: tensor %s: data offsets [%d, %d] outside %d bytes",
				ErrSafetensors, e.name, start, end, len(data))
		}
		t, err := FromBytes(Shape(e.info.Shape), dtype, data[start:end:end])
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", e.name, err)
		}
		if err := sd.Set(e.name, t); err != nil {
			return nil, err
		}
	}
	return sd, nil
}

// WriteSafetensors writes sd as safetensors. Device tensors are copied to
// host memory through alloc, which may be nil when every tensor is on the host.
func WriteSafetensors(w io.Writer, sd *StateDict, alloc device.Allocator) error {
	header := make(map[string]any, sd.Len()+1)
	if len(sd.Metadata) > 0 {
		header[safetensorsMetadataKey] = sd.Metadata
	}

	var data bytes.Buffer
	for _, name := range sd.names {
		t := sd.tensors[name]
		dtype := safetensorsDType(t.dtype)
		if dtype == "" {
			return fmt.Errorf("tensor %s: %w: %s", name, ErrUnknownDType, t.dtype)
		}
		host, err := t.HostData(alloc)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		start := int64(data.Len())
		data.Write(host)
		header[name] = safetensorsInfo{
			DType:       dtype,
			Shape:       append([]int{}, t.shape...),
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal safetensors header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return err
	}
	if _, err := w.Write(headerJSON); err != nil {
		return err
	}
	_, err = data.WriteTo(w)
	return err
}
