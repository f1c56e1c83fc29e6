// Package serialization implements the byte envelope used to move a reduced
// object (header plus host frames) across a process or network boundary.
//
// The envelope is a simple binary format:
//
//	Format Structure:
//	  [0x00: Magic "BFRM"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: Frame count (uint32 LE)]
//	  [0x10: Header size (uint64 LE)]
//	  [0x18: Data size (uint64 LE)]
//	  [0x20: SHA-256 of the JSON header and data section (32 bytes)]
//	  [0x40: Header: JSON envelope header]
//	  [Frame data: raw bytes, each frame 64-byte aligned]
//
// The JSON envelope header carries a unique envelope id, the creation time,
// the object header exactly as produced by the codec, and the offset and
// size of every frame relative to the start of the data section.
//
// Example usage:
//
//	var buf bytes.Buffer
//	env := &serialization.Envelope{
//	    Header:   serialization.Header{Object: objectJSON},
//	    Payloads: payloads,
//	}
//	if err := serialization.Encode(&buf, env); err != nil {
//	    log.Fatal(err)
//	}
//
//	decoded, err := serialization.Decode(&buf, serialization.DefaultReaderOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = decoded.Payloads
package serialization
