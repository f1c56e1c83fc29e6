// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides tensors and state dicts that serialize through the
// frames codec.
//
// # Overview
//
// A Tensor keeps its storage in one frame: a host slice or a device buffer.
// A StateDict is an ordered set of named tensors and may mix both. Both types
// are registered with serialize.DefaultRegistry when this package is imported.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/frames/device"
//	    "github.com/born-ml/frames/serialize"
//	    "github.com/born-ml/frames/tensor"
//	)
//
//	func main() {
//	    alloc := device.NewEmulated()
//	    codec := serialize.New(serialize.WithAllocator(alloc))
//
//	    x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	    w, _ := x.ToDevice(alloc)
//
//	    sd := tensor.NewStateDict()
//	    _ = sd.Set("weight", w)
//
//	    data, _ := codec.Marshal(sd)
//	    obj, _ := codec.Unmarshal(data)
//	    restored := obj.(*tensor.StateDict) // "weight" is back on the device
//	}
package tensor
