//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/frames/internal/device"
	"github.com/born-ml/frames/internal/device/webgpu"
)

func newAllocator(name string) (device.Allocator, func(), error) {
	switch name {
	case "emulated", "":
		return device.NewEmulated(), func() {}, nil
	case "webgpu":
		alloc, err := webgpu.New()
		if err != nil {
			return nil, nil, err
		}
		return alloc, alloc.Release, nil
	default:
		return nil, nil, fmt.Errorf("unknown device %q", name)
	}
}
