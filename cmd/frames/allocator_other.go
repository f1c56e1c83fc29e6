//go:build !windows

package main

import (
	"fmt"

	"github.com/born-ml/frames/internal/device"
)

func newAllocator(name string) (device.Allocator, func(), error) {
	switch name {
	case "emulated", "":
		return device.NewEmulated(), func() {}, nil
	case "webgpu":
		return nil, nil, fmt.Errorf("webgpu allocator is only available on windows")
	default:
		return nil, nil, fmt.Errorf("unknown device %q", name)
	}
}
