// Package device maps configuration names to Born compute devices and
// reports which of them this build can use.
package device

import (
	"strings"

	"github.com/born-ml/born/tensor"
	"github.com/pkg/errors"
)

// WebGPU is the device reported by Born's WebGPU backend. The public tensor
// package only names CPU and CUDA.
const WebGPU tensor.Device = 4

// Supported lists the devices a model can be placed on, in preference order.
var Supported = []tensor.Device{tensor.CPU, WebGPU}

// Parse returns the device called name ("cpu" or "webgpu", case-insensitive).
// An empty name means CPU.
func Parse(name string) (tensor.Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return tensor.CPU, nil
	case "webgpu", "gpu":
		return WebGPU, nil
	default:
		return 0, errors.Errorf("device: unknown device %q (want cpu or webgpu)", name)
	}
}

// Available reports whether d can be used in this build on this machine.
func Available(d tensor.Device) bool {
	switch d {
	case tensor.CPU:
		return true
	case WebGPU:
		return webGPUAvailable()
	default:
		return false
	}
}

// Check returns an error when d cannot be used.
func Check(d tensor.Device) error {
	if !Available(d) {
		return errors.Errorf("device: %s is not available", d)
	}
	return nil
}
