//go:build !windows

package device

// Born builds its WebGPU backend for windows only.
func webGPUAvailable() bool {
	return false
}
