//go:build windows

package device

import "github.com/born-ml/born/backend/webgpu"

func webGPUAvailable() bool {
	return webgpu.IsAvailable()
}
