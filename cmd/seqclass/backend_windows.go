//go:build windows

package main

import (
	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/webgpu"
	"github.com/pkg/errors"
)

func withWebGPU(j *job) error {
	gpu, err := webgpu.New()
	if err != nil {
		return errors.Wrap(err, "webgpu")
	}
	defer gpu.Release()
	return execute(j, autodiff.New(gpu))
}
