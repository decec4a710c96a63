//go:build !windows

package main

import "github.com/pkg/errors"

func withWebGPU(*job) error {
	return errors.New("webgpu backend is only built on windows")
}
