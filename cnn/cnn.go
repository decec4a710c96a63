// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cnn provides a weight-normalized 1D convolutional sequence
// classifier built on Born.
//
// Example:
//
//	import (
//	    "github.com/born-ml/born/autodiff"
//	    "github.com/born-ml/born/backend/cpu"
//	    "github.com/born-ml/seqclass/cnn"
//	)
//
//	backend := autodiff.New(cpu.New())
//	cfg := cnn.Config{
//	    InputSize:  1,
//	    HiddenSize: []int{4},
//	    ConvKernel: []int{3},
//	    PoolKernel: []int{2},
//	}
//	cfg.ConvSeqLen, _ = cnn.FlattenedLength(cfg, 10) // 16
//	model, err := cnn.New(cfg, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	probs := model.Forward(x) // [batch, 1, 10] -> [batch, 1]
package cnn

import (
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/cnn"
)

// Config holds the classifier hyperparameters.
type Config = cnn.Config

// Topology is the closed set of classifier layouts.
type Topology = cnn.Topology

// Topologies.
const (
	SingleStage = cnn.SingleStage
	DualStage   = cnn.DualStage
)

// Classifier is the convolutional sequence classifier.
type Classifier[B tensor.Backend] = cnn.Classifier[B]

// New builds a classifier. Models need an autodiff backend, e.g.
// autodiff.New(cpu.New()), because Born's activations run through it.
func New[B tensor.Backend](cfg Config, backend B) (*Classifier[B], error) {
	return cnn.New(cfg, backend)
}

// FlattenedLength returns the ConvSeqLen matching an input of the given length.
func FlattenedLength(cfg Config, length int) (int, error) {
	return cnn.FlattenedLength(cfg, length)
}
