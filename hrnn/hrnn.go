// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package hrnn provides a two-level hierarchical recurrent classifier
// (characters -> words -> label) built on Born.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := hrnn.New(hrnn.DefaultConfig(8, 16), backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := model.InitForgetBias(); err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, sentence := range sentences {
//	    model.ResetHidden(backend) // state carries over otherwise
//	    probs := model.Forward(sentence) // [][]*Tensor -> [1]
//	    _ = probs
//	}
//
// Step is the stateless alternative:
//
//	probs, state := model.Step(sentence, model.ZeroState(backend))
package hrnn

import (
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/hrnn"
	"github.com/born-ml/seqclass/internal/layers"
)

// Config holds the model hyperparameters.
type Config = hrnn.Config

// State is the recurrent state of both levels.
type State[B tensor.Backend] = hrnn.State[B]

// Model is the hierarchical recurrent classifier.
type Model[B tensor.Backend] = hrnn.Model[B]

// CellKind selects LSTM or GRU cells.
type CellKind = layers.CellKind

// Cell kinds.
const (
	LSTM = layers.LSTM
	GRU  = layers.GRU
)

// ErrNoForgetGate is returned by InitForgetBias on GRU models.
var ErrNoForgetGate = hrnn.ErrNoForgetGate

// DefaultConfig returns an LSTM configuration with bias, no dropout, batch
// size 1 and a single output.
func DefaultConfig(inputSize, hiddenSize int) Config {
	return hrnn.DefaultConfig(inputSize, hiddenSize)
}

// New builds a model with zero state on backend.
func New[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	return hrnn.New(cfg, backend)
}

// ParseCellKind parses "lstm" or "gru".
func ParseCellKind(s string) (CellKind, error) {
	return layers.ParseCellKind(s)
}
