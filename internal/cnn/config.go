package cnn

import (
	"github.com/pkg/errors"
)

// Topology is the closed set of classifier layouts.
type Topology int

// Topologies, selected by the number of hidden sizes.
const (
	SingleStage Topology = iota + 1 // conv -> relu -> pool
	DualStage                       // two conv blocks with dropout in between
)

// String returns the topology name.
func (t Topology) String() string {
	switch t {
	case SingleStage:
		return "single-stage"
	case DualStage:
		return "dual-stage"
	default:
		return "invalid"
	}
}

// Stages returns the number of convolution blocks.
func (t Topology) Stages() int {
	return int(t)
}

// Config holds the classifier hyperparameters.
//
// Per-stage slices (ConvKernel, PoolKernel, Padding, Dilation) are indexed by
// stage and must have at least one entry per stage.
type Config struct {
	// InputSize is the number of input channels.
	InputSize int `yaml:"input_size"`

	// ConvSeqLen is the flattened feature count after the last pooling
	// (channels x length). It must match the input length actually used.
	// FlattenedLength computes it.
	ConvSeqLen int `yaml:"conv_seq_len"`

	// HiddenSize holds the output channels of each stage; its length (1 or 2)
	// selects the topology.
	HiddenSize []int `yaml:"hidden_size"`

	ConvKernel []int `yaml:"conv_kernel"`
	PoolKernel []int `yaml:"pool_kernel"`

	// Padding applies to both the convolution and the pooling of a stage.
	// Defaults to zeros.
	Padding []int `yaml:"padding"`

	// Stride is recorded for compatibility; convolutions always run with stride 1.
	Stride int `yaml:"stride"`

	// Dilation defaults to ones.
	Dilation []int `yaml:"dilation"`

	Dropout    float64 `yaml:"dropout"`
	OutputSize int     `yaml:"output_size"`

	// Seed drives parameter initialization and the dropout masks.
	Seed int64 `yaml:"seed"`
}

// WithDefaults returns a copy of c with unset optional fields filled in.
func (c Config) WithDefaults() Config {
	stages := len(c.HiddenSize)
	if len(c.Padding) == 0 {
		c.Padding = make([]int, stages)
	}
	if len(c.Dilation) == 0 {
		c.Dilation = make([]int, stages)
		for i := range c.Dilation {
			c.Dilation[i] = 1
		}
	}
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.OutputSize == 0 {
		c.OutputSize = 1
	}
	return c
}

// Topology derives the layout from HiddenSize. It returns 0 when the length
// is neither 1 nor 2.
func (c Config) Topology() Topology {
	switch len(c.HiddenSize) {
	case 1:
		return SingleStage
	case 2:
		return DualStage
	default:
		return 0
	}
}

// Validate checks the configuration. Call it on the result of WithDefaults.
func (c Config) Validate() error {
	topology := c.Topology()
	if topology == 0 {
		return errors.Errorf("cnn: hidden_size must have 1 or 2 entries, got %d", len(c.HiddenSize))
	}
	if c.InputSize <= 0 {
		return errors.Errorf("cnn: input_size must be positive, got %d", c.InputSize)
	}
	if c.ConvSeqLen <= 0 {
		return errors.Errorf("cnn: conv_seq_len must be positive, got %d", c.ConvSeqLen)
	}
	if c.OutputSize <= 0 {
		return errors.Errorf("cnn: output_size must be positive, got %d", c.OutputSize)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return errors.Errorf("cnn: dropout must be in [0, 1), got %v", c.Dropout)
	}
	if c.Stride <= 0 {
		return errors.Errorf("cnn: stride must be positive, got %d", c.Stride)
	}

	stages := topology.Stages()
	for _, field := range []struct {
		name   string
		values []int
	}{
		{"conv_kernel", c.ConvKernel},
		{"pool_kernel", c.PoolKernel},
		{"padding", c.Padding},
		{"dilation", c.Dilation},
	} {
		if len(field.values) < stages {
			return errors.Errorf("cnn: %s needs %d entries for a %s classifier, got %d",
				field.name, stages, topology, len(field.values))
		}
	}
	for i := 0; i < stages; i++ {
		switch {
		case c.HiddenSize[i] <= 0:
			return errors.Errorf("cnn: hidden_size[%d] must be positive, got %d", i, c.HiddenSize[i])
		case c.ConvKernel[i] <= 0:
			return errors.Errorf("cnn: conv_kernel[%d] must be positive, got %d", i, c.ConvKernel[i])
		case c.PoolKernel[i] <= 0:
			return errors.Errorf("cnn: pool_kernel[%d] must be positive, got %d", i, c.PoolKernel[i])
		case c.Dilation[i] <= 0:
			return errors.Errorf("cnn: dilation[%d] must be positive, got %d", i, c.Dilation[i])
		case c.Padding[i] < 0 || c.Padding[i] > c.PoolKernel[i]/2:
			return errors.Errorf("cnn: padding[%d]=%d must be in [0, pool_kernel/2=%d]", i, c.Padding[i], c.PoolKernel[i]/2)
		}
	}
	return nil
}

// FlattenedLength returns the conv_seq_len that matches an input of the
// given length, i.e. channels x length after the last pooling. Only the
// shape-related fields of cfg are used.
func FlattenedLength(cfg Config, length int) (int, error) {
	cfg = cfg.WithDefaults()
	if cfg.ConvSeqLen == 0 {
		cfg.ConvSeqLen = 1
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	stages := cfg.Topology().Stages()
	for i := 0; i < stages; i++ {
		length = length + 2*cfg.Padding[i] - cfg.Dilation[i]*(cfg.ConvKernel[i]-1)
		if length <= 0 {
			return 0, errors.Errorf("cnn: input too short for stage %d convolution", i+1)
		}
		padded := length + 2*cfg.Padding[i]
		if padded < cfg.PoolKernel[i] {
			return 0, errors.Errorf("cnn: input too short for stage %d pooling", i+1)
		}
		length = (padded-cfg.PoolKernel[i])/cfg.PoolKernel[i] + 1
	}
	return cfg.HiddenSize[stages-1] * length, nil
}
