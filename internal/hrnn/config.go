package hrnn

import (
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/pkg/errors"
)

// Config holds the hierarchical classifier hyperparameters.
type Config struct {
	InputSize  int     `yaml:"input_size"`
	HiddenSize int     `yaml:"hidden_size"`
	Bias       bool    `yaml:"bias"`
	Dropout    float64 `yaml:"dropout"`
	BatchSize  int     `yaml:"batch_size"`
	OutputSize int     `yaml:"output_size"`

	// Cell selects the recurrent cell for both levels.
	Cell layers.CellKind `yaml:"cell"`

	// ResetPerWord zeroes the level-1 state before every word, so each
	// encoding depends on its own characters only. When false the level-1
	// state carries over from one word to the next.
	ResetPerWord bool `yaml:"reset_per_word"`

	// Seed drives parameter initialization and the dropout masks.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns an LSTM configuration with bias, no dropout, batch
// size 1 and a single output.
func DefaultConfig(inputSize, hiddenSize int) Config {
	return Config{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Bias:       true,
		BatchSize:  1,
		OutputSize: 1,
		Cell:       layers.LSTM,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.InputSize <= 0:
		return errors.Errorf("hrnn: input_size must be positive, got %d", c.InputSize)
	case c.HiddenSize <= 0:
		return errors.Errorf("hrnn: hidden_size must be positive, got %d", c.HiddenSize)
	case c.BatchSize <= 0:
		return errors.Errorf("hrnn: batch_size must be positive, got %d", c.BatchSize)
	case c.OutputSize <= 0:
		return errors.Errorf("hrnn: output_size must be positive, got %d", c.OutputSize)
	case c.Dropout < 0 || c.Dropout >= 1:
		return errors.Errorf("hrnn: dropout must be in [0, 1), got %v", c.Dropout)
	case c.Cell != layers.LSTM && c.Cell != layers.GRU:
		return errors.Errorf("hrnn: unknown cell kind %d", int(c.Cell))
	}
	return nil
}
