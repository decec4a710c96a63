package cnn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{HiddenSize: []int{4, 8}}.WithDefaults()

	assert.Equal(t, []int{0, 0}, cfg.Padding)
	assert.Equal(t, []int{1, 1}, cfg.Dilation)
	assert.Equal(t, 1, cfg.Stride)
	assert.Equal(t, 1, cfg.OutputSize)
	assert.Equal(t, DualStage, cfg.Topology())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"no stages", func(c *Config) { c.HiddenSize = nil }, "hidden_size must have 1 or 2 entries"},
		{"three stages", func(c *Config) { c.HiddenSize = []int{1, 2, 3} }, "hidden_size must have 1 or 2 entries"},
		{"input size", func(c *Config) { c.InputSize = 0 }, "input_size"},
		{"conv seq len", func(c *Config) { c.ConvSeqLen = -1 }, "conv_seq_len"},
		{"dropout", func(c *Config) { c.Dropout = 1 }, "dropout"},
		{"short kernels", func(c *Config) { c.ConvKernel = nil }, "conv_kernel needs 1 entries"},
		{"pool padding", func(c *Config) { c.Padding = []int{2} }, "padding[0]=2"},
		{"zero pool", func(c *Config) { c.PoolKernel = []int{0} }, "pool_kernel[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := singleStage()
			tt.mutate(&cfg)
			err := cfg.WithDefaults().Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFlattenedLength(t *testing.T) {
	flat, err := FlattenedLength(singleStage(), 10)
	require.NoError(t, err)
	assert.Equal(t, 16, flat)

	_, err = FlattenedLength(singleStage(), 2)
	assert.Error(t, err)

	_, err = FlattenedLength(Config{InputSize: 1}, 10)
	assert.Error(t, err)
}

func TestConfig_YAML(t *testing.T) {
	src := `
input_size: 8
conv_seq_len: 24
hidden_size: [6, 4]
conv_kernel: [3, 3]
pool_kernel: [2, 2]
dilation: [1, 2]
dropout: 0.1
seed: 9
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(src), &cfg))
	cfg = cfg.WithDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.InputSize)
	assert.Equal(t, []int{6, 4}, cfg.HiddenSize)
	assert.Equal(t, []int{1, 2}, cfg.Dilation)
	assert.Equal(t, []int{0, 0}, cfg.Padding)
	assert.InDelta(t, 0.1, cfg.Dropout, 1e-12)
	assert.Equal(t, int64(9), cfg.Seed)
}
