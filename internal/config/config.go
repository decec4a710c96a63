// Package config loads the YAML configuration of the seqclass command.
package config

import (
	"os"
	"path/filepath"

	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/cnn"
	"github.com/born-ml/seqclass/internal/device"
	"github.com/born-ml/seqclass/internal/featurize"
	"github.com/born-ml/seqclass/internal/hrnn"
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Model names accepted in File.Model.
const (
	ModelCNN  = "cnn"
	ModelHRNN = "hrnn"
)

// File is the top-level configuration.
type File struct {
	Device string `yaml:"device"`
	Model  string `yaml:"model"`

	// Seed is used by a model section whose own seed is zero.
	Seed int64 `yaml:"seed"`

	CNN       cnn.Config  `yaml:"cnn"`
	HRNN      hrnn.Config `yaml:"hrnn"`
	Featurize Featurize   `yaml:"featurize"`
}

// Featurize selects how text becomes model input.
type Featurize struct {
	Segmenter string `yaml:"segmenter"` // whitespace | tiktoken
	Encoding  string `yaml:"encoding"`  // tiktoken encoding name
	Encoder   string `yaml:"encoder"`   // bits | onehot
	Alphabet  string `yaml:"alphabet"`  // onehot alphabet

	// Length is the CNN input length; text is truncated or zero-padded to it.
	Length int `yaml:"length"`
}

// Default returns the default configuration: a small LSTM hierarchical
// classifier over bit-encoded, whitespace-separated words on the CPU.
func Default() *File {
	return &File{
		Device: "cpu",
		Model:  ModelHRNN,
		Seed:   1,
		CNN: cnn.Config{
			HiddenSize: []int{8},
			ConvKernel: []int{3},
			PoolKernel: []int{2},
			OutputSize: 1,
		},
		HRNN: hrnn.Config{
			HiddenSize: 16,
			Bias:       true,
			BatchSize:  1,
			OutputSize: 1,
			Cell:       layers.LSTM,
		},
		Featurize: Featurize{
			Segmenter: "whitespace",
			Encoding:  "cl100k_base",
			Encoder:   "bits",
			Length:    64,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty or
// does not exist.
func LoadOrDefault(path string) (*File, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes the configuration as YAML, creating the directory if needed.
func (f *File) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate checks the selected model and the shared sections.
func (f *File) Validate() error {
	if _, err := f.ComputeDevice(); err != nil {
		return err
	}
	if f.Featurize.Length <= 0 {
		return errors.Errorf("featurize.length must be positive, got %d", f.Featurize.Length)
	}
	if _, err := featurize.NewCharEncoder(f.Featurize.Encoder, f.Featurize.Alphabet); err != nil {
		return err
	}
	switch f.Model {
	case ModelCNN:
		_, err := f.CNNConfig()
		return err
	case ModelHRNN:
		_, err := f.HRNNConfig()
		return err
	default:
		return errors.Errorf("model must be %q or %q, got %q", ModelCNN, ModelHRNN, f.Model)
	}
}

// ComputeDevice parses the device name.
func (f *File) ComputeDevice() (tensor.Device, error) {
	return device.Parse(f.Device)
}

// Encoder builds the configured character encoder.
func (f *File) Encoder() (featurize.CharEncoder, error) {
	return featurize.NewCharEncoder(f.Featurize.Encoder, f.Featurize.Alphabet)
}

// Segmenter builds the configured segmenter.
func (f *File) Segmenter() (featurize.Segmenter, error) {
	return featurize.NewSegmenter(f.Featurize.Segmenter, f.Featurize.Encoding)
}

// CNNConfig returns the convolutional classifier configuration with the
// derived fields filled in: input_size from the encoder, conv_seq_len from
// featurize.length and the seed from the top level.
func (f *File) CNNConfig() (cnn.Config, error) {
	cfg := f.CNN
	enc, err := f.Encoder()
	if err != nil {
		return cfg, err
	}
	if cfg.InputSize == 0 {
		cfg.InputSize = enc.Size()
	}
	if cfg.InputSize != enc.Size() {
		return cfg, errors.Errorf("cnn.input_size %d does not match encoder size %d", cfg.InputSize, enc.Size())
	}
	if cfg.ConvSeqLen == 0 {
		flat, err := cnn.FlattenedLength(cfg, f.Featurize.Length)
		if err != nil {
			return cfg, errors.Wrap(err, "cannot derive cnn.conv_seq_len")
		}
		cfg.ConvSeqLen = flat
	}
	if cfg.Seed == 0 {
		cfg.Seed = f.Seed
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// HRNNConfig returns the hierarchical classifier configuration with
// input_size taken from the encoder when unset and the seed from the top
// level.
func (f *File) HRNNConfig() (hrnn.Config, error) {
	cfg := f.HRNN
	enc, err := f.Encoder()
	if err != nil {
		return cfg, err
	}
	if cfg.InputSize == 0 {
		cfg.InputSize = enc.Size()
	}
	if cfg.InputSize != enc.Size() {
		return cfg, errors.Errorf("hrnn.input_size %d does not match encoder size %d", cfg.InputSize, enc.Size())
	}
	if cfg.Seed == 0 {
		cfg.Seed = f.Seed
	}
	return cfg, cfg.Validate()
}
