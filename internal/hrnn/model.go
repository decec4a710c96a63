package hrnn

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNoForgetGate is returned by InitForgetBias for cells without a forget gate.
var ErrNoForgetGate = errors.New("cell has no forget gate")

// forgetBiaser is implemented by cells with a forget gate.
type forgetBiaser interface {
	InitForgetBias() error
}

// Model is the hierarchical recurrent classifier.
//
// Input is a sequence of words, each a sequence of character timesteps shaped
// [input_size] or [batch_size, input_size]. Output is [output_size] for a
// batch of one, [batch_size, output_size] otherwise, with values in (0, 1).
//
// The tracked state is guarded by a mutex, so Forward and ResetHidden may be
// called from several goroutines; calls are serialized.
type Model[B tensor.Backend] struct {
	cfg Config

	level1  layers.Cell[B]
	level2  layers.Cell[B]
	drop    *layers.Dropout[B]
	fc      *nn.Linear[B]
	sigmoid *nn.Sigmoid[B]

	frozen map[string]bool

	mu    sync.Mutex
	state State[B]
}

// New builds a model from cfg with zero state on backend.
func New[B tensor.Backend](cfg Config, backend B) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &Model[B]{
		cfg:     cfg,
		level1:  layers.NewCell(cfg.Cell, cfg.InputSize, cfg.HiddenSize, cfg.Bias, rng, backend),
		level2:  layers.NewCell(cfg.Cell, cfg.HiddenSize, cfg.HiddenSize, cfg.Bias, rng, backend),
		drop:    layers.NewDropout[B](cfg.Dropout, rng),
		fc:      nn.NewLinear(cfg.HiddenSize, cfg.OutputSize, backend),
		sigmoid: nn.NewSigmoid[B](),
		frozen:  make(map[string]bool),
	}
	layers.ResetLinear(m.fc, rng)
	m.state = m.ZeroState(backend)

	if klog.V(1).Enabled() {
		total, _ := m.CountParams()
		klog.Infof("hrnn: built %s model, hidden=%d, %d parameters, device=%s",
			cfg.Cell, cfg.HiddenSize, total, m.state.H0.Device())
	}
	return m, nil
}

// Forward runs the model from the tracked state and stores the final state.
// The tracked state is not reset; see ResetHidden.
func (m *Model[B]) Forward(words [][]*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, next := m.Step(words, m.state)
	m.state = next
	return out
}

// Step runs the model from state and returns the output with the final
// state. It does not read or modify the tracked state.
//
// Concurrent calls are safe while the backend is not recording a gradient
// tape. In training mode they share the dropout rng, so the masks each call
// draws depend on scheduling; serialize Step calls when dropout must be
// reproducible.
func (m *Model[B]) Step(words [][]*tensor.Tensor[float32, B], state State[B]) (*tensor.Tensor[float32, B], State[B]) {
	encodings, l1 := m.encodeWords(words, state.level1())

	l2 := state.level2()
	for _, enc := range encodings {
		l2 = m.level2.Step(m.drop.Forward(enc), l2)
	}

	out := m.drop.Forward(l2.H)
	out = m.fc.Forward(out)
	out = m.sigmoid.Forward(out)
	if out.Shape()[0] == 1 {
		out = out.Reshape(m.cfg.OutputSize)
	}
	return out, joinState(l1, l2)
}

// encodeWords runs level 1 over every word and returns one encoding
// (the hidden state after the word's last character) per word.
func (m *Model[B]) encodeWords(words [][]*tensor.Tensor[float32, B], l1 layers.CellState[B]) ([]*tensor.Tensor[float32, B], layers.CellState[B]) {
	if len(words) == 0 {
		panic("hrnn: empty input, need at least one word")
	}
	if l1.H == nil {
		panic("hrnn: missing level-1 state")
	}

	encodings := make([]*tensor.Tensor[float32, B], 0, len(words))
	for i, word := range words {
		if len(word) == 0 {
			panic(fmt.Sprintf("hrnn: word %d is empty", i))
		}
		if m.cfg.ResetPerWord {
			l1 = m.level1.ZeroState(l1.H.Shape()[0], l1.H.Backend())
		}
		for _, char := range word {
			l1 = m.level1.Step(char, l1)
		}
		encodings = append(encodings, l1.H)
	}
	return encodings, l1
}

// ZeroState returns an all-zero state on backend.
func (m *Model[B]) ZeroState(backend B) State[B] {
	return joinState(
		m.level1.ZeroState(m.cfg.BatchSize, backend),
		m.level2.ZeroState(m.cfg.BatchSize, backend),
	)
}

// ResetHidden replaces the tracked state with zeros on backend. Call it
// before every independent sequence.
func (m *Model[B]) ResetHidden(backend B) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.ZeroState(backend)
}

// State returns the tracked state.
func (m *Model[B]) State() State[B] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InitForgetBias sets the forget-gate quarter of bias_hh to 1 in both
// levels. The write bypasses the gradient tape.
func (m *Model[B]) InitForgetBias() error {
	for i, cell := range []layers.Cell[B]{m.level1, m.level2} {
		fb, ok := cell.(forgetBiaser)
		if !ok {
			return errors.Wrapf(ErrNoForgetGate, "hrnn: %s cell", m.cfg.Cell)
		}
		if err := fb.InitForgetBias(); err != nil {
			return errors.Wrapf(err, "hrnn: level %d", i+1)
		}
	}
	return nil
}

// NamedParameters returns every parameter with its dotted path.
func (m *Model[B]) NamedParameters() []layers.Named[B] {
	named := layers.Prefix("rnn1", m.level1.Parameters())
	named = append(named, layers.Prefix("rnn2", m.level2.Parameters())...)
	return append(named, layers.Prefix("fc", m.fc.Parameters())...)
}

// Parameters returns all parameters, trainable or not.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return layers.Unwrap(m.NamedParameters())
}

// TrainableParameters returns the parameters an optimizer should update.
func (m *Model[B]) TrainableParameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, n := range m.NamedParameters() {
		if !m.frozen[n.Path] {
			params = append(params, n.Param)
		}
	}
	return params
}

// SetTrainable marks the parameter at path (e.g. "rnn1.bias_hh") as
// trainable or frozen.
func (m *Model[B]) SetTrainable(path string, trainable bool) error {
	for _, n := range m.NamedParameters() {
		if n.Path != path {
			continue
		}
		if trainable {
			delete(m.frozen, path)
		} else {
			m.frozen[path] = true
		}
		return nil
	}
	return errors.Wrapf(layers.ErrUnknownParameter, "hrnn: %q", path)
}

// CountParams returns the total and trainable element counts.
func (m *Model[B]) CountParams() (total, trainable int) {
	return layers.NumElements(m.Parameters()), layers.NumElements(m.TrainableParameters())
}

// Train switches dropout to training mode.
func (m *Model[B]) Train() { m.drop.SetTraining(true) }

// Eval switches dropout off.
func (m *Model[B]) Eval() { m.drop.SetTraining(false) }

// Training reports whether the model is in training mode.
func (m *Model[B]) Training() bool { return m.drop.Training() }

// Config returns the model configuration.
func (m *Model[B]) Config() Config { return m.cfg }

// CellKind returns the cell used by both levels.
func (m *Model[B]) CellKind() layers.CellKind { return m.cfg.Cell }

// String returns a string representation of the architecture.
func (m *Model[B]) String() string {
	return fmt.Sprintf(`Model(
  rnn1: %s
  rnn2: %s
  %s
  Linear(in=%d, out=%d)
  Sigmoid()
)`, m.level1, m.level2, m.drop, m.fc.InFeatures(), m.fc.OutFeatures())
}
