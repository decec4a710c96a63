package hrnn

import (
	"sync"
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.Backend[*cpu.Backend]

type words = [][]*tensor.Tensor[float32, Backend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

// makeWords builds count words of length steps with features in [-1, 1],
// varied by offset so different words differ.
func makeWords(t *testing.T, count, steps, features, offset int, backend Backend) words {
	t.Helper()
	out := make(words, count)
	for w := range out {
		for s := 0; s < steps; s++ {
			data := make([]float32, features)
			for f := range data {
				data[f] = float32(((w+offset)*31+s*7+f*3)%11)/5 - 1
			}
			out[w] = append(out[w], must.M1(tensor.FromSlice(data, tensor.Shape{features}, backend)))
		}
	}
	return out
}

func copyData(x *tensor.Tensor[float32, Backend]) []float32 {
	return append([]float32(nil), x.Data()...)
}

func assertProbabilities(t *testing.T, values []float32) {
	t.Helper()
	for i, v := range values {
		assert.Greater(t, v, float32(0), "value %d", i)
		assert.Less(t, v, float32(1), "value %d", i)
	}
}

func assertZeroState(t *testing.T, state State[Backend], batch, hidden int) {
	t.Helper()
	for _, x := range state.Tensors() {
		assert.Equal(t, tensor.Shape{batch, hidden}, x.Shape())
		assert.Equal(t, make([]float32, batch*hidden), x.Data())
	}
}

func TestModel_LSTMScenario(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))
	input := makeWords(t, 3, 5, 8, 0, backend)

	out := model.Forward(input)
	assert.Equal(t, tensor.Shape{1}, out.Shape())
	assertProbabilities(t, out.Data())
}

func TestModel_ResetHiddenIsDeterministic(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))
	model.Eval()
	input := makeWords(t, 3, 5, 8, 0, backend)

	model.ResetHidden(backend)
	first := copyData(model.Forward(input))

	// Without a reset the state from the first call leaks into the second.
	leaked := copyData(model.Forward(input))
	assert.NotEqual(t, first, leaked)

	model.ResetHidden(backend)
	second := copyData(model.Forward(input))
	assert.Equal(t, first, second)
}

func TestModel_ResetHiddenZeroesState(t *testing.T) {
	for _, kind := range []layers.CellKind{layers.LSTM, layers.GRU} {
		t.Run(kind.String(), func(t *testing.T) {
			backend := newBackend()
			cfg := DefaultConfig(4, 6)
			cfg.Cell = kind
			cfg.BatchSize = 2
			model := must.M1(New(cfg, backend))
			assertZeroState(t, model.State(), 2, 6)

			input := makeWords(t, 2, 3, 8, 0, backend)
			for i := range input {
				for j := range input[i] {
					input[i][j] = input[i][j].Reshape(2, 4)
				}
			}
			out := model.Forward(input)
			assert.Equal(t, tensor.Shape{2, 1}, out.Shape())
			assert.NotEqual(t, make([]float32, 12), model.State().H1.Data())

			model.ResetHidden(backend)
			state := model.State()
			assertZeroState(t, state, 2, 6)
			if kind == layers.GRU {
				assert.Nil(t, state.C0)
				assert.Nil(t, state.C1)
				assert.Len(t, state.Tensors(), 2)
			} else {
				assert.Len(t, state.Tensors(), 4)
			}
		})
	}
}

func TestModel_OrderMatters(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))
	model.Eval()
	input := makeWords(t, 3, 4, 8, 0, backend)
	reversed := words{input[2], input[1], input[0]}

	forward, _ := model.Step(input, model.ZeroState(backend))
	backward, _ := model.Step(reversed, model.ZeroState(backend))
	assert.NotEqual(t, forward.Data(), backward.Data())
}

func TestModel_StepIsPure(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))
	model.Eval()
	input := makeWords(t, 2, 3, 8, 0, backend)

	tracked := model.State()
	start := model.ZeroState(backend)
	out, next := model.Step(input, start)

	// Tracked state untouched.
	after := model.State()
	assert.Same(t, tracked.H0, after.H0)
	assert.Same(t, tracked.C1, after.C1)
	assertZeroState(t, after, 1, 16)

	// Input state untouched, output state advanced.
	assertZeroState(t, start, 1, 16)
	assert.NotEqual(t, make([]float32, 16), next.H1.Data())

	// Forward from a zero tracked state matches Step.
	assert.Equal(t, copyData(out), model.Forward(input).Data())
	assert.Equal(t, next.H1.Data(), model.State().H1.Data())

	// Threading the state explicitly matches two stateful calls.
	second, _ := model.Step(input, next)
	assert.Equal(t, copyData(second), model.Forward(input).Data())
}

func TestModel_ResetPerWord(t *testing.T) {
	backend := newBackend()
	a := makeWords(t, 1, 3, 8, 0, backend)[0]
	b := makeWords(t, 1, 3, 8, 5, backend)[0]
	c := makeWords(t, 1, 3, 8, 9, backend)[0]

	encodeLast := func(model *Model[Backend], input words) []float32 {
		encodings, _ := model.encodeWords(input, model.ZeroState(backend).level1())
		return copyData(encodings[len(encodings)-1])
	}

	carry := must.M1(New(DefaultConfig(8, 16), backend))
	assert.NotEqual(t, encodeLast(carry, words{a, c}), encodeLast(carry, words{b, c}))

	cfg := DefaultConfig(8, 16)
	cfg.ResetPerWord = true
	reset := must.M1(New(cfg, backend))
	assert.Equal(t, encodeLast(reset, words{a, c}), encodeLast(reset, words{b, c}))
	assert.Equal(t, encodeLast(reset, words{c}), encodeLast(reset, words{a, c}))
}

func TestModel_InitForgetBias(t *testing.T) {
	backend := newBackend()
	const hidden = 16
	model := must.M1(New(DefaultConfig(8, hidden), backend))

	cells := []layers.Cell[Backend]{model.level1, model.level2}
	before := make([][]float32, len(cells))
	ihBefore := make([][]float32, len(cells))
	for i, cell := range cells {
		before[i] = copyData(cell.BiasHH().Tensor())
		ihBefore[i] = copyData(cell.Parameters()[2].Tensor())
	}

	require.NoError(t, model.InitForgetBias())

	ones := make([]float32, hidden)
	for i := range ones {
		ones[i] = 1
	}
	for i, cell := range cells {
		after := cell.BiasHH().Tensor().Data()
		require.Len(t, after, 4*hidden)
		assert.Equal(t, before[i][:hidden], after[:hidden])
		assert.Equal(t, ones, after[hidden:2*hidden])
		assert.Equal(t, before[i][2*hidden:], after[2*hidden:])
		assert.Equal(t, ihBefore[i], cell.Parameters()[2].Tensor().Data())
	}
}

func TestModel_InitForgetBiasErrors(t *testing.T) {
	backend := newBackend()

	cfg := DefaultConfig(4, 4)
	cfg.Cell = layers.GRU
	gru := must.M1(New(cfg, backend))
	err := gru.InitForgetBias()
	assert.ErrorIs(t, err, ErrNoForgetGate)
	assert.EqualError(t, err, "hrnn: gru cell: cell has no forget gate")

	cfg = DefaultConfig(4, 4)
	cfg.Bias = false
	noBias := must.M1(New(cfg, backend))
	err = noBias.InitForgetBias()
	assert.ErrorIs(t, err, layers.ErrNoBias)
	assert.EqualError(t, err, "hrnn: level 1: cell has no bias")
}

func TestModel_CountParams(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))

	// rnn1: 64*8 + 64*16 + 64 + 64; rnn2: 64*16 + 64*16 + 64 + 64; fc: 16 + 1.
	want := (512 + 1024 + 128) + (1024 + 1024 + 128) + 17
	total, trainable := model.CountParams()
	assert.Equal(t, want, total)
	assert.Equal(t, want, trainable)

	sum := 0
	for _, p := range model.Parameters() {
		sum += p.Tensor().NumElements()
	}
	assert.Equal(t, sum, total)

	require.NoError(t, model.SetTrainable("rnn1.weight_ih", false))
	total, trainable = model.CountParams()
	assert.Equal(t, want, total)
	assert.Equal(t, want-512, trainable)
	assert.LessOrEqual(t, trainable, total)
	assert.Len(t, model.TrainableParameters(), len(model.Parameters())-1)

	assert.ErrorIs(t, model.SetTrainable("rnn3.weight_ih", false), layers.ErrUnknownParameter)
}

func TestModel_GRU(t *testing.T) {
	backend := newBackend()
	cfg := DefaultConfig(8, 10)
	cfg.Cell = layers.GRU
	cfg.OutputSize = 3
	model := must.M1(New(cfg, backend))
	assert.Equal(t, layers.GRU, model.CellKind())

	out := model.Forward(makeWords(t, 4, 2, 8, 0, backend))
	assert.Equal(t, tensor.Shape{3}, out.Shape())
	assertProbabilities(t, out.Data())

	// rnn1: 30*8 + 30*10 + 60; rnn2: 30*10 + 30*10 + 60; fc: 30 + 3.
	total, _ := model.CountParams()
	assert.Equal(t, (240+300+60)+(300+300+60)+33, total)
}

func TestModel_DropoutTrainingVsEval(t *testing.T) {
	backend := newBackend()
	cfg := DefaultConfig(8, 16)
	cfg.Dropout = 0.5
	model := must.M1(New(cfg, backend))
	input := makeWords(t, 3, 3, 8, 0, backend)
	assert.True(t, model.Training())

	model.Eval()
	first, _ := model.Step(input, model.ZeroState(backend))
	second, _ := model.Step(input, model.ZeroState(backend))
	assert.Equal(t, first.Data(), second.Data())

	model.Train()
	out, _ := model.Step(input, model.ZeroState(backend))
	assertProbabilities(t, out.Data())
}

func TestModel_InvalidInput(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(8, 16), backend))

	assert.Panics(t, func() { model.Forward(nil) }, "no words")
	assert.Panics(t, func() { model.Forward(words{{}}) }, "empty word")
	assert.Panics(t, func() { model.Forward(makeWords(t, 1, 2, 5, 0, backend)) }, "feature size")
}

func TestModel_ConcurrentForward(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(4, 8), backend))
	model.Eval()
	input := makeWords(t, 2, 2, 4, 0, backend)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			model.Forward(input)
		}()
	}
	wg.Wait()

	assert.Equal(t, tensor.Shape{1, 8}, model.State().H0.Shape())
}

func TestModel_ConcurrentStepWithDropout(t *testing.T) {
	backend := newBackend()
	cfg := DefaultConfig(4, 8)
	cfg.Dropout = 0.5
	model := must.M1(New(cfg, backend))
	require.True(t, model.Training())
	input := makeWords(t, 3, 2, 4, 0, backend)

	outs := make([][]float32, 4)
	var wg sync.WaitGroup
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _ := model.Step(input, model.ZeroState(backend))
			outs[i] = out.Data()
		}()
	}
	wg.Wait()

	for _, out := range outs {
		require.Len(t, out, cfg.OutputSize)
		assertProbabilities(t, out)
	}
}

func TestModel_SGDStep(t *testing.T) {
	backend := newBackend()
	model := must.M1(New(DefaultConfig(4, 8), backend))
	require.NoError(t, model.InitForgetBias())
	model.Eval()
	input := makeWords(t, 2, 3, 4, 0, backend)

	before, _ := model.Step(input, model.ZeroState(backend))
	beforeData := copyData(before)

	sgd := optim.NewSGD(model.TrainableParameters(), optim.SGDConfig{LR: 0.5}, backend)
	backend.Tape().StartRecording()
	out, _ := model.Step(input, model.ZeroState(backend))
	grads := autodiff.Backward(out, backend)
	backend.Tape().StopRecording()
	sgd.Step(grads)
	backend.Tape().Clear()

	after, _ := model.Step(input, model.ZeroState(backend))
	assert.NotEqual(t, beforeData, after.Data())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig(8, 16).Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"input size", func(c *Config) { c.InputSize = 0 }},
		{"hidden size", func(c *Config) { c.HiddenSize = -1 }},
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"output size", func(c *Config) { c.OutputSize = 0 }},
		{"dropout", func(c *Config) { c.Dropout = 1.5 }},
		{"cell", func(c *Config) { c.Cell = layers.CellKind(5) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(8, 16)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, newBackend())
			assert.Error(t, err)
		})
	}
}
