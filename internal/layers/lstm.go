package layers

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ErrNoBias is returned when a bias-dependent initialization runs on a cell
// built without biases.
var ErrNoBias = errors.New("cell has no bias")

// LSTMCell is a single long short-term memory cell.
//
// Gates are stacked in the order input, forget, cell, output:
//
//	i = σ(x W_ii + b_ii + h W_hi + b_hi)
//	f = σ(x W_if + b_if + h W_hf + b_hf)
//	g = tanh(x W_ig + b_ig + h W_hg + b_hg)
//	o = σ(x W_io + b_io + h W_ho + b_ho)
//	c' = f ⊙ c + i ⊙ g
//	h' = o ⊙ tanh(c')
type LSTMCell[B tensor.Backend] struct {
	gateWeights[B]
	sigmoid *nn.Sigmoid[B]
	tanh    *nn.Tanh[B]
}

// NewLSTMCell creates an LSTM cell with weights drawn from U(-1/sqrt(H), 1/sqrt(H)).
func NewLSTMCell[B tensor.Backend](inputSize, hiddenSize int, bias bool, rng *rand.Rand, backend B) *LSTMCell[B] {
	return &LSTMCell[B]{
		gateWeights: newGateWeights("lstm", 4, inputSize, hiddenSize, bias, rng, backend),
		sigmoid:     nn.NewSigmoid[B](),
		tanh:        nn.NewTanh[B](),
	}
}

// Kind returns LSTM.
func (l *LSTMCell[B]) Kind() CellKind { return LSTM }

// InputSize returns the expected feature count per timestep.
func (l *LSTMCell[B]) InputSize() int { return l.inputSize }

// HiddenSize returns the width of h and c.
func (l *LSTMCell[B]) HiddenSize() int { return l.hiddenSize }

// Step advances the cell by one timestep.
func (l *LSTMCell[B]) Step(x *tensor.Tensor[float32, B], state CellState[B]) CellState[B] {
	x = l.batchInput("lstm", x, state.H)
	if state.C == nil {
		panic("lstm: missing cell state")
	}

	inputPart, hiddenPart := l.project(x, state.H)
	gates := inputPart.Add(hiddenPart).Chunk(4, 1)

	i := l.sigmoid.Forward(gates[0])
	f := l.sigmoid.Forward(gates[1])
	g := l.tanh.Forward(gates[2])
	o := l.sigmoid.Forward(gates[3])

	c := f.Mul(state.C).Add(i.Mul(g))
	h := o.Mul(l.tanh.Forward(c))
	return CellState[B]{H: h, C: c}
}

// ZeroState returns zero h and c for batchSize rows.
func (l *LSTMCell[B]) ZeroState(batchSize int, backend B) CellState[B] {
	shape := tensor.Shape{batchSize, l.hiddenSize}
	return CellState[B]{
		H: tensor.Zeros[float32](shape, backend),
		C: tensor.Zeros[float32](shape, backend),
	}
}

// BiasHH returns the hidden-to-hidden bias [4H], or nil.
func (l *LSTMCell[B]) BiasHH() *nn.Parameter[B] { return l.biasHH }

// InitForgetBias sets the forget-gate slice [H, 2H) of the hidden-to-hidden
// bias to 1. The other bias entries are left as they are.
func (l *LSTMCell[B]) InitForgetBias() error {
	if l.biasHH == nil {
		return ErrNoBias
	}
	data := l.biasHH.Tensor().Data()
	for k := l.hiddenSize; k < 2*l.hiddenSize; k++ {
		data[k] = 1
	}
	return nil
}

// Parameters returns weight_ih, weight_hh and, if present, bias_ih and bias_hh.
func (l *LSTMCell[B]) Parameters() []*nn.Parameter[B] {
	return l.parameters()
}

// String returns a string representation of the cell.
func (l *LSTMCell[B]) String() string {
	return fmt.Sprintf("LSTMCell(%d, %d, bias=%v)", l.inputSize, l.hiddenSize, l.biasIH != nil)
}
