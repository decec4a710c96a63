package layers

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// GRUCell is a single gated recurrent unit.
//
// Gates are stacked in the order reset, update, new:
//
//	r = σ(x W_ir + b_ir + h W_hr + b_hr)
//	z = σ(x W_iz + b_iz + h W_hz + b_hz)
//	n = tanh(x W_in + b_in + r ⊙ (h W_hn + b_hn))
//	h' = (1 - z) ⊙ n + z ⊙ h
type GRUCell[B tensor.Backend] struct {
	gateWeights[B]
	sigmoid *nn.Sigmoid[B]
	tanh    *nn.Tanh[B]
}

// NewGRUCell creates a GRU cell with weights drawn from U(-1/sqrt(H), 1/sqrt(H)).
func NewGRUCell[B tensor.Backend](inputSize, hiddenSize int, bias bool, rng *rand.Rand, backend B) *GRUCell[B] {
	return &GRUCell[B]{
		gateWeights: newGateWeights("gru", 3, inputSize, hiddenSize, bias, rng, backend),
		sigmoid:     nn.NewSigmoid[B](),
		tanh:        nn.NewTanh[B](),
	}
}

// Kind returns GRU.
func (g *GRUCell[B]) Kind() CellKind { return GRU }

// InputSize returns the expected feature count per timestep.
func (g *GRUCell[B]) InputSize() int { return g.inputSize }

// HiddenSize returns the width of h.
func (g *GRUCell[B]) HiddenSize() int { return g.hiddenSize }

// Step advances the cell by one timestep. The C field of state is ignored.
func (g *GRUCell[B]) Step(x *tensor.Tensor[float32, B], state CellState[B]) CellState[B] {
	x = g.batchInput("gru", x, state.H)

	inputPart, hiddenPart := g.project(x, state.H)
	gi := inputPart.Chunk(3, 1)
	gh := hiddenPart.Chunk(3, 1)

	r := g.sigmoid.Forward(gi[0].Add(gh[0]))
	z := g.sigmoid.Forward(gi[1].Add(gh[1]))
	n := g.tanh.Forward(gi[2].Add(r.Mul(gh[2])))

	// (1-z)*n + z*h == n + z*(h-n)
	h := n.Add(z.Mul(state.H.Sub(n)))
	return CellState[B]{H: h}
}

// ZeroState returns a zero hidden state for batchSize rows.
func (g *GRUCell[B]) ZeroState(batchSize int, backend B) CellState[B] {
	return CellState[B]{H: tensor.Zeros[float32](tensor.Shape{batchSize, g.hiddenSize}, backend)}
}

// BiasHH returns the hidden-to-hidden bias [3H], or nil.
func (g *GRUCell[B]) BiasHH() *nn.Parameter[B] { return g.biasHH }

// Parameters returns weight_ih, weight_hh and, if present, bias_ih and bias_hh.
func (g *GRUCell[B]) Parameters() []*nn.Parameter[B] {
	return g.parameters()
}

// String returns a string representation of the cell.
func (g *GRUCell[B]) String() string {
	return fmt.Sprintf("GRUCell(%d, %d, bias=%v)", g.inputSize, g.hiddenSize, g.biasIH != nil)
}
