package layers

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// CellKind selects the recurrent cell variant.
type CellKind int

// Supported recurrent cells.
const (
	LSTM CellKind = iota // long short-term memory: hidden + cell state
	GRU                  // gated recurrent unit: hidden state only
)

// ParseCellKind parses "lstm" or "gru" (case-insensitive).
func ParseCellKind(s string) (CellKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lstm":
		return LSTM, nil
	case "gru":
		return GRU, nil
	default:
		return 0, fmt.Errorf("unknown cell kind %q (want lstm or gru)", s)
	}
}

// String returns the lower-case cell name.
func (k CellKind) String() string {
	switch k {
	case LSTM:
		return "lstm"
	case GRU:
		return "gru"
	default:
		return fmt.Sprintf("CellKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k CellKind) MarshalText() ([]byte, error) {
	if k != LSTM && k != GRU {
		return nil, fmt.Errorf("invalid cell kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CellKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCellKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Gates returns how many gate blocks the cell stacks in its weight matrices.
func (k CellKind) Gates() int {
	if k == GRU {
		return 3
	}
	return 4
}

// HasCellState reports whether the cell carries a cell state next to h.
func (k CellKind) HasCellState() bool {
	return k == LSTM
}

// CellState is the recurrent state of one cell. C is nil for GRU cells.
// Both tensors are shaped [batch, hidden].
type CellState[B tensor.Backend] struct {
	H *tensor.Tensor[float32, B]
	C *tensor.Tensor[float32, B]
}

// Cell is a single-step recurrent cell.
type Cell[B tensor.Backend] interface {
	// Kind reports the variant.
	Kind() CellKind

	// InputSize returns the expected feature count per timestep.
	InputSize() int

	// HiddenSize returns the width of the hidden state.
	HiddenSize() int

	// Step consumes one timestep, [in] or [batch, in], and returns the next state.
	// The previous state is not modified.
	Step(x *tensor.Tensor[float32, B], state CellState[B]) CellState[B]

	// ZeroState returns an all-zero state for the given batch size on backend.
	ZeroState(batchSize int, backend B) CellState[B]

	// BiasHH returns the hidden-to-hidden bias, or nil when the cell has no bias.
	BiasHH() *nn.Parameter[B]

	// Parameters returns all trainable parameters.
	Parameters() []*nn.Parameter[B]
}

// NewCell creates a cell of the given kind.
func NewCell[B tensor.Backend](kind CellKind, inputSize, hiddenSize int, bias bool, rng *rand.Rand, backend B) Cell[B] {
	switch kind {
	case LSTM:
		return NewLSTMCell(inputSize, hiddenSize, bias, rng, backend)
	case GRU:
		return NewGRUCell(inputSize, hiddenSize, bias, rng, backend)
	default:
		panic(fmt.Sprintf("layers: unknown cell kind %d", int(kind)))
	}
}

// gateWeights holds the stacked input and recurrent projections shared by
// LSTM and GRU cells: W_ih [gates*H, in], W_hh [gates*H, H] and optional biases.
type gateWeights[B tensor.Backend] struct {
	inputSize  int
	hiddenSize int
	gates      int

	weightIH *nn.Parameter[B]
	weightHH *nn.Parameter[B]
	biasIH   *nn.Parameter[B]
	biasHH   *nn.Parameter[B]
}

func newGateWeights[B tensor.Backend](name string, gates, inputSize, hiddenSize int, bias bool, rng *rand.Rand, backend B) gateWeights[B] {
	if inputSize <= 0 || hiddenSize <= 0 {
		panic(fmt.Sprintf("%s: invalid sizes input=%d, hidden=%d", name, inputSize, hiddenSize))
	}
	bound := 1.0 / sqrt(hiddenSize)
	w := gateWeights[B]{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		gates:      gates,
		weightIH:   nn.NewParameter("weight_ih", Uniform(tensor.Shape{gates * hiddenSize, inputSize}, bound, rng, backend)),
		weightHH:   nn.NewParameter("weight_hh", Uniform(tensor.Shape{gates * hiddenSize, hiddenSize}, bound, rng, backend)),
	}
	if bias {
		w.biasIH = nn.NewParameter("bias_ih", Uniform(tensor.Shape{gates * hiddenSize}, bound, rng, backend))
		w.biasHH = nn.NewParameter("bias_hh", Uniform(tensor.Shape{gates * hiddenSize}, bound, rng, backend))
	}
	return w
}

// project returns (x W_ih^T + b_ih, h W_hh^T + b_hh), each [batch, gates*H].
func (w *gateWeights[B]) project(x, h *tensor.Tensor[float32, B]) (inputPart, hiddenPart *tensor.Tensor[float32, B]) {
	width := w.gates * w.hiddenSize
	inputPart = x.MatMul(w.weightIH.Tensor().Transpose())
	hiddenPart = h.MatMul(w.weightHH.Tensor().Transpose())
	if w.biasIH != nil {
		inputPart = inputPart.Add(w.biasIH.Tensor().Reshape(1, width))
		hiddenPart = hiddenPart.Add(w.biasHH.Tensor().Reshape(1, width))
	}
	return inputPart, hiddenPart
}

func (w *gateWeights[B]) parameters() []*nn.Parameter[B] {
	params := []*nn.Parameter[B]{w.weightIH, w.weightHH}
	if w.biasIH != nil {
		params = append(params, w.biasIH, w.biasHH)
	}
	return params
}

// batchInput promotes an unbatched [in] timestep to [1, in] and checks that
// it lines up with the state.
func (w *gateWeights[B]) batchInput(name string, x, h *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	switch len(shape) {
	case 1:
		x = x.Reshape(1, shape[0])
	case 2:
	default:
		panic(fmt.Sprintf("%s: expected timestep [in] or [batch, in], got shape %v", name, shape))
	}
	if x.Shape()[1] != w.inputSize {
		panic(fmt.Sprintf("%s: expected %d input features, got %d", name, w.inputSize, x.Shape()[1]))
	}
	if h == nil {
		panic(fmt.Sprintf("%s: missing hidden state", name))
	}
	hShape := h.Shape()
	if len(hShape) != 2 || hShape[1] != w.hiddenSize || hShape[0] != x.Shape()[0] {
		panic(fmt.Sprintf("%s: state shape %v does not match batch %d, hidden %d",
			name, hShape, x.Shape()[0], w.hiddenSize))
	}
	if x.Device() != h.Device() {
		panic(fmt.Sprintf("%s: input on %s but state on %s", name, x.Device(), h.Device()))
	}
	return x
}
