package hrnn

import (
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/layers"
)

// State is the recurrent state of both levels, each tensor shaped
// [batch_size, hidden_size]. C0 and C1 are nil for GRU cells.
type State[B tensor.Backend] struct {
	H0, C0 *tensor.Tensor[float32, B] // level 1 (characters)
	H1, C1 *tensor.Tensor[float32, B] // level 2 (words)
}

func (s State[B]) level1() layers.CellState[B] {
	return layers.CellState[B]{H: s.H0, C: s.C0}
}

func (s State[B]) level2() layers.CellState[B] {
	return layers.CellState[B]{H: s.H1, C: s.C1}
}

func joinState[B tensor.Backend](l1, l2 layers.CellState[B]) State[B] {
	return State[B]{H0: l1.H, C0: l1.C, H1: l2.H, C1: l2.C}
}

// Tensors returns the non-nil state tensors in H0, C0, H1, C1 order.
func (s State[B]) Tensors() []*tensor.Tensor[float32, B] {
	var out []*tensor.Tensor[float32, B]
	for _, t := range []*tensor.Tensor[float32, B]{s.H0, s.C0, s.H1, s.C1} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
