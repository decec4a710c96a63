package layers

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dropout zeroes elements with probability p during training and scales the
// survivors by 1/(1-p) (inverted dropout), so evaluation is the identity.
//
// Layers start in training mode. Call SetTraining(false) for deterministic
// inference. Forward may be called from several goroutines; masks are drawn
// from the shared rng one call at a time.
type Dropout[B tensor.Backend] struct {
	p float64

	mu       sync.Mutex // guards training and rng
	training bool
	rng      *rand.Rand
}

// NewDropout creates a dropout layer. p must be in [0, 1).
func NewDropout[B tensor.Backend](p float64, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v not in [0, 1)", p))
	}
	return &Dropout[B]{p: p, training: true, rng: rng}
}

// Forward applies dropout. It returns input unchanged outside training or
// when p == 0.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mask := d.mask(input.NumElements())
	if mask == nil {
		return input
	}
	return input.Mul(constant(mask, input.Shape(), input.Backend()))
}

// mask draws n inverted-dropout multipliers, or returns nil when dropout is
// inactive.
func (d *Dropout[B]) mask(n int) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.training || d.p == 0 {
		return nil
	}

	scale := float32(1.0 / (1.0 - d.p))
	mask := make([]float32, n)
	for i := range mask {
		if d.rng.Float64() >= d.p {
			mask[i] = scale
		}
	}
	return mask
}

// SetTraining switches between training (stochastic) and evaluation (identity).
func (d *Dropout[B]) SetTraining(training bool) {
	d.mu.Lock()
	d.training = training
	d.mu.Unlock()
}

// Training reports whether the layer is in training mode.
func (d *Dropout[B]) Training() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.training
}

// P returns the drop probability.
func (d *Dropout[B]) P() float64 { return d.p }

// Parameters returns nil: dropout has no trainable parameters.
func (d *Dropout[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(p=%g)", d.p)
}
