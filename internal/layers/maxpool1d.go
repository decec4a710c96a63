package layers

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// MaxPool1D is a non-overlapping 1D max pooling layer (stride == kernel).
//
// Input shape:  [batch, channels, length]
// Output shape: [batch, channels, out_length]
//
// Where (floor mode):
//
//	out_length = (length + 2*padding - kernel) / kernel + 1
//
// Padded positions never win a window: they repeat the nearest edge element,
// which leaves every window maximum unchanged. Padding must not exceed half
// the kernel so that every window holds at least one real element.
//
// The pooling is computed from differentiable ops only: one Gather per
// window offset, folded with max(a, b) = b + relu(a - b).
type MaxPool1D[B tensor.Backend] struct {
	kernelSize int
	padding    int
	relu       *nn.ReLU[B]
	windows    gatherCache[B]
	backend    B
}

// NewMaxPool1D creates a new 1D max pooling layer.
func NewMaxPool1D[B tensor.Backend](kernelSize, padding int, backend B) *MaxPool1D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool1d: invalid kernel size %d", kernelSize))
	}
	if padding < 0 || padding > kernelSize/2 {
		panic(fmt.Sprintf("maxpool1d: padding %d must be in [0, %d] for kernel %d", padding, kernelSize/2, kernelSize))
	}
	return &MaxPool1D[B]{
		kernelSize: kernelSize,
		padding:    padding,
		relu:       nn.NewReLU[B](),
		backend:    backend,
	}
}

// Forward applies max pooling to a [batch, channels, length] input.
func (p *MaxPool1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("maxpool1d: expected 3D input [N,C,L], got %dD", len(shape)))
	}
	batch, channels, length := shape[0], shape[1], shape[2]
	outLength := p.OutputLength(length)
	if outLength <= 0 {
		panic(fmt.Sprintf("maxpool1d: kernel size %d too large for input length %d (padding=%d)",
			p.kernelSize, length, p.padding))
	}

	flat := input.Reshape(batch*channels, length)

	var output *tensor.Tensor[float32, B]
	for j, g := range p.windowsFor(batch*channels, length, outLength) {
		window := g.apply(flat) // [N*C, out_length], element j of every window
		if j == 0 {
			output = window
			continue
		}
		output = window.Add(p.relu.Forward(output.Sub(window)))
	}
	return output.Reshape(batch, channels, outLength)
}

// windowsFor returns one gather per window offset, built once per input
// geometry.
func (p *MaxPool1D[B]) windowsFor(rows, length, outLength int) []*columnGather[B] {
	return p.windows.get(gatherKey{rows, length}, func() []*columnGather[B] {
		gathers := make([]*columnGather[B], p.kernelSize)
		for j := range gathers {
			offset := j
			gathers[j] = newColumnGather(rows, length, outLength, func(col int) int {
				pos := col*p.kernelSize + offset - p.padding
				return min(max(pos, 0), length-1)
			}, p.backend)
		}
		return gathers
	})
}

// OutputLength returns the pooled length for an input of the given length.
func (p *MaxPool1D[B]) OutputLength(length int) int {
	padded := length + 2*p.padding
	if padded < p.kernelSize {
		return 0
	}
	return (padded-p.kernelSize)/p.kernelSize + 1
}

// Parameters returns nil: pooling has no trainable parameters.
func (p *MaxPool1D[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// KernelSize returns the pooling window size (also the stride).
func (p *MaxPool1D[B]) KernelSize() int { return p.kernelSize }

// Padding returns the padding applied on each side.
func (p *MaxPool1D[B]) Padding() int { return p.padding }

// String returns a string representation of the layer.
func (p *MaxPool1D[B]) String() string {
	return fmt.Sprintf("MaxPool1D(kernel_size=%d, stride=%d, padding=%d)", p.kernelSize, p.kernelSize, p.padding)
}
