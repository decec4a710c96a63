package layers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Conv1D is a weight-normalized 1D convolution.
//
// The kernel is reparameterized as w = g * v / ||v||, where the norm is taken
// per output channel over (in_channels, kernel). Direction (v) and magnitude
// (g) are separate parameters.
//
// Input shape:  [batch, in_channels, length]
// Output shape: [batch, out_channels, out_length]
//
// Where:
//
//	out_length = length + 2*padding - dilation*(kernel-1)
//
// Stride is always 1. Padding adds zeros on both ends of the sequence.
// The convolution itself runs on Born's Conv2D over a [N, C, 1, L] view, with
// dilation realized by spreading the kernel taps.
//
// Example:
//
//	conv := layers.NewConv1D(1, 4, 3, 0, 1, true, rng, backend)
//	out := conv.Forward(x) // [2, 1, 10] -> [2, 4, 8]
type Conv1D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	padding     int
	dilation    int
	useBias     bool

	weightV *nn.Parameter[B] // [out_channels, in_channels, kernel]
	weightG *nn.Parameter[B] // [out_channels, 1, 1]
	bias    *nn.Parameter[B] // [out_channels] or nil

	rowSum *tensor.Tensor[float32, B] // [in_channels*kernel, 1] ones
	spread *tensor.Tensor[float32, B] // [kernel, span], nil when dilation == 1
	pads   gatherCache[B]

	backend B
}

// NewConv1D creates a weight-normalized 1D convolution.
//
// v and the bias are drawn from U(-1/sqrt(fanIn), 1/sqrt(fanIn)); g starts at
// ||v|| so the initial effective kernel equals v.
func NewConv1D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, padding, dilation int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv1D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv1d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv1d: invalid kernel size %d", kernelSize))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv1d: invalid padding %d", padding))
	}
	if dilation <= 0 {
		panic(fmt.Sprintf("conv1d: invalid dilation %d", dilation))
	}

	fanIn := inChannels * kernelSize
	bound := 1.0 / math.Sqrt(float64(fanIn))

	v := Uniform(tensor.Shape{outChannels, inChannels, kernelSize}, bound, rng, backend)
	g := tensor.Zeros[float32](tensor.Shape{outChannels, 1, 1}, backend)
	vData, gData := v.Data(), g.Data()
	for o := 0; o < outChannels; o++ {
		var sq float64
		for _, x := range vData[o*fanIn : (o+1)*fanIn] {
			sq += float64(x) * float64(x)
		}
		gData[o] = float32(math.Sqrt(sq))
	}

	c := &Conv1D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		padding:     padding,
		dilation:    dilation,
		useBias:     useBias,
		weightV:     nn.NewParameter("weight_v", v),
		weightG:     nn.NewParameter("weight_g", g),
		rowSum:      tensor.Ones[float32](tensor.Shape{fanIn, 1}, backend),
		backend:     backend,
	}
	if useBias {
		c.bias = nn.NewParameter("bias", Uniform(tensor.Shape{outChannels}, bound, rng, backend))
	}
	if dilation > 1 {
		// Tap j of the kernel lands on column j*dilation of the spread kernel.
		c.spread = selection(kernelSize, c.span(), func(col int) int {
			if col%dilation != 0 {
				return -1
			}
			return col / dilation
		}, backend)
	}
	return c
}

// span is the width covered by the dilated kernel.
func (c *Conv1D[B]) span() int {
	return c.dilation*(c.kernelSize-1) + 1
}

// Weight returns the effective kernel g * v / ||v||, shaped
// [out_channels, in_channels, kernel]. It is recomputed on every call so
// gradients reach both v and g.
func (c *Conv1D[B]) Weight() *tensor.Tensor[float32, B] {
	fanIn := c.inChannels * c.kernelSize
	v := c.weightV.Tensor().Reshape(c.outChannels, fanIn)

	norm := v.Mul(v).MatMul(c.rowSum).Sqrt() // [out, 1]
	scale := c.weightG.Tensor().Reshape(c.outChannels, 1).Div(norm)

	return v.Mul(scale).Reshape(c.outChannels, c.inChannels, c.kernelSize)
}

// Forward applies the convolution to a [batch, in_channels, length] input.
func (c *Conv1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("conv1d: expected 3D input [N,C,L], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv1d: input channels %d != expected %d", shape[1], c.inChannels))
	}
	batch, length := shape[0], shape[2]
	outLength := c.OutputLength(length)
	if outLength <= 0 {
		panic(fmt.Sprintf("conv1d: input length %d too short for kernel %d (dilation=%d, padding=%d)",
			length, c.kernelSize, c.dilation, c.padding))
	}

	x := input
	padded := length + 2*c.padding
	if c.padding > 0 {
		rows := batch * c.inChannels
		x = c.padFor(rows, length).apply(x.Reshape(rows, length))
	}
	x = x.Reshape(batch, c.inChannels, 1, padded)

	kernel := c.Weight()
	if c.spread != nil {
		kernel = kernel.Reshape(c.outChannels*c.inChannels, c.kernelSize).MatMul(c.spread)
	}
	kernel = kernel.Reshape(c.outChannels, c.inChannels, 1, c.span())

	outputRaw := c.backend.Conv2D(x.Raw(), kernel.Raw(), 1, 0)
	output := tensor.New[float32, B](outputRaw, c.backend).Reshape(batch, c.outChannels, outLength)

	if c.useBias {
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1))
	}
	return output
}

// padFor returns the zero-padding gather for a [rows, length] view: column j
// reads input position j-padding, zero outside.
func (c *Conv1D[B]) padFor(rows, length int) *columnGather[B] {
	return c.pads.get(gatherKey{rows, length}, func() []*columnGather[B] {
		return []*columnGather[B]{newColumnGather(rows, length, length+2*c.padding, func(col int) int {
			pos := col - c.padding
			if pos >= length {
				return -1
			}
			return pos
		}, c.backend)}
	})[0]
}

// OutputLength returns the output length for an input of the given length.
func (c *Conv1D[B]) OutputLength(length int) int {
	return length + 2*c.padding - c.dilation*(c.kernelSize-1)
}

// Parameters returns weight_v, weight_g and, if present, the bias.
func (c *Conv1D[B]) Parameters() []*nn.Parameter[B] {
	if c.useBias {
		return []*nn.Parameter[B]{c.weightV, c.weightG, c.bias}
	}
	return []*nn.Parameter[B]{c.weightV, c.weightG}
}

// InChannels returns the number of input channels.
func (c *Conv1D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the number of output channels.
func (c *Conv1D[B]) OutChannels() int { return c.outChannels }

// KernelSize returns the number of kernel taps.
func (c *Conv1D[B]) KernelSize() int { return c.kernelSize }

// Padding returns the zero padding applied on each side.
func (c *Conv1D[B]) Padding() int { return c.padding }

// Dilation returns the spacing between kernel taps.
func (c *Conv1D[B]) Dilation() int { return c.dilation }

// String returns a string representation of the layer.
func (c *Conv1D[B]) String() string {
	return fmt.Sprintf("Conv1D(in_channels=%d, out_channels=%d, kernel_size=%d, padding=%d, dilation=%d, bias=%v, weight_norm=true)",
		c.inChannels, c.outChannels, c.kernelSize, c.padding, c.dilation, c.useBias)
}
