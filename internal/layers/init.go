package layers

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Uniform creates a tensor filled from U(-bound, bound) using rng.
//
// Convolutions use bound = 1/sqrt(fanIn); recurrent cells use 1/sqrt(hidden).
func Uniform[B tensor.Backend](shape tensor.Shape, bound float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	FillUniform(t, bound, rng)
	return t
}

// FillUniform overwrites t in place with values from U(-bound, bound).
// The write goes straight to the tensor memory and is never recorded on a tape.
func FillUniform[B tensor.Backend](t *tensor.Tensor[float32, B], bound float64, rng *rand.Rand) {
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
}

// ResetLinear re-initializes a Born Linear layer from rng so that model
// construction is fully determined by the seed.
func ResetLinear[B tensor.Backend](l *nn.Linear[B], rng *rand.Rand) {
	bound := 1.0 / math.Sqrt(float64(l.InFeatures()))
	FillUniform(l.Weight().Tensor(), bound, rng)
	if l.Bias() != nil {
		FillUniform(l.Bias().Tensor(), bound, rng)
	}
}

// selection builds a constant [rows, cols] 0/1 matrix with a single one per
// column, at the row returned by pick. It is only used for kernel-sized
// matrices; sequence-length reshuffles go through columnGather.
func selection[B tensor.Backend](rows, cols int, pick func(col int) int, backend B) *tensor.Tensor[float32, B] {
	data := make([]float32, rows*cols)
	for col := 0; col < cols; col++ {
		row := pick(col)
		if row < 0 {
			continue
		}
		if row >= rows {
			panic(fmt.Sprintf("layers: selection row %d out of range [0,%d)", row, rows))
		}
		data[row*cols+col] = 1
	}
	return constant(data, tensor.Shape{rows, cols}, backend)
}

// columnGather reads a fixed set of columns from every row of a
// [rows, srcLen] tensor with Born's Gather along dim 1. Columns whose source
// is negative read as zero. Index and mask grow with rows*cols only.
type columnGather[B tensor.Backend] struct {
	index *tensor.Tensor[int32, B]   // [rows, cols]
	mask  *tensor.Tensor[float32, B] // [1, cols], nil when every column is in range
}

// newColumnGather builds the gather whose column col reads source column
// pick(col), or zero when pick returns a negative value.
func newColumnGather[B tensor.Backend](rows, srcLen, cols int, pick func(col int) int, backend B) *columnGather[B] {
	src := make([]int32, cols)
	var mask []float32
	for col := range src {
		pos := pick(col)
		if pos >= srcLen {
			panic(fmt.Sprintf("layers: gather column %d out of range [0,%d)", pos, srcLen))
		}
		if pos < 0 {
			if mask == nil {
				mask = make([]float32, cols)
				for i := range mask {
					mask[i] = 1
				}
			}
			mask[col] = 0
			pos = 0
		}
		src[col] = int32(pos)
	}

	index := make([]int32, rows*cols)
	for r := 0; r < rows; r++ {
		copy(index[r*cols:], src)
	}
	idx, err := tensor.FromSlice(index, tensor.Shape{rows, cols}, backend)
	if err != nil {
		panic(fmt.Sprintf("layers: %v", err))
	}

	g := &columnGather[B]{index: idx}
	if mask != nil {
		g.mask = constant(mask, tensor.Shape{1, cols}, backend)
	}
	return g
}

// apply gathers from a [rows, srcLen] tensor into [rows, cols].
func (g *columnGather[B]) apply(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := x.Gather(1, g.index)
	if g.mask != nil {
		out = out.Mul(g.mask)
	}
	return out
}

// gatherKey identifies the [rows, length] input a cached gather was built for.
type gatherKey struct {
	rows, length int
}

// gatherCache memoizes gathers per input geometry. The zero value is ready to use.
type gatherCache[B tensor.Backend] struct {
	mu      sync.Mutex
	entries map[gatherKey][]*columnGather[B]
}

func (c *gatherCache[B]) get(key gatherKey, build func() []*columnGather[B]) []*columnGather[B] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.entries[key]; ok {
		return g
	}
	if c.entries == nil {
		c.entries = make(map[gatherKey][]*columnGather[B])
	}
	g := build()
	c.entries[key] = g
	return g
}

func constant[B tensor.Backend](data []float32, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	t, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		panic(fmt.Sprintf("layers: %v", err))
	}
	return t
}

func sqrt(n int) float64 {
	return math.Sqrt(float64(n))
}
