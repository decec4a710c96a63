package cnn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// stage is one Conv1D -> ReLU -> MaxPool1D block.
type stage[B tensor.Backend] struct {
	conv *layers.Conv1D[B]
	relu *nn.ReLU[B]
	pool *layers.MaxPool1D[B]
}

func (s *stage[B]) forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = s.conv.Forward(x)
	x = s.relu.Forward(x)
	return s.pool.Forward(x)
}

// Classifier is the convolutional sequence classifier.
//
// Input:  [batch, input_size, length]
// Output: [batch, output_size], values in (0, 1)
//
// Like Born layers, it panics on shape mismatches. In particular a flattened
// length different from ConvSeqLen panics in the final linear layer.
type Classifier[B tensor.Backend] struct {
	cfg      Config
	topology Topology

	stage1 stage[B]
	drop1  *layers.Dropout[B] // dual stage only
	stage2 *stage[B]          // dual stage only

	drop    *layers.Dropout[B]
	fc      *nn.Linear[B]
	sigmoid *nn.Sigmoid[B]

	frozen map[string]bool
}

// New builds a classifier from cfg. Parameters and dropout masks are drawn
// from a generator seeded with cfg.Seed.
func New[B tensor.Backend](cfg Config, backend B) (*Classifier[B], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Stride != 1 {
		klog.Warningf("cnn: stride %d ignored, convolutions run with stride 1", cfg.Stride)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	newStage := func(i, in int) stage[B] {
		return stage[B]{
			conv: layers.NewConv1D(in, cfg.HiddenSize[i], cfg.ConvKernel[i], cfg.Padding[i], cfg.Dilation[i], true, rng, backend),
			relu: nn.NewReLU[B](),
			pool: layers.NewMaxPool1D(cfg.PoolKernel[i], cfg.Padding[i], backend),
		}
	}

	c := &Classifier[B]{
		cfg:      cfg,
		topology: cfg.Topology(),
		stage1:   newStage(0, cfg.InputSize),
		frozen:   make(map[string]bool),
	}
	if c.topology == DualStage {
		s := newStage(1, cfg.HiddenSize[0])
		c.drop1 = layers.NewDropout[B](cfg.Dropout, rng)
		c.stage2 = &s
	}
	c.drop = layers.NewDropout[B](cfg.Dropout, rng)
	c.fc = nn.NewLinear(cfg.ConvSeqLen, cfg.OutputSize, backend)
	layers.ResetLinear(c.fc, rng)
	c.sigmoid = nn.NewSigmoid[B]()

	if klog.V(1).Enabled() {
		total, _ := c.CountParams()
		klog.Infof("cnn: built %s classifier, %d parameters", c.topology, total)
	}
	return c, nil
}

// Forward runs the classifier on a [batch, input_size, length] input.
func (c *Classifier[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := c.stage1.forward(input)
	if c.stage2 != nil {
		x = c.drop1.Forward(x)
		x = c.stage2.forward(x)
	}

	// Flatten [N, C, L] -> [N, C*L].
	shape := x.Shape()
	x = x.Reshape(shape[0], shape[1]*shape[2])

	x = c.drop.Forward(x)
	x = c.fc.Forward(x)
	return c.sigmoid.Forward(x)
}

// NamedParameters returns every parameter with its dotted path, in layer order.
func (c *Classifier[B]) NamedParameters() []layers.Named[B] {
	named := layers.Prefix("conv1", c.stage1.conv.Parameters())
	if c.stage2 != nil {
		named = append(named, layers.Prefix("conv2", c.stage2.conv.Parameters())...)
	}
	return append(named, layers.Prefix("fc", c.fc.Parameters())...)
}

// Parameters returns all parameters, trainable or not.
func (c *Classifier[B]) Parameters() []*nn.Parameter[B] {
	return layers.Unwrap(c.NamedParameters())
}

// TrainableParameters returns the parameters an optimizer should update.
func (c *Classifier[B]) TrainableParameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, n := range c.NamedParameters() {
		if !c.frozen[n.Path] {
			params = append(params, n.Param)
		}
	}
	return params
}

// SetTrainable marks the parameter at path (e.g. "conv1.weight_g") as
// trainable or frozen.
func (c *Classifier[B]) SetTrainable(path string, trainable bool) error {
	for _, n := range c.NamedParameters() {
		if n.Path == path {
			if trainable {
				delete(c.frozen, path)
			} else {
				c.frozen[path] = true
			}
			return nil
		}
	}
	return errors.Wrapf(layers.ErrUnknownParameter, "cnn: %q", path)
}

// CountParams returns the total and trainable element counts.
func (c *Classifier[B]) CountParams() (total, trainable int) {
	return layers.NumElements(c.Parameters()), layers.NumElements(c.TrainableParameters())
}

// Train switches dropout to training mode.
func (c *Classifier[B]) Train() { c.setTraining(true) }

// Eval switches dropout off.
func (c *Classifier[B]) Eval() { c.setTraining(false) }

// Training reports whether the classifier is in training mode.
func (c *Classifier[B]) Training() bool { return c.drop.Training() }

func (c *Classifier[B]) setTraining(training bool) {
	c.drop.SetTraining(training)
	if c.drop1 != nil {
		c.drop1.SetTraining(training)
	}
}

// Config returns the effective configuration, defaults included.
func (c *Classifier[B]) Config() Config { return c.cfg }

// Topology returns the classifier layout.
func (c *Classifier[B]) Topology() Topology { return c.topology }

// HasStage2 reports whether the second convolution block exists.
func (c *Classifier[B]) HasStage2() bool { return c.stage2 != nil }

// String returns a string representation of the architecture.
func (c *Classifier[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Classifier(\n")
	line := func(s string) { fmt.Fprintf(&sb, "  %s\n", s) }
	line(c.stage1.conv.String())
	line("ReLU()")
	line(c.stage1.pool.String())
	if c.stage2 != nil {
		line(c.drop1.String())
		line(c.stage2.conv.String())
		line("ReLU()")
		line(c.stage2.pool.String())
	}
	line("Flatten()")
	line(c.drop.String())
	line(fmt.Sprintf("Linear(in=%d, out=%d)", c.fc.InFeatures(), c.fc.OutFeatures()))
	line("Sigmoid()")
	sb.WriteString(")")
	return sb.String()
}
