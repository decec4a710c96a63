package layers

import (
	"errors"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Named pairs a parameter with its dotted path inside a model,
// e.g. "conv1.weight_v".
type Named[B tensor.Backend] struct {
	Path  string
	Param *nn.Parameter[B]
}

// Prefix qualifies every parameter name of a layer with prefix.
func Prefix[B tensor.Backend](prefix string, params []*nn.Parameter[B]) []Named[B] {
	named := make([]Named[B], len(params))
	for i, p := range params {
		named[i] = Named[B]{Path: prefix + "." + p.Name(), Param: p}
	}
	return named
}

// NumElements sums the element counts of params.
func NumElements[B tensor.Backend](params []*nn.Parameter[B]) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}

// Unwrap drops the paths from named parameters, keeping order.
func Unwrap[B tensor.Backend](named []Named[B]) []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], len(named))
	for i, n := range named {
		params[i] = n.Param
	}
	return params
}

// ErrUnknownParameter is returned when a parameter path does not exist.
var ErrUnknownParameter = errors.New("unknown parameter")
