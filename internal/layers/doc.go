// Package layers implements the sequence layers used by the seqclass models.
//
// Everything here is built from Born tensor operations so gradients flow
// through the autodiff backend:
//   - Conv1D: weight-normalized 1D convolution with padding and dilation
//   - MaxPool1D: non-overlapping 1D max pooling with edge padding
//   - Dropout: inverted dropout with an explicit training flag
//   - LSTMCell, GRUCell: single-step recurrent cells (gates stacked in one weight matrix)
//
// Layers follow Born's nn conventions: they are generic over the backend,
// expose Forward (or Step) and Parameters, and panic on shape mismatches.
package layers
