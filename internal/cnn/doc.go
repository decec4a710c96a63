// Package cnn implements a weight-normalized 1D convolutional sequence
// classifier.
//
// Layout (single stage):
//
//	[N, in, L] -> Conv1D(wn) -> ReLU -> MaxPool1D -> flatten -> Dropout -> Linear -> Sigmoid -> [N, out]
//
// A dual-stage classifier inserts Dropout -> Conv1D(wn) -> ReLU -> MaxPool1D
// before the flatten.
package cnn
