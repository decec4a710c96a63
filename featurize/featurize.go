// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package featurize turns text into inputs for the cnn and hrnn classifiers.
//
// Example:
//
//	words, _ := featurize.Whitespace{}.Segment("the quick brown fox")
//	input, err := featurize.Words(words, featurize.Bits{}, backend) // hrnn input
//
//	seq, err := featurize.Sequence("the quick brown fox", featurize.Bits{}, 64, backend) // [1, 8, 64]
package featurize

import (
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/featurize"
)

// Segmenter splits text into words.
type Segmenter = featurize.Segmenter

// Whitespace splits on Unicode white space.
type Whitespace = featurize.Whitespace

// TikToken splits text into OpenAI BPE pieces.
type TikToken = featurize.TikToken

// CharEncoder maps a character to a feature vector.
type CharEncoder = featurize.CharEncoder

// Bits encodes a character by its UTF-8 bits (8 features).
type Bits = featurize.Bits

// OneHot encodes a character over an alphabet plus an unknown slot.
type OneHot = featurize.OneHot

// ErrEmptyText is returned when text yields no words.
var ErrEmptyText = featurize.ErrEmptyText

// NewTikToken loads a tiktoken encoding such as "cl100k_base".
func NewTikToken(encodingName string) (*TikToken, error) {
	return featurize.NewTikToken(encodingName)
}

// NewOneHot builds a one-hot encoder over alphabet.
func NewOneHot(alphabet string) (*OneHot, error) {
	return featurize.NewOneHot(alphabet)
}

// Words encodes words as per-character tensors for the hrnn classifier.
func Words[B tensor.Backend](words []string, enc CharEncoder, backend B) ([][]*tensor.Tensor[float32, B], error) {
	return featurize.Words(words, enc, backend)
}

// Sequence encodes text as a [1, enc.Size(), length] tensor for the cnn classifier.
func Sequence[B tensor.Backend](text string, enc CharEncoder, length int, backend B) (*tensor.Tensor[float32, B], error) {
	return featurize.Sequence(text, enc, length, backend)
}
