package featurize

import (
	"github.com/born-ml/born/tensor"
	"github.com/pkg/errors"
)

// Words encodes each word as a sequence of [enc.Size()] character tensors,
// the input layout of the hierarchical classifier.
func Words[B tensor.Backend](words []string, enc CharEncoder, backend B) ([][]*tensor.Tensor[float32, B], error) {
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	size := enc.Size()
	out := make([][]*tensor.Tensor[float32, B], 0, len(words))
	for i, word := range words {
		if word == "" {
			return nil, errors.Errorf("featurize: word %d is empty", i)
		}
		chars := make([]*tensor.Tensor[float32, B], 0, len(word))
		for _, r := range word {
			data := make([]float32, size)
			enc.Encode(r, data)
			t, err := tensor.FromSlice(data, tensor.Shape{size}, backend)
			if err != nil {
				return nil, errors.Wrapf(err, "featurize: word %d", i)
			}
			chars = append(chars, t)
		}
		out = append(out, chars)
	}
	return out, nil
}

// Sequence encodes text as a [1, enc.Size(), length] tensor, one column per
// character, the input layout of the convolutional classifier. Text longer
// than length is truncated; shorter text is zero-padded on the right.
func Sequence[B tensor.Backend](text string, enc CharEncoder, length int, backend B) (*tensor.Tensor[float32, B], error) {
	if length <= 0 {
		return nil, errors.Errorf("featurize: sequence length must be positive, got %d", length)
	}
	if text == "" {
		return nil, ErrEmptyText
	}
	size := enc.Size()
	data := make([]float32, size*length)
	column := make([]float32, size)
	pos := 0
	for _, r := range text {
		if pos == length {
			break
		}
		clear(column)
		enc.Encode(r, column)
		for f, v := range column {
			data[f*length+pos] = v
		}
		pos++
	}
	t, err := tensor.FromSlice(data, tensor.Shape{1, size, length}, backend)
	if err != nil {
		return nil, errors.Wrap(err, "featurize: sequence")
	}
	return t, nil
}
