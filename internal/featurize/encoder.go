package featurize

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// CharEncoder maps one character to a fixed-size feature vector.
type CharEncoder interface {
	// Size returns the number of features per character.
	Size() int

	// Encode writes the features of r into dst, which has Size() entries
	// and is zeroed by the caller.
	Encode(r rune, dst []float32)
}

// Bits encodes a character by the bits of its UTF-8 bytes, 8 features,
// least significant bit first. Multi-byte characters overlay their bytes
// (bitwise OR), so every byte contributes.
type Bits struct{}

// Size implements CharEncoder.
func (Bits) Size() int { return 8 }

// Encode implements CharEncoder.
func (Bits) Encode(r rune, dst []float32) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	var acc byte
	for _, b := range buf[:n] {
		acc |= b
	}
	for bit := 0; bit < 8; bit++ {
		if acc&(1<<bit) != 0 {
			dst[bit] = 1
		}
	}
}

// OneHot encodes a character as a one-hot vector over an alphabet, with one
// extra trailing slot for characters outside it.
type OneHot struct {
	index map[rune]int
	size  int
}

// NewOneHot builds a one-hot encoder. alphabet must be non-empty and hold
// each character once.
func NewOneHot(alphabet string) (*OneHot, error) {
	if alphabet == "" {
		return nil, errors.New("featurize: empty alphabet")
	}
	index := make(map[rune]int)
	for _, r := range alphabet {
		if _, dup := index[r]; dup {
			return nil, errors.Errorf("featurize: duplicate character %q in alphabet", r)
		}
		index[r] = len(index)
	}
	return &OneHot{index: index, size: len(index) + 1}, nil
}

// Size implements CharEncoder.
func (o *OneHot) Size() int { return o.size }

// Encode implements CharEncoder.
func (o *OneHot) Encode(r rune, dst []float32) {
	if i, ok := o.index[r]; ok {
		dst[i] = 1
		return
	}
	dst[o.size-1] = 1
}

// NewCharEncoder returns the encoder called name: "bits" or "onehot"
// (which uses alphabet).
func NewCharEncoder(name, alphabet string) (CharEncoder, error) {
	switch name {
	case "", "bits":
		return Bits{}, nil
	case "onehot":
		return NewOneHot(alphabet)
	default:
		return nil, errors.Errorf("featurize: unknown char encoder %q", name)
	}
}
