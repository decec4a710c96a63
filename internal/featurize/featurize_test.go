package featurize

import (
	"testing"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhitespace_Segment(t *testing.T) {
	words, err := Whitespace{}.Segment("  the quick\tbrown\nfox ")
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, words)

	_, err = Whitespace{}.Segment(" \t\n")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestTikToken_Segment(t *testing.T) {
	if testing.Short() {
		t.Skip("tiktoken loads BPE ranks over the network")
	}
	seg, err := NewTikToken("cl100k_base")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	assert.Equal(t, "cl100k_base", seg.Name())

	words, err := seg.Segment("hello world")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, words)

	_, err = seg.Segment("   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewSegmenter(t *testing.T) {
	seg, err := NewSegmenter("whitespace", "")
	require.NoError(t, err)
	assert.IsType(t, Whitespace{}, seg)

	_, err = NewSegmenter("sentencepiece", "")
	assert.Error(t, err)
}

func TestBits_Encode(t *testing.T) {
	tests := []struct {
		r    rune
		want []float32
	}{
		{'A', []float32{1, 0, 0, 0, 0, 0, 1, 0}}, // 0x41
		{' ', []float32{0, 0, 0, 0, 0, 1, 0, 0}}, // 0x20
		{'é', []float32{1, 1, 0, 1, 0, 1, 1, 1}}, // 0xC3 | 0xA9 = 0xEB
	}
	for _, tt := range tests {
		dst := make([]float32, Bits{}.Size())
		Bits{}.Encode(tt.r, dst)
		assert.Equal(t, tt.want, dst, "rune %q", tt.r)
	}
}

func TestOneHot(t *testing.T) {
	enc, err := NewOneHot("abc")
	require.NoError(t, err)
	assert.Equal(t, 4, enc.Size())

	dst := make([]float32, 4)
	enc.Encode('b', dst)
	assert.Equal(t, []float32{0, 1, 0, 0}, dst)

	dst = make([]float32, 4)
	enc.Encode('z', dst)
	assert.Equal(t, []float32{0, 0, 0, 1}, dst)

	_, err = NewOneHot("")
	assert.Error(t, err)
	_, err = NewOneHot("aba")
	assert.Error(t, err)
}

func TestNewCharEncoder(t *testing.T) {
	enc, err := NewCharEncoder("", "")
	require.NoError(t, err)
	assert.Equal(t, 8, enc.Size())

	enc, err = NewCharEncoder("onehot", "xyz")
	require.NoError(t, err)
	assert.Equal(t, 4, enc.Size())

	_, err = NewCharEncoder("embedding", "")
	assert.Error(t, err)
}

func TestWords(t *testing.T) {
	backend := autodiff.New(cpu.New())
	enc, err := NewOneHot("ab")
	require.NoError(t, err)

	words, err := Words([]string{"ab", "b", "héé"}, enc, backend)
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Len(t, words[0], 2)
	assert.Len(t, words[1], 1)
	assert.Len(t, words[2], 3, "characters, not bytes")

	assert.Equal(t, tensor.Shape{3}, words[0][1].Shape())
	assert.Equal(t, []float32{0, 1, 0}, words[0][1].Data())
	assert.Equal(t, []float32{0, 0, 1}, words[2][0].Data())

	_, err = Words(nil, enc, backend)
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = Words([]string{"a", ""}, enc, backend)
	assert.Error(t, err)
}

func TestSequence(t *testing.T) {
	backend := autodiff.New(cpu.New())
	enc, err := NewOneHot("ab")
	require.NoError(t, err)

	seq, err := Sequence("ba", enc, 3, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 3}, seq.Shape())
	assert.Equal(t, []float32{
		0, 1, 0, // feature 'a'
		1, 0, 0, // feature 'b'
		0, 0, 0, // unknown
	}, seq.Data())

	truncated, err := Sequence("abba", enc, 2, backend)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 1, 0, 0}, truncated.Data())

	_, err = Sequence("", enc, 4, backend)
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = Sequence("a", enc, 0, backend)
	assert.Error(t, err)
}
