package featurize

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// ErrEmptyText is returned when text yields no words.
var ErrEmptyText = errors.New("featurize: text has no words")

// Segmenter splits text into words.
type Segmenter interface {
	Segment(text string) ([]string, error)
}

// Whitespace splits on Unicode white space.
type Whitespace struct{}

// Segment implements Segmenter.
func (Whitespace) Segment(text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	return words, nil
}

// TikToken splits text into BPE pieces using an OpenAI encoding
// (cl100k_base, p50k_base, r50k_base). Surrounding white space is trimmed
// from each piece and pieces that become empty are dropped.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken loads the named encoding. The first call for an encoding may
// download its BPE ranks.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "featurize: load tiktoken encoding %q", encodingName)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Segment implements Segmenter.
func (t *TikToken) Segment(text string) ([]string, error) {
	tokens := t.encoding.Encode(text, nil, nil)
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		piece := strings.TrimSpace(t.encoding.Decode([]int{tok}))
		if piece != "" {
			words = append(words, piece)
		}
	}
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	return words, nil
}

// Name returns the encoding name.
func (t *TikToken) Name() string { return t.name }

// NewSegmenter returns the segmenter called name: "whitespace" or "tiktoken"
// (which uses encoding).
func NewSegmenter(name, encoding string) (Segmenter, error) {
	switch name {
	case "", "whitespace":
		return Whitespace{}, nil
	case "tiktoken":
		return NewTikToken(encoding)
	default:
		return nil, errors.Errorf("featurize: unknown segmenter %q", name)
	}
}
