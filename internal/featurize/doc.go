// Package featurize turns text into model inputs.
//
// Text is split into words by a Segmenter and every character of a word is
// encoded into a fixed-size feature vector by a CharEncoder. Words builds the
// nested input of the hierarchical classifier; Sequence builds the
// [1, features, length] input of the convolutional classifier.
package featurize
