// Package hrnn implements a two-level hierarchical recurrent classifier.
//
// Level 1 reads each word one character at a time and keeps its final hidden
// state as the word encoding. Level 2 reads the encodings in word order. The
// final level-2 hidden state goes through dropout, a linear projection and a
// sigmoid.
//
// Both levels use the same cell kind (LSTM or GRU), recorded in Config.Cell.
//
// Model.Forward keeps the recurrent state between calls, so callers must call
// ResetHidden before every independent sequence. Model.Step is the pure
// variant: state goes in and comes out, and the model's tracked state is
// never touched.
package hrnn
