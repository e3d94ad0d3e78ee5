// Package onnx runs a token-classification model through onnxruntime and
// adapts its logits into the predictor's probability matrices. It is one
// concrete implementation of the model boundary; tokenization and
// vocabulary lookup stay with the external preprocessor, which hands the
// adapter already-encoded features.
package onnx

import (
	"errors"
	"fmt"
)

// Features is the adapter's concrete model input: one row of encoded ids
// per batch item, with a parallel attention mask and optional token type
// ids. Rows may be ragged across items; each row is padded or truncated to
// the session's fixed sequence length at run time.
type Features struct {
	InputIDs      [][]int64
	AttentionMask [][]int64
	TokenTypeIDs  [][]int64
}

// Validate checks the parallel-shape invariants between ids, mask, and
// token types.
func (f *Features) Validate() error {
	if f == nil {
		return errors.New("onnx: features is nil")
	}
	if len(f.InputIDs) != len(f.AttentionMask) {
		return fmt.Errorf("onnx: %d input id rows but %d attention mask rows", len(f.InputIDs), len(f.AttentionMask))
	}
	if len(f.TokenTypeIDs) > 0 && len(f.TokenTypeIDs) != len(f.InputIDs) {
		return fmt.Errorf("onnx: %d input id rows but %d token type rows", len(f.InputIDs), len(f.TokenTypeIDs))
	}
	for i := range f.InputIDs {
		if len(f.InputIDs[i]) != len(f.AttentionMask[i]) {
			return fmt.Errorf("onnx: item %d has %d ids but %d mask values", i, len(f.InputIDs[i]), len(f.AttentionMask[i]))
		}
		if len(f.TokenTypeIDs) > 0 && len(f.TokenTypeIDs[i]) != len(f.InputIDs[i]) {
			return fmt.Errorf("onnx: item %d has %d ids but %d token type values", i, len(f.InputIDs[i]), len(f.TokenTypeIDs[i]))
		}
	}
	return nil
}
