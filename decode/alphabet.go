// Package decode provides label-decoding building blocks that fulfill the
// predictor's decoder contract: given probability matrices and per-item
// lengths, return exactly that many label strings per item. Preprocessor
// implementations embed one of these decoders for their DecodeLabels side.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const outsideLabel = "O"

// Alphabet is the closed label vocabulary fixed at model-build time,
// mapping class indices to label strings and back.
type Alphabet struct {
	labels []string
	index  map[string]int
}

// NewAlphabet builds an alphabet from an ordered label list. Indices follow
// list order. Empty or duplicate labels are rejected.
func NewAlphabet(labels []string) (*Alphabet, error) {
	if len(labels) == 0 {
		return nil, errors.New("decode: label list is empty")
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("decode: empty label at index %d", i)
		}
		if _, dup := index[l]; dup {
			return nil, fmt.Errorf("decode: duplicate label %q", l)
		}
		index[l] = i
	}
	return &Alphabet{labels: append([]string(nil), labels...), index: index}, nil
}

// Size returns the number of classes.
func (a *Alphabet) Size() int {
	return len(a.labels)
}

// Label returns the label string for a class index. Out-of-range indices
// fall back to the outside label so a row with more columns than the
// vocabulary degrades instead of crashing a serving path.
func (a *Alphabet) Label(idx int) string {
	if idx < 0 || idx >= len(a.labels) {
		return outsideLabel
	}
	return a.labels[idx]
}

// Index returns the class index for a label, or -1 if absent.
func (a *Alphabet) Index(label string) int {
	if idx, ok := a.index[label]; ok {
		return idx
	}
	return -1
}

// Labels returns the labels in index order. Callers must not mutate.
func (a *Alphabet) Labels() []string {
	return a.labels
}

// LoadLabels reads a label vocabulary from a JSON file, accepting either an
// ordered array ["O","B-LOC",...] or an index map {"0":"O","1":"B-LOC",...}
// as exported by common training stacks.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}
