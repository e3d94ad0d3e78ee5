package decode

import (
	"context"

	"github.com/wzz8850563/fancy-nlp/ner"
)

// Greedy decodes each position independently: argmax over the row, mapped
// through the alphabet. Output for item i is exactly lengths[i] labels,
// capped at the rows actually available.
type Greedy struct {
	alphabet *Alphabet
}

// NewGreedy builds a greedy decoder over a label alphabet.
func NewGreedy(alphabet *Alphabet) *Greedy {
	return &Greedy{alphabet: alphabet}
}

// DecodeLabels implements the decoder side of ner.Preprocessor.
func (g *Greedy) DecodeLabels(_ context.Context, probs []ner.ProbMatrix, lengths []int) ([][]string, error) {
	tags := make([][]string, len(probs))
	for i, matrix := range probs {
		n := len(matrix)
		if i < len(lengths) && lengths[i] >= 0 && lengths[i] < n {
			n = lengths[i]
		}
		seq := make([]string, n)
		for pos := 0; pos < n; pos++ {
			seq[pos] = g.alphabet.Label(argmax(matrix[pos]))
		}
		tags[i] = seq
	}
	return tags, nil
}

func argmax(row []float32) int {
	if len(row) == 0 {
		return -1
	}
	best := 0
	for j, v := range row[1:] {
		if v > row[best] {
			best = j + 1
		}
	}
	return best
}
