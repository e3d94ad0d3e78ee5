package decode

import (
	"context"
	"math"

	"github.com/wzz8850563/fancy-nlp/ner"
)

// Viterbi decodes each item as a whole sequence: the highest-scoring label
// path under log emissions, restricted to transitions the tag scheme
// allows. With no structural temptation in the matrix it agrees with
// Greedy; when the per-position argmax would produce an invalid transition
// (O followed by I-X, B-X followed by I-Y) it picks the best valid path
// instead.
type Viterbi struct {
	alphabet *Alphabet
	scheme   Scheme

	parts      []labelParts
	startValid []bool
	endValid   []bool
	allowed    [][]bool
}

// NewViterbi builds a sequence-level decoder over a label alphabet. The
// transition table is derived from the scheme once, up front.
func NewViterbi(alphabet *Alphabet, scheme Scheme) *Viterbi {
	n := alphabet.Size()
	v := &Viterbi{
		alphabet:   alphabet,
		scheme:     scheme,
		parts:      make([]labelParts, n),
		startValid: make([]bool, n),
		endValid:   make([]bool, n),
		allowed:    make([][]bool, n),
	}
	for i := 0; i < n; i++ {
		v.parts[i] = parseLabel(alphabet.Label(i))
		v.startValid[i] = scheme.startValid(v.parts[i])
		v.endValid[i] = scheme.endValid(v.parts[i])
	}
	for i := 0; i < n; i++ {
		v.allowed[i] = make([]bool, n)
		for j := 0; j < n; j++ {
			v.allowed[i][j] = scheme.transitionValid(v.parts[i], v.parts[j])
		}
	}
	return v
}

// DecodeLabels implements the decoder side of ner.Preprocessor.
func (v *Viterbi) DecodeLabels(_ context.Context, probs []ner.ProbMatrix, lengths []int) ([][]string, error) {
	tags := make([][]string, len(probs))
	for i, matrix := range probs {
		n := len(matrix)
		if i < len(lengths) && lengths[i] >= 0 && lengths[i] < n {
			n = lengths[i]
		}
		tags[i] = v.decodeOne(matrix, n)
	}
	return tags, nil
}

func (v *Viterbi) decodeOne(matrix ner.ProbMatrix, n int) []string {
	if n == 0 {
		return []string{}
	}
	classes := v.alphabet.Size()
	negInf := math.Inf(-1)

	score := make([][]float64, n)
	back := make([][]int, n)
	for t := 0; t < n; t++ {
		score[t] = make([]float64, classes)
		back[t] = make([]int, classes)
	}

	for j := 0; j < classes; j++ {
		if v.startValid[j] {
			score[0][j] = emission(matrix[0], j)
		} else {
			score[0][j] = negInf
		}
	}

	for t := 1; t < n; t++ {
		for j := 0; j < classes; j++ {
			best := negInf
			bestPrev := 0
			for k := 0; k < classes; k++ {
				if !v.allowed[k][j] || score[t-1][k] == negInf {
					continue
				}
				if s := score[t-1][k]; s > best {
					best = s
					bestPrev = k
				}
			}
			if best == negInf {
				score[t][j] = negInf
				back[t][j] = 0
				continue
			}
			score[t][j] = best + emission(matrix[t], j)
			back[t][j] = bestPrev
		}
	}

	bestEnd := 0
	bestScore := negInf
	for j := 0; j < classes; j++ {
		if !v.endValid[j] || score[n-1][j] == negInf {
			continue
		}
		if score[n-1][j] > bestScore {
			bestScore = score[n-1][j]
			bestEnd = j
		}
	}
	if bestScore == negInf {
		// No structurally valid path, which can only mean a degenerate
		// alphabet. Fall back to per-position argmax rather than failing.
		out := make([]string, n)
		for t := 0; t < n; t++ {
			out[t] = v.alphabet.Label(argmax(matrix[t]))
		}
		return out
	}

	path := make([]int, n)
	path[n-1] = bestEnd
	for t := n - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	out := make([]string, n)
	for t, j := range path {
		out[t] = v.alphabet.Label(j)
	}
	return out
}

// emission is the log probability of class j at one position, floored so a
// zero entry stays finite and comparable.
func emission(row []float32, j int) float64 {
	if j >= len(row) {
		return math.Log(1e-12)
	}
	p := float64(row[j])
	if p < 1e-12 {
		p = 1e-12
	}
	return math.Log(p)
}
