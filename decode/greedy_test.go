package decode

import (
	"context"
	"reflect"
	"testing"

	"github.com/wzz8850563/fancy-nlp/ner"
)

func testAlphabet(t *testing.T) *Alphabet {
	t.Helper()
	a, err := NewAlphabet([]string{"O", "B-LOC", "I-LOC", "B-PER", "I-PER"})
	if err != nil {
		t.Fatalf("NewAlphabet: %v", err)
	}
	return a
}

func TestGreedyDecodesArgmax(t *testing.T) {
	g := NewGreedy(testAlphabet(t))
	probs := []ner.ProbMatrix{
		{
			{0.1, 0.6, 0.1, 0.1, 0.1},
			{0.1, 0.1, 0.6, 0.1, 0.1},
			{0.6, 0.1, 0.1, 0.1, 0.1},
		},
	}
	tags, err := g.DecodeLabels(context.Background(), probs, []int{3})
	if err != nil {
		t.Fatalf("DecodeLabels: %v", err)
	}
	want := [][]string{{"B-LOC", "I-LOC", "O"}}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
}

func TestGreedyTruncatesToLengths(t *testing.T) {
	g := NewGreedy(testAlphabet(t))
	matrix := make(ner.ProbMatrix, 6)
	for i := range matrix {
		matrix[i] = []float32{0.1, 0.6, 0.1, 0.1, 0.1}
	}
	tags, err := g.DecodeLabels(context.Background(), []ner.ProbMatrix{matrix}, []int{4})
	if err != nil {
		t.Fatalf("DecodeLabels: %v", err)
	}
	if len(tags[0]) != 4 {
		t.Fatalf("len(tags[0]) = %d, want 4", len(tags[0]))
	}
}

func TestGreedyLengthBeyondRowsCapsAtRows(t *testing.T) {
	g := NewGreedy(testAlphabet(t))
	matrix := ner.ProbMatrix{{0.6, 0.1, 0.1, 0.1, 0.1}}
	tags, err := g.DecodeLabels(context.Background(), []ner.ProbMatrix{matrix}, []int{5})
	if err != nil {
		t.Fatalf("DecodeLabels: %v", err)
	}
	if len(tags[0]) != 1 {
		t.Fatalf("len(tags[0]) = %d, want 1", len(tags[0]))
	}
}

func TestGreedyEmptyMatrix(t *testing.T) {
	g := NewGreedy(testAlphabet(t))
	tags, err := g.DecodeLabels(context.Background(), []ner.ProbMatrix{{}}, []int{0})
	if err != nil {
		t.Fatalf("DecodeLabels: %v", err)
	}
	if len(tags) != 1 || len(tags[0]) != 0 {
		t.Fatalf("tags = %v, want one empty sequence", tags)
	}
}
