package ner

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

var testLabels = []string{"O", "B-LOC", "I-LOC", "B-PER", "I-PER"}

// fakeModel replays canned matrices regardless of features.
type fakeModel struct {
	probs []ProbMatrix
	err   error
}

func (m fakeModel) Predict(_ context.Context, _ Features) ([]ProbMatrix, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.probs, nil
}

// fakePre passes the batch through as features and decodes by argmax over
// testLabels, honoring the requested lengths.
type fakePre struct{}

func (fakePre) PrepareInput(_ context.Context, batch [][]string) (Features, error) {
	return batch, nil
}

func (fakePre) DecodeLabels(_ context.Context, probs []ProbMatrix, lengths []int) ([][]string, error) {
	tags := make([][]string, len(probs))
	for i, matrix := range probs {
		n := len(matrix)
		if lengths[i] < n {
			n = lengths[i]
		}
		seq := make([]string, n)
		for pos := 0; pos < n; pos++ {
			best := 0
			for j, v := range matrix[pos] {
				if v > matrix[pos][best] {
					best = j
				}
			}
			seq[pos] = testLabels[best]
		}
		tags[i] = seq
	}
	return tags, nil
}

// classRow puts probability p on class idx and spreads the rest.
func classRow(idx int, p float32) []float32 {
	row := make([]float32, len(testLabels))
	rest := (1 - p) / float32(len(testLabels)-1)
	for j := range row {
		row[j] = rest
	}
	row[idx] = p
	return row
}

func TestTagLengthIsMinOfTextAndMatrix(t *testing.T) {
	cases := []struct {
		name string
		text Text
		rows int
		want int
	}{
		{name: "matrix shorter than text", text: Raw("hello"), rows: 3, want: 3},
		{name: "matrix padded beyond text", text: Raw("hello"), rows: 8, want: 5},
		{name: "exact match", text: Raw("hi"), rows: 2, want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			matrix := make(ProbMatrix, tc.rows)
			for i := range matrix {
				matrix[i] = classRow(1, 0.9)
			}
			p := New(fakeModel{probs: []ProbMatrix{matrix}}, fakePre{})
			tags, err := p.Tag(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("Tag: %v", err)
			}
			if len(tags) != tc.want {
				t.Fatalf("len(tags) = %d, want %d", len(tags), tc.want)
			}
		})
	}
}

func TestBatchSingleConsistency(t *testing.T) {
	matrix := ProbMatrix{classRow(1, 0.9), classRow(2, 0.8), classRow(0, 0.7)}
	p := New(fakeModel{probs: []ProbMatrix{matrix}}, fakePre{})
	ctx := context.Background()

	single, err := p.Tag(ctx, Raw("abc"))
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	batch, err := p.TagBatch(ctx, []Text{Raw("abc")})
	if err != nil {
		t.Fatalf("TagBatch: %v", err)
	}
	if !reflect.DeepEqual(batch[0], single) {
		t.Fatalf("TagBatch([t])[0] = %v, Tag(t) = %v", batch[0], single)
	}
}

func TestEmptyTextIsNotAnError(t *testing.T) {
	p := New(fakeModel{probs: []ProbMatrix{{}}}, fakePre{})
	ctx := context.Background()

	tags, err := p.Tag(ctx, Raw(""))
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags for empty text, got %v", tags)
	}

	analysis, err := p.Analyze(ctx, Raw(""))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Entities) != 0 {
		t.Fatalf("expected no entities for empty text, got %v", analysis.Entities)
	}
}

func TestInvalidTextAbortsBatch(t *testing.T) {
	matrix := ProbMatrix{classRow(1, 0.9)}
	p := New(fakeModel{probs: []ProbMatrix{matrix, matrix}}, fakePre{})

	_, err := p.TagBatch(context.Background(), []Text{Raw("a"), {}})
	if !errors.Is(err, ErrInvalidText) {
		t.Fatalf("expected ErrInvalidText, got %v", err)
	}
}

func TestMixedBatchKindsAreWellDefined(t *testing.T) {
	matrices := []ProbMatrix{
		{classRow(1, 0.9), classRow(2, 0.9)},
		{classRow(3, 0.9), classRow(4, 0.9)},
	}
	p := New(fakeModel{probs: matrices}, fakePre{})

	tags, err := p.TagBatch(context.Background(), []Text{Raw("ab"), Tokens([]string{"c", "d"})})
	if err != nil {
		t.Fatalf("TagBatch: %v", err)
	}
	want := [][]string{{"B-LOC", "I-LOC"}, {"B-PER", "I-PER"}}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
}

func TestPaddedMatricesNeverLeakIntoEntities(t *testing.T) {
	texts := []Text{Raw("ab"), Raw("abcd"), Tokens([]string{"x"})}
	matrices := make([]ProbMatrix, len(texts))
	for i := range matrices {
		// Pad well beyond every text and mark padding as entity-like so a
		// leak would surface as an out-of-range offset.
		matrix := make(ProbMatrix, 10)
		for pos := range matrix {
			matrix[pos] = classRow(1, 0.9)
		}
		matrices[i] = matrix
	}
	p := New(fakeModel{probs: matrices}, fakePre{})

	results, err := p.AnalyzeBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	for i, res := range results {
		n := len(texts[i].Chars())
		for _, e := range res.Entities {
			if e.EndOffset > n || e.BeginOffset >= n {
				t.Fatalf("item %d: entity %+v references offsets beyond text length %d", i, e, n)
			}
		}
	}
}

func TestAnalyzeScenario(t *testing.T) {
	matrix := ProbMatrix{
		classRow(1, 0.9), // B-LOC
		classRow(2, 0.8), // I-LOC
		classRow(1, 0.7), // B-LOC
		classRow(2, 0.9), // I-LOC
		classRow(2, 0.8), // I-LOC
	}
	p := New(fakeModel{probs: []ProbMatrix{matrix}}, fakePre{})

	analysis, err := p.Analyze(context.Background(), Raw("北京天安门"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %v", analysis.Entities)
	}
	if analysis.Entities[0].Text != "北京" || analysis.Entities[1].Text != "天安门" {
		t.Fatalf("unexpected entity texts: %v", analysis.Entities)
	}
	if analysis.Entities[0].Type != "LOC" || analysis.Entities[1].Type != "LOC" {
		t.Fatalf("unexpected entity types: %v", analysis.Entities)
	}
}

func TestParallelAnalyzeMatchesSequential(t *testing.T) {
	texts := make([]Text, 8)
	matrices := make([]ProbMatrix, 8)
	for i := range texts {
		texts[i] = Raw("abcde")
		matrices[i] = ProbMatrix{
			classRow(1, 0.9), classRow(2, 0.8), classRow(0, 0.9), classRow(3, 0.7), classRow(4, 0.6),
		}
	}
	model := fakeModel{probs: matrices}

	sequential, err := New(model, fakePre{}).AnalyzeBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("sequential AnalyzeBatch: %v", err)
	}
	parallel, err := New(model, fakePre{}, WithParallelism(4)).AnalyzeBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("parallel AnalyzeBatch: %v", err)
	}
	if !reflect.DeepEqual(sequential, parallel) {
		t.Fatalf("parallel result differs from sequential")
	}
}

func TestModelErrorIsWrapped(t *testing.T) {
	wantErr := errors.New("forward pass exploded")
	p := New(fakeModel{err: wantErr}, fakePre{})

	_, err := p.Tag(context.Background(), Raw("abc"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}
