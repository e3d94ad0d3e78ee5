// fancynlp-bench pushes synthetic probability batches through the full
// decode, chunking, and scoring path and reports latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/wzz8850563/fancy-nlp/decode"
	"github.com/wzz8850563/fancy-nlp/ner"
)

var benchLabels = []string{"O", "B-PER", "I-PER", "B-LOC", "I-LOC", "B-ORG", "I-ORG"}

func main() {
	n := flag.Int("n", 200, "number of iterations")
	batchSize := flag.Int("batch", 16, "texts per batch")
	seqLen := flag.Int("seq", 128, "characters per text")
	parallelism := flag.Int("parallelism", 1, "entity extraction fan-out")
	seed := flag.Int64("seed", 42, "rng seed for synthetic matrices")
	flag.Parse()

	alphabet, err := decode.NewAlphabet(benchLabels)
	if err != nil {
		log.Fatalf("build alphabet: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	texts := make([]ner.Text, *batchSize)
	probs := make([]ner.ProbMatrix, *batchSize)
	for i := range texts {
		chars := make([]string, *seqLen)
		for j := range chars {
			chars[j] = string(rune('a' + rng.Intn(26)))
		}
		texts[i] = ner.Tokens(chars)
		probs[i] = randomMatrix(rng, *seqLen, len(benchLabels))
	}

	predictor := ner.New(
		fixedModel{probs: probs},
		benchPreprocessor{Greedy: decode.NewGreedy(alphabet)},
		ner.WithParallelism(*parallelism),
	)

	ctx := context.Background()

	// Warmup
	for i := 0; i < 5; i++ {
		if _, err := predictor.AnalyzeBatch(ctx, texts); err != nil {
			log.Fatalf("warmup failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if _, err := predictor.AnalyzeBatch(ctx, texts); err != nil {
			log.Fatalf("analyze failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f batch=%d seq_len=%d parallelism=%d\n",
		len(durations), avg, p50, p95, *batchSize, *seqLen, *parallelism)
}

// randomMatrix builds one probability matrix with each row a valid
// distribution, so entity scores land in [0, 1].
func randomMatrix(rng *rand.Rand, rows, classes int) ner.ProbMatrix {
	matrix := make(ner.ProbMatrix, rows)
	for i := range matrix {
		row := make([]float32, classes)
		sum := float32(0)
		for j := range row {
			row[j] = rng.Float32()
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
		matrix[i] = row
	}
	return matrix
}

// fixedModel replays pregenerated matrices, isolating the benchmark to the
// decode and extraction path.
type fixedModel struct {
	probs []ner.ProbMatrix
}

func (m fixedModel) Predict(_ context.Context, _ ner.Features) ([]ner.ProbMatrix, error) {
	return m.probs, nil
}

// benchPreprocessor passes the character batch through as features and
// embeds the greedy decoder for the label side.
type benchPreprocessor struct {
	*decode.Greedy
}

func (p benchPreprocessor) PrepareInput(_ context.Context, batch [][]string) (ner.Features, error) {
	return batch, nil
}
