package ner

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Predictor orchestrates the prediction flow: normalize heterogeneous text
// inputs into one character batch, run the model, align lengths, decode
// labels, and optionally extract scored entities. It holds no state across
// calls; every buffer is function-local, so a Predictor is safe for
// concurrent use as long as its Model and Preprocessor are.
type Predictor struct {
	model       Model
	pre         Preprocessor
	logger      *zap.Logger
	parallelism int
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithParallelism sets the fan-out degree for per-item entity extraction in
// batch calls. Per-item decoding has no cross-item data dependency, so
// results are identical to the sequential default of 1.
func WithParallelism(n int) Option {
	return func(p *Predictor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// New builds a Predictor around a model and a preprocessor.
func New(model Model, pre Preprocessor, opts ...Option) *Predictor {
	p := &Predictor{
		model:       model,
		pre:         pre,
		logger:      zap.NewNop(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// batchChars validates every item up front and converts the batch into
// character sequences. A single invalid item fails the whole call.
func (p *Predictor) batchChars(texts []Text) ([][]string, error) {
	batch := make([][]string, len(texts))
	pretokenized := 0
	for i, t := range texts {
		if !t.valid() {
			return nil, fmt.Errorf("batch item %d: %w", i, ErrInvalidText)
		}
		if t.Pretokenized() {
			pretokenized++
		}
		batch[i] = t.Chars()
	}
	if pretokenized > 0 {
		p.logger.Debug("batch contains pre-tokenized items; tokens must be char level",
			zap.Int("pretokenized", pretokenized),
			zap.Int("batch_size", len(batch)))
	}
	return batch, nil
}

// PredictProbBatch returns the raw probability matrix for every input, in
// input order, exactly as the model produced them (padding rows included).
func (p *Predictor) PredictProbBatch(ctx context.Context, texts []Text) ([]ProbMatrix, error) {
	probs, _, err := p.predictBatch(ctx, texts)
	return probs, err
}

// PredictProb returns the raw probability matrix for one input.
func (p *Predictor) PredictProb(ctx context.Context, text Text) (ProbMatrix, error) {
	probs, err := p.PredictProbBatch(ctx, []Text{text})
	if err != nil {
		return nil, err
	}
	return probs[0], nil
}

func (p *Predictor) predictBatch(ctx context.Context, texts []Text) ([]ProbMatrix, [][]string, error) {
	batch, err := p.batchChars(texts)
	if err != nil {
		return nil, nil, err
	}
	features, err := p.pre.PrepareInput(ctx, batch)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare input: %w", err)
	}
	probs, err := p.model.Predict(ctx, features)
	if err != nil {
		return nil, nil, fmt.Errorf("model predict: %w", err)
	}
	if len(probs) != len(batch) {
		return nil, nil, fmt.Errorf("model returned %d matrices for %d inputs", len(probs), len(batch))
	}
	return probs, batch, nil
}

// decodeTags runs the label decoder with each item's usable length:
// min(character count, matrix rows). The min protects the decoder's length
// contract when the model truncated an input to its fixed maximum length;
// characters beyond the bound silently receive no tag. Over-long decoder
// output is clipped for the same reason.
func (p *Predictor) decodeTags(ctx context.Context, batch [][]string, probs []ProbMatrix) ([][]string, error) {
	lengths := make([]int, len(batch))
	for i := range batch {
		lengths[i] = len(batch[i])
		if len(probs[i]) < lengths[i] {
			lengths[i] = len(probs[i])
		}
	}
	tags, err := p.pre.DecodeLabels(ctx, probs, lengths)
	if err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(tags) != len(batch) {
		return nil, fmt.Errorf("decoder returned %d sequences for %d inputs", len(tags), len(batch))
	}
	for i := range tags {
		if len(tags[i]) > lengths[i] {
			tags[i] = tags[i][:lengths[i]]
		}
	}
	return tags, nil
}

// TagBatch returns one tag sequence per input, in input order. Each
// sequence is exactly min(len(text), rows(matrix)) labels long.
func (p *Predictor) TagBatch(ctx context.Context, texts []Text) ([][]string, error) {
	probs, batch, err := p.predictBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	return p.decodeTags(ctx, batch, probs)
}

// Tag returns the tag sequence for one input. An empty text yields an empty
// sequence, not an error.
func (p *Predictor) Tag(ctx context.Context, text Text) ([]string, error) {
	tags, err := p.TagBatch(ctx, []Text{text})
	if err != nil {
		return nil, err
	}
	return tags[0], nil
}

// AnalyzeBatch returns characters plus scored entities for every input, in
// input order with no cross-item aliasing.
func (p *Predictor) AnalyzeBatch(ctx context.Context, texts []Text) ([]Analysis, error) {
	probs, batch, err := p.predictBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	tags, err := p.decodeTags(ctx, batch, probs)
	if err != nil {
		return nil, err
	}

	results := make([]Analysis, len(batch))
	assemble := func(i int) {
		results[i] = Analysis{
			Chars:    batch[i],
			Entities: Entities(batch[i], tags[i], probs[i]),
		}
	}
	if p.parallelism > 1 && len(batch) > 1 {
		g := &errgroup.Group{}
		g.SetLimit(p.parallelism)
		for i := range batch {
			i := i
			g.Go(func() error {
				assemble(i)
				return nil
			})
		}
		// Workers never return errors; Wait only joins them.
		_ = g.Wait()
	} else {
		for i := range batch {
			assemble(i)
		}
	}
	p.logger.Debug("analyzed batch",
		zap.Int("batch_size", len(batch)),
		zap.Int("entities", countEntities(results)))
	return results, nil
}

// Analyze returns characters plus scored entities for one input.
func (p *Predictor) Analyze(ctx context.Context, text Text) (Analysis, error) {
	results, err := p.AnalyzeBatch(ctx, []Text{text})
	if err != nil {
		return Analysis{}, err
	}
	return results[0], nil
}

func countEntities(results []Analysis) int {
	n := 0
	for _, r := range results {
		n += len(r.Entities)
	}
	return n
}
