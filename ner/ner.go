// Package ner turns per-character class-probability matrices into tag
// sequences and typed, scored, offset-addressed entity spans. The model
// forward pass and the feature preprocessing are external capabilities;
// this package owns the decoding contract, chunk extraction, entity
// scoring, and the batch/single orchestration around them.
package ner

import (
	"context"
	"errors"
)

// ErrInvalidText is returned when a batch item carries neither raw text nor
// a pre-tokenized character list. The whole call aborts; no partial batch
// result is returned.
var ErrInvalidText = errors.New("ner: text is neither raw string nor token list")

// ProbMatrix is one input's class distribution, one row per character
// position. Rows beyond the input's true length are padding and are ignored
// by tagging.
type ProbMatrix [][]float32

// Features is the opaque model input produced by a Preprocessor. The
// predictor never inspects its structure.
type Features any

// Model is the forward-pass capability: a deterministic prediction over a
// prepared feature batch, one probability matrix per input item. Row count
// per item is assumed to cover the item's true character length; the
// predictor defends against shorter output by truncating.
type Model interface {
	Predict(ctx context.Context, features Features) ([]ProbMatrix, error)
}

// Preprocessor converts character sequences into model features and decodes
// probability batches back into label strings. DecodeLabels must return
// exactly lengths[i] labels for item i, drawn from a closed vocabulary fixed
// at model-build time; whether it decodes per-position or sequence-level is
// its own business.
type Preprocessor interface {
	PrepareInput(ctx context.Context, batch [][]string) (Features, error)
	DecodeLabels(ctx context.Context, probs []ProbMatrix, lengths []int) ([][]string, error)
}

type textKind int

const (
	textInvalid textKind = iota
	textRaw
	textTokens
)

// Text is one input unit: either a raw string to be split into characters,
// or an already char-tokenized list accepted verbatim. The zero value is
// invalid input. Each item carries its own kind, so batches may mix raw and
// pre-tokenized items freely.
type Text struct {
	kind   textKind
	raw    string
	tokens []string
}

// Raw wraps an untokenized string. It is split into single characters
// (runes) when the predictor needs a character sequence.
func Raw(s string) Text {
	return Text{kind: textRaw, raw: s}
}

// Tokens wraps a pre-tokenized character list. The caller is responsible
// for the tokens actually being char-level; they are used as-is.
func Tokens(chars []string) Text {
	return Text{kind: textTokens, tokens: chars}
}

// Pretokenized reports whether the text was supplied as a token list.
func (t Text) Pretokenized() bool {
	return t.kind == textTokens
}

// Chars returns the character sequence for the text. Raw strings are split
// into runes; token lists are returned as-is (callers must not mutate).
func (t Text) Chars() []string {
	switch t.kind {
	case textRaw:
		chars := make([]string, 0, len(t.raw))
		for _, r := range t.raw {
			chars = append(chars, string(r))
		}
		return chars
	case textTokens:
		return t.tokens
	default:
		return nil
	}
}

func (t Text) valid() bool {
	return t.kind == textRaw || t.kind == textTokens
}

// Chunk is one contiguous same-type span over a tag sequence. End is
// exclusive. Chunks produced by ExtractChunks are non-overlapping, ordered
// by Start, and at least one position long.
type Chunk struct {
	Type  string
	Start int
	End   int
}

// Entity is a chunk enriched with its source text, aggregate confidence,
// and character offsets. Offsets index into the character sequence, not
// bytes.
type Entity struct {
	Text        string  `json:"text"`
	Type        string  `json:"type"`
	Score       float64 `json:"score"`
	BeginOffset int     `json:"beginOffset"`
	EndOffset   int     `json:"endOffset"`
}

// Analysis is the full result for one input: its character sequence plus
// the entities found in it, in span order.
type Analysis struct {
	Chars    []string `json:"chars"`
	Entities []Entity `json:"entities"`
}
