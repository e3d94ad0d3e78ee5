package ner

import "strings"

// confidence is the scalar a decoder committed to at one position: the
// probability of the label it actually picked, which for argmax and
// order-preserving sequence decoders is the row maximum. Unnormalized score
// rows pass through verbatim; no renormalization happens here.
func confidence(row []float32) float64 {
	if len(row) == 0 {
		return 0
	}
	max := row[0]
	for _, v := range row[1:] {
		if v > max {
			max = v
		}
	}
	return float64(max)
}

// Entities assembles the entity records for one already-decoded input:
// chunk the tags, then for each chunk join its characters and average the
// per-position confidences across the span. Pure function; probs rows
// beyond the tagged range are never touched because tags are never longer
// than the character sequence.
func Entities(chars []string, tags []string, probs ProbMatrix) []Entity {
	chunks := ExtractChunks(tags)
	if len(chunks) == 0 {
		return []Entity{}
	}
	entities := make([]Entity, 0, len(chunks))
	for _, c := range chunks {
		sum := 0.0
		for i := c.Start; i < c.End && i < len(probs); i++ {
			sum += confidence(probs[i])
		}
		entities = append(entities, Entity{
			Text:        strings.Join(chars[c.Start:c.End], ""),
			Type:        c.Type,
			Score:       sum / float64(c.End-c.Start),
			BeginOffset: c.Start,
			EndOffset:   c.End,
		})
	}
	return entities
}
