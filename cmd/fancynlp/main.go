// fancynlp decodes precomputed probability matrices offline: each input
// item carries its characters (or raw text) and its per-position class
// probabilities, and the tool emits the decoded tags and scored entities as
// JSON. No model or tokenizer is needed on this path.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/wzz8850563/fancy-nlp/config"
	"github.com/wzz8850563/fancy-nlp/decode"
	"github.com/wzz8850563/fancy-nlp/ner"
)

type item struct {
	Text  string         `json:"text"`
	Chars []string       `json:"chars"`
	Probs ner.ProbMatrix `json:"probs"`
}

type result struct {
	Chars    []string     `json:"chars"`
	Tags     []string     `json:"tags"`
	Entities []ner.Entity `json:"entities"`
}

type labelDecoder interface {
	DecodeLabels(ctx context.Context, probs []ner.ProbMatrix, lengths []int) ([][]string, error)
}

func main() {
	cfgPath := flag.String("config", "fancynlp.yaml", "path to config yaml")
	input := flag.String("input", "-", "input file with JSON items, or - for stdin")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	labels := cfg.Decoder.Labels
	if cfg.Decoder.LabelsPath != "" {
		labels, err = decode.LoadLabels(cfg.Decoder.LabelsPath)
		if err != nil {
			log.Fatalf("load labels: %v", err)
		}
	}
	alphabet, err := decode.NewAlphabet(labels)
	if err != nil {
		log.Fatalf("build alphabet: %v", err)
	}

	var decoder labelDecoder
	switch cfg.Decoder.Kind {
	case "viterbi":
		scheme, err := decode.ParseScheme(cfg.Decoder.Scheme)
		if err != nil {
			log.Fatalf("parse scheme: %v", err)
		}
		decoder = decode.NewViterbi(alphabet, scheme)
	default:
		decoder = decode.NewGreedy(alphabet)
	}

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	items, err := readItems(in)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	ctx := context.Background()
	out := json.NewEncoder(os.Stdout)
	for i, it := range items {
		res, err := decodeItem(ctx, decoder, it)
		if err != nil {
			log.Fatalf("item %d: %v", i, err)
		}
		if err := out.Encode(res); err != nil {
			log.Fatalf("write result: %v", err)
		}
	}
}

// readItems accepts either one JSON array of items or a stream of item
// objects, one per line or concatenated.
func readItems(r io.Reader) ([]item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var items []item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var it item
		if err := dec.Decode(&it); err == io.EOF {
			return items, nil
		} else if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
}

func decodeItem(ctx context.Context, decoder labelDecoder, it item) (result, error) {
	chars := it.Chars
	if chars == nil {
		chars = ner.Raw(it.Text).Chars()
	}
	length := len(chars)
	if len(it.Probs) < length {
		length = len(it.Probs)
	}
	tags, err := decoder.DecodeLabels(ctx, []ner.ProbMatrix{it.Probs}, []int{length})
	if err != nil {
		return result{}, fmt.Errorf("decode labels: %w", err)
	}
	return result{
		Chars:    chars,
		Tags:     tags[0],
		Entities: ner.Entities(chars, tags[0], it.Probs),
	}, nil
}
