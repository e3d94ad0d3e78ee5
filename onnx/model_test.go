package onnx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wzz8850563/fancy-nlp/ner"
)

// Integration test against a real exported model. Set FANCYNLP_ONNX_MODEL
// to a token-classification .onnx file to enable it; the onnxruntime shared
// library must be resolvable as well.
func TestModelPredictIntegration(t *testing.T) {
	modelPath := os.Getenv("FANCYNLP_ONNX_MODEL")
	if modelPath == "" {
		t.Skip("FANCYNLP_ONNX_MODEL not set; skipping onnxruntime integration test")
	}

	m, err := LoadModel(Config{
		ModelPath: modelPath,
		MaxLength: 32,
		PoolSize:  2,
	})
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	defer m.Close()

	features := &Features{
		InputIDs:      [][]int64{{101, 1962, 102}, {101, 102}},
		AttentionMask: [][]int64{{1, 1, 1}, {1, 1}},
	}
	probs, err := m.Predict(context.Background(), features)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(probs) != 2 {
		t.Fatalf("expected 2 matrices, got %d", len(probs))
	}
	if len(probs[0]) != 3 || len(probs[1]) != 2 {
		t.Fatalf("row counts = %d, %d; want 3, 2", len(probs[0]), len(probs[1]))
	}
	for i, matrix := range probs {
		for pos, row := range matrix {
			sum := float32(0)
			for _, v := range row {
				sum += v
			}
			if sum < 0.99 || sum > 1.01 {
				t.Fatalf("item %d row %d is not a distribution (sum %v)", i, pos, sum)
			}
		}
	}
}

func TestLoadModelRejectsMissingFile(t *testing.T) {
	_, err := LoadModel(Config{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestLoadModelRejectsEmptyPath(t *testing.T) {
	if _, err := LoadModel(Config{}); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestPredictRejectsUnknownFeatureType(t *testing.T) {
	m := &Model{sessions: make(chan *session, 1)}
	if _, err := m.Predict(context.Background(), ner.Features("not features")); err == nil {
		t.Fatal("expected error for unsupported features type")
	}
}
