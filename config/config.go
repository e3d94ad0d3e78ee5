// Package config loads the YAML configuration for the decoding pipeline
// and the bundled ONNX model adapter.
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds fancy-nlp configuration.
type Config struct {
	Decoder DecoderConfig `yaml:"decoder"`
	Model   ModelConfig   `yaml:"model"`
}

type DecoderConfig struct {
	Kind       string   `yaml:"kind"`        // greedy | viterbi
	Scheme     string   `yaml:"scheme"`      // bio | bioes
	Labels     []string `yaml:"labels"`      // inline label vocabulary
	LabelsPath string   `yaml:"labels_path"` // JSON array or id->label map
	// Parallelism is the fan-out degree for per-item entity extraction
	// in batch calls. 1 keeps batches strictly sequential.
	Parallelism int `yaml:"parallelism"`
}

type ModelConfig struct {
	Path            string `yaml:"path"`               // .onnx file
	MaxLength       int    `yaml:"max_length"`         // fixed input sequence length
	NumLabels       int    `yaml:"num_labels"`         // class count when the graph is dynamic
	PoolSize        int    `yaml:"pool_size"`          // concurrent sessions
	RawScores       bool   `yaml:"raw_scores"`         // graph already emits probabilities
	UseTokenTypeIDs bool   `yaml:"use_token_type_ids"` // model expects token_type_ids
	IntraThreads    int    `yaml:"intra_threads"`
	InterThreads    int    `yaml:"inter_threads"`
	LibraryPath     string `yaml:"library_path"` // onnxruntime shared library
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Decoder: DecoderConfig{
			Kind:        "greedy",
			Scheme:      "bio",
			Parallelism: 1,
		},
		Model: ModelConfig{
			MaxLength: 256,
			PoolSize:  1,
		},
	}
}

func applyDefaults(cfg *Config) {
	cfg.Decoder.Kind = strings.ToLower(strings.TrimSpace(cfg.Decoder.Kind))
	if cfg.Decoder.Kind == "" {
		cfg.Decoder.Kind = "greedy"
	}
	cfg.Decoder.Scheme = strings.ToLower(strings.TrimSpace(cfg.Decoder.Scheme))
	if cfg.Decoder.Scheme == "" {
		cfg.Decoder.Scheme = "bio"
	}
	if cfg.Decoder.Parallelism <= 0 {
		cfg.Decoder.Parallelism = 1
	}
	if cfg.Model.MaxLength <= 0 {
		cfg.Model.MaxLength = 256
	}
	if cfg.Model.PoolSize <= 0 {
		cfg.Model.PoolSize = 1
	}
}
