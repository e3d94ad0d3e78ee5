package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wzz8850563/fancy-nlp/ner"
)

var _ ner.Model = (*Model)(nil)

const (
	defaultSeqLen       = 256
	defaultIntraThreads = 1
	defaultInterThreads = 1
)

// Config describes one token-classification model.
type Config struct {
	// ModelPath is the .onnx file to load.
	ModelPath string
	// MaxLength is the fixed input sequence length. Defaults to 256.
	MaxLength int
	// NumLabels overrides the class count when the exported graph reports
	// a dynamic last output dimension.
	NumLabels int
	// PoolSize is the number of concurrent sessions. Defaults to 1.
	PoolSize int
	// RawScores skips the softmax when the exported graph already emits
	// probabilities; logits then pass through verbatim.
	RawScores bool
	// UseTokenTypeIDs adds the token_type_ids input to the session.
	UseTokenTypeIDs bool
	// IntraThreads and InterThreads are onnxruntime thread counts.
	IntraThreads int
	InterThreads int
	// LibraryPath points at the onnxruntime shared library. When empty the
	// adapter probes the env override and common install locations.
	LibraryPath string
}

type session struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// Model wraps a pool of fixed-shape onnxruntime sessions and implements
// ner.Model over Features batches.
type Model struct {
	sessions   chan *session
	poolSize   int
	seqLen     int
	numLabels  int
	rawScores  bool
	modelPath  string
	outputName string
	logger     *zap.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// LoadModel initializes the onnxruntime environment and a session pool for
// the configured model.
func LoadModel(cfg Config, opts ...Option) (*Model, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("onnx: model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx: model file missing at %s: %w", cfg.ModelPath, err)
	}

	seqLen := cfg.MaxLength
	if seqLen <= 0 {
		seqLen = defaultSeqLen
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	intraThr := cfg.IntraThreads
	if intraThr <= 0 {
		intraThr = defaultIntraThreads
	}
	interThr := cfg.InterThreads
	if interThr <= 0 {
		interThr = defaultInterThreads
	}

	libPath := resolveSharedLibraryPath(cfg.LibraryPath, filepath.Dir(cfg.ModelPath))
	if libPath == "" {
		return nil, errors.New("onnx: onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize onnxruntime: %w", err)
		}
	}

	outputName, outputDims, err := selectOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: output selection: %w", err)
	}
	numLabels := cfg.NumLabels
	if len(outputDims) > 0 {
		if last := outputDims[len(outputDims)-1]; last > 0 {
			numLabels = int(last)
		}
	}
	if numLabels <= 0 {
		return nil, errors.New("onnx: class count unknown; graph output is dynamic and NumLabels is unset")
	}

	m := &Model{
		sessions:   make(chan *session, poolSize),
		poolSize:   poolSize,
		seqLen:     seqLen,
		numLabels:  numLabels,
		rawScores:  cfg.RawScores,
		modelPath:  cfg.ModelPath,
		outputName: outputName,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for i := 0; i < poolSize; i++ {
		ss, err := newSession(cfg.ModelPath, seqLen, numLabels, outputName, intraThr, interThr, cfg.UseTokenTypeIDs)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("onnx: create session %d/%d: %w", i+1, poolSize, err)
		}
		m.sessions <- ss
	}

	m.logger.Info("loaded token-classification model",
		zap.String("model", filepath.Base(cfg.ModelPath)),
		zap.Int("seq_len", seqLen),
		zap.Int("num_labels", numLabels),
		zap.Int("pool_size", poolSize))
	return m, nil
}

// Predict implements ner.Model. The features value must be a *Features as
// produced by the collaborating preprocessor. Items run across the session
// pool concurrently; the result order mirrors the input order.
func (m *Model) Predict(ctx context.Context, features ner.Features) ([]ner.ProbMatrix, error) {
	if m == nil || m.sessions == nil {
		return nil, errors.New("onnx: model not initialized")
	}
	f, ok := features.(*Features)
	if !ok {
		return nil, fmt.Errorf("onnx: unsupported features type %T", features)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	results := make([]ner.ProbMatrix, len(f.InputIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.poolSize)
	for i := range f.InputIDs {
		i := i
		g.Go(func() error {
			matrix, err := m.runItem(ctx, f, i)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = matrix
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Model) runItem(ctx context.Context, f *Features, i int) (ner.ProbMatrix, error) {
	var ss *session
	select {
	case ss = <-m.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.sessions <- ss }()

	n := len(f.InputIDs[i])
	if n > m.seqLen {
		n = m.seqLen
	}
	fillRow(ss.inputIDs.GetData(), f.InputIDs[i], n)
	fillRow(ss.attentionMask.GetData(), f.AttentionMask[i], n)
	if ss.tokenTypeIDs != nil {
		var types []int64
		if len(f.TokenTypeIDs) > i {
			types = f.TokenTypeIDs[i]
		}
		fillRow(ss.tokenTypeIDs.GetData(), types, n)
	}

	if err := ss.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	logits := ss.output.GetData()
	matrix := make(ner.ProbMatrix, n)
	for pos := 0; pos < n; pos++ {
		row := make([]float32, m.numLabels)
		base := pos * m.numLabels
		for j := 0; j < m.numLabels && base+j < len(logits); j++ {
			row[j] = logits[base+j]
		}
		if !m.rawScores {
			softmaxInPlace(row)
		}
		matrix[pos] = row
	}
	return matrix, nil
}

// Close drains and destroys the session pool.
func (m *Model) Close() error {
	if m == nil || m.sessions == nil {
		return nil
	}
	var lastErr error
	for {
		select {
		case ss := <-m.sessions:
			if err := ss.session.Destroy(); err != nil {
				lastErr = err
			}
			ss.inputIDs.Destroy()
			ss.attentionMask.Destroy()
			if ss.tokenTypeIDs != nil {
				ss.tokenTypeIDs.Destroy()
			}
			ss.output.Destroy()
		default:
			return lastErr
		}
	}
}

// ModelFile returns the basename of the loaded model.
func (m *Model) ModelFile() string {
	return filepath.Base(m.modelPath)
}

func fillRow(dst []int64, src []int64, n int) {
	for i := range dst {
		dst[i] = 0
	}
	if n > len(src) {
		n = len(src)
	}
	copy(dst, src[:n])
}

func softmaxInPlace(row []float32) {
	if len(row) == 0 {
		return
	}
	maxVal := row[0]
	for _, v := range row[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for i, v := range row {
		exp := math.Exp(float64(v - maxVal))
		row[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}

func newSession(modelPath string, seqLen, numLabels int, outputName string, intraThr, interThr int, includeTokenType bool) (*session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(intraThr); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(interThr); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	var tokenType *ort.Tensor[int64]
	if includeTokenType {
		tokenType, err = ort.NewEmptyTensor[int64](inputShape)
		if err != nil {
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(numLabels)))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	inputValues := []ort.Value{inputIDs, attnMask}
	if tokenType != nil {
		inputNames = append(inputNames, "token_type_ids")
		inputValues = append(inputValues, tokenType)
	}
	outName := outputName
	if outName == "" {
		outName = "logits"
	}
	sess, err := ort.NewAdvancedSession(
		modelPath,
		inputNames,
		[]string{outName},
		inputValues,
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &session{
		session:       sess,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		tokenTypeIDs:  tokenType,
		output:        output,
	}, nil
}

func selectOutputInfo(modelPath string) (string, []int64, error) {
	_, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", nil, err
	}
	if len(outputs) == 0 {
		return "", nil, errors.New("no outputs found")
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return out.Name, out.Dimensions, nil
		}
	}
	if len(outputs) == 1 {
		return outputs[0].Name, outputs[0].Dimensions, nil
	}
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	return "", nil, fmt.Errorf("multiple outputs found without logits: %v", names)
}

// resolveSharedLibraryPath locates the onnxruntime shared library. An
// explicit config path wins, then the env override, then common
// names/locations next to the model and on the system.
func resolveSharedLibraryPath(configured, modelDir string) string {
	if p := strings.TrimSpace(configured); p != "" {
		return p
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
