package detect

import (
	"context"
	"encoding/json"
	"fmt"
)

// Options carries the per-request feature flags a strategy may honor.
type Options struct {
	GenerateHeatmap bool
	FaceAnalysis    bool
	Video           bool
}

// Strategy is one entry in the fallback cascade. A strategy either
// returns a fully normalized Result or an error; any error advances the
// cascade to the next strategy.
type Strategy interface {
	Name() string
	Detect(ctx context.Context, filePath string, opts Options) (Result, error)
}

// ModelType tags identifying which cascade tier answered.
const (
	ModelOptimized = "optimized"
	ModelAdvanced  = "advanced"
	ModelBasic     = "basic"
	ModelMock      = "mock"
)

// optimizedStrategy invokes the performance-optimized detector. Its raw
// schema reports probabilities on a 0-1 scale and latency in
// milliseconds.
type optimizedStrategy struct {
	runner ProcessRunner
	python string
	script string
}

type optimizedOutput struct {
	FakeProbability *float64 `json:"fake_probability"`
	Confidence      *float64 `json:"confidence"`
	InferenceMS     float64  `json:"inference_ms"`
	ModelVersion    string   `json:"model_version"`
}

func (s optimizedStrategy) Name() string { return ModelOptimized }

func (s optimizedStrategy) Detect(ctx context.Context, filePath string, _ Options) (Result, error) {
	raw, err := s.run(ctx, filePath)
	if err != nil {
		return Result{}, err
	}
	if raw.FakeProbability == nil {
		return Result{}, fmt.Errorf("optimized output missing fake_probability")
	}

	result := Result{
		FakeScore:      *raw.FakeProbability * 100,
		ModelType:      ModelOptimized,
		ProcessingTime: raw.InferenceMS / 1000,
		DebugInfo: map[string]any{
			"model_version": raw.ModelVersion,
		},
	}
	if raw.Confidence != nil {
		conf := *raw.Confidence * 100
		result.ConfidenceScore = &conf
	}
	return result, nil
}

func (s optimizedStrategy) run(ctx context.Context, filePath string) (optimizedOutput, error) {
	var raw optimizedOutput
	out, err := s.runner.Run(ctx, s.python, s.script, filePath)
	if err != nil {
		return raw, err
	}
	payload, err := ExtractJSON(out)
	if err != nil {
		return raw, err
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return raw, fmt.Errorf("decode optimized output: %w", err)
	}
	return raw, nil
}

// advancedStrategy invokes the full-featured detector, requesting
// heatmap and face-analysis sub-features when the tier allows them. Its
// raw schema uses camelCase fields on a 0-100 scale.
type advancedStrategy struct {
	runner ProcessRunner
	python string
	script string
}

type advancedOutput struct {
	FakeScore       *float64       `json:"fakeScore"`
	ConfidenceScore *float64       `json:"confidenceScore"`
	ProcessingTime  float64        `json:"processingTime"`
	ModelType       string         `json:"modelType"`
	Predictions     *Predictions   `json:"predictions"`
	FaceAnalysis    *FaceAnalysis  `json:"faceAnalysis"`
	DebugInfo       map[string]any `json:"debugInfo"`
	Error           string         `json:"error"`
}

func (s advancedStrategy) Name() string { return ModelAdvanced }

func (s advancedStrategy) Detect(ctx context.Context, filePath string, opts Options) (Result, error) {
	args := []string{s.script, filePath}
	if opts.GenerateHeatmap {
		args = append(args, "--generateHeatmap")
	}
	if opts.FaceAnalysis {
		args = append(args, "--faceAnalysis")
	}
	if opts.Video {
		args = append(args, "--video")
	}

	out, err := s.runner.Run(ctx, s.python, args...)
	if err != nil {
		return Result{}, err
	}
	payload, err := ExtractJSON(out)
	if err != nil {
		return Result{}, err
	}
	var raw advancedOutput
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Result{}, fmt.Errorf("decode advanced output: %w", err)
	}
	// Recognized transient errors (missing native module, incompatible
	// layer signature) and rejected input are treated alike: advance.
	if raw.Error != "" {
		return Result{}, fmt.Errorf("advanced detector error: %s", raw.Error)
	}
	if raw.FakeScore == nil {
		return Result{}, fmt.Errorf("advanced output missing fakeScore")
	}

	modelType := raw.ModelType
	if modelType == "" {
		modelType = ModelAdvanced
	}
	result := Result{
		FakeScore:       *raw.FakeScore,
		ConfidenceScore: raw.ConfidenceScore,
		ModelType:       modelType,
		ProcessingTime:  raw.ProcessingTime,
		FaceAnalysis:    raw.FaceAnalysis,
		DebugInfo:       raw.DebugInfo,
	}
	if raw.Predictions != nil {
		result.AnalysisDetails.Predictions = *raw.Predictions
	}
	return result, nil
}

// basicStrategy invokes the basic detector, whose raw schema uses
// snake_case fields on a 0-100 scale.
type basicStrategy struct {
	runner ProcessRunner
	python string
	script string
}

type basicOutput struct {
	FakeScore       *float64 `json:"fake_score"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ProcessingTime  float64  `json:"processing_time"`
	Method          string   `json:"method"`
}

func (s basicStrategy) Name() string { return ModelBasic }

func (s basicStrategy) Detect(ctx context.Context, filePath string, _ Options) (Result, error) {
	out, err := s.runner.Run(ctx, s.python, s.script, filePath)
	if err != nil {
		return Result{}, err
	}
	payload, err := ExtractJSON(out)
	if err != nil {
		return Result{}, err
	}
	var raw basicOutput
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Result{}, fmt.Errorf("decode basic output: %w", err)
	}
	if raw.FakeScore == nil {
		return Result{}, fmt.Errorf("basic output missing fake_score")
	}

	return Result{
		FakeScore:       *raw.FakeScore,
		ConfidenceScore: raw.ConfidenceScore,
		ModelType:       ModelBasic,
		ProcessingTime:  raw.ProcessingTime,
		DebugInfo: map[string]any{
			"method": raw.Method,
		},
	}, nil
}
