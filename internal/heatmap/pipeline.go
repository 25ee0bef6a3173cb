package heatmap

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deepsight/api/internal/detect"
)

// Artifact type tags.
const (
	TypeStandard = "standard"
	TypePremium  = "premium"
	TypeAdvanced = "advanced"
)

// Input is the slice of analysis state the pipeline needs.
type Input struct {
	ResultID        string
	FakeScore       float64
	ConfidenceScore float64
	UploadedAt      time.Time
}

// Options select the strategy cascade for one request.
type Options struct {
	Type          string
	Authenticated bool
	GradCAM       bool // heatmapGeneration entitlement
	FaceAnalysis  bool
}

type Metadata struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Format      string    `json:"format"`
	Method      string    `json:"method"`
	SizeBytes   int       `json:"sizeBytes"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Output is the pipeline's total contract: callers branch on Success and
// never see an error escape the pipeline boundary.
type Output struct {
	Success     bool           `json:"success"`
	HeatmapPath string         `json:"heatmapPath,omitempty"`
	HeatmapURL  string         `json:"heatmapUrl,omitempty"`
	Type        string         `json:"type"`
	Cached      bool           `json:"cached"`
	Metadata    *Metadata      `json:"metadata,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Publisher pushes finished artifacts to durable object storage for a
// public URL. Satisfied by *storage.ObjectStore; nil disables publishing.
type Publisher interface {
	PutHeatmap(ctx context.Context, objectKey string, data []byte) (string, error)
}

type Params struct {
	PythonBin     string
	GradCAMScript string
	TempDir       string
	Threshold     float64
	Timeout       time.Duration
}

// Pipeline drives the heatmap fallback cascade: gradient-based
// explainability for entitled authenticated callers, then a synthetic
// region overlay, then a "not generated" terminal outcome.
type Pipeline struct {
	store     Store
	runner    detect.ProcessRunner
	publisher Publisher
	params    Params
	log       zerolog.Logger
}

func NewPipeline(store Store, runner detect.ProcessRunner, publisher Publisher, params Params, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		runner:    runner,
		publisher: publisher,
		params:    params,
		log:       log,
	}
}

// FileName derives the deterministic cache key for one artifact. The
// timestamp is truncated to the second, so identical (image, result,
// type) tuples map to the same entry.
func FileName(imagePath, resultID, artifactType string, uploadedAt time.Time) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	ts := uploadedAt.UTC().Format("20060102T150405")
	return fmt.Sprintf("%s_%s_heatmap_%s_%s.jpg", base, resultID, artifactType, ts)
}

func (p *Pipeline) Generate(ctx context.Context, imagePath string, in Input, opts Options) Output {
	if in.FakeScore <= p.params.Threshold {
		return Output{Success: false, Type: opts.Type, Error: "score below visibility threshold"}
	}
	if opts.Type == "" {
		opts.Type = TypeStandard
	}

	name := FileName(imagePath, in.ResultID, opts.Type, in.UploadedAt)
	if p.store.Exists(name) {
		return Output{
			Success:     true,
			HeatmapPath: p.store.Path(name),
			HeatmapURL:  "/heatmaps/" + name,
			Type:        opts.Type,
			Cached:      true,
		}
	}

	if opts.Authenticated && opts.GradCAM {
		out, err := p.generateGradCAM(ctx, imagePath, in, opts, name)
		if err == nil {
			return out
		}
		p.log.Warn().Err(err).Str("result_id", in.ResultID).Msg("grad-cam generation failed, using synthetic overlay")
	}

	out, err := p.generateSynthetic(ctx, imagePath, in, opts, name)
	if err != nil {
		p.log.Error().Err(err).Str("result_id", in.ResultID).Msg("synthetic heatmap failed")
		return Output{Success: false, Type: opts.Type, Error: err.Error()}
	}
	return out
}

type gradCAMOutput struct {
	Success        bool    `json:"success"`
	HeatmapPath    string  `json:"heatmap_path"`
	Confidence     float64 `json:"confidence"`
	PredictedClass string  `json:"predicted_class"`
	Error          string  `json:"error"`
}

func (p *Pipeline) generateGradCAM(ctx context.Context, imagePath string, in Input, opts Options, name string) (Output, error) {
	if p.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.params.Timeout)
		defer cancel()
	}

	outputPath := filepath.Join(p.params.TempDir, fmt.Sprintf("gradcam_%s.jpg", in.ResultID))
	defer os.Remove(outputPath)

	confidence := in.ConfidenceScore
	if confidence == 0 {
		confidence = in.FakeScore
	}

	raw, err := p.runner.Run(ctx, p.params.PythonBin,
		p.params.GradCAMScript, imagePath, outputPath,
		strconv.FormatFloat(confidence/100, 'f', 4, 64))
	if err != nil {
		return Output{}, err
	}
	payload, err := detect.ExtractJSON(raw)
	if err != nil {
		return Output{}, err
	}
	var result gradCAMOutput
	if err := json.Unmarshal(payload, &result); err != nil {
		return Output{}, fmt.Errorf("decode grad-cam output: %w", err)
	}
	if !result.Success {
		return Output{}, fmt.Errorf("grad-cam reported failure: %s", result.Error)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return Output{}, fmt.Errorf("read grad-cam artifact: %w", err)
	}

	path, err := p.store.Put(name, data)
	if err != nil {
		return Output{}, err
	}

	return Output{
		Success:     true,
		HeatmapPath: path,
		HeatmapURL:  p.publish(ctx, name, data),
		Type:        opts.Type,
		Metadata: &Metadata{
			Format:      "jpg",
			Method:      "grad-cam",
			SizeBytes:   len(data),
			GeneratedAt: time.Now().UTC(),
		},
		Stats: map[string]any{
			"method":          "grad-cam",
			"confidence":      result.Confidence,
			"predicted_class": result.PredictedClass,
		},
	}, nil
}

func (p *Pipeline) generateSynthetic(ctx context.Context, imagePath string, in Input, opts Options, name string) (Output, error) {
	// Seed from the cache key so near-simultaneous identical requests
	// race toward equivalent content; last-writer-wins is acceptable.
	h := fnv.New64a()
	h.Write([]byte(name))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	// Probe dimensions first so region placement sees real bounds.
	width, height, err := imageBounds(imagePath)
	if err != nil {
		return Output{}, err
	}

	premium := opts.Type == TypePremium || opts.Type == TypeAdvanced
	regions := generateRegions(width, height, in.FakeScore, premium, rng)
	if opts.FaceAnalysis {
		regions = append(regions, facialRegions(width, height, in.FakeScore, rng)...)
	}

	data, w, h2, err := renderOverlay(imagePath, regions)
	if err != nil {
		return Output{}, err
	}

	path, err := p.store.Put(name, data)
	if err != nil {
		return Output{}, err
	}

	return Output{
		Success:     true,
		HeatmapPath: path,
		HeatmapURL:  p.publish(ctx, name, data),
		Type:        opts.Type,
		Metadata: &Metadata{
			Width:       w,
			Height:      h2,
			Format:      "jpg",
			Method:      "synthetic-overlay",
			SizeBytes:   len(data),
			GeneratedAt: time.Now().UTC(),
		},
		Stats: map[string]any{
			"method":   "synthetic-overlay",
			"regions":  len(regions),
			"coverage": coverage(regions, w, h2),
		},
	}, nil
}

// publish pushes the artifact to object storage, falling back to the
// locally served path when no publisher is configured or the push fails.
func (p *Pipeline) publish(ctx context.Context, name string, data []byte) string {
	local := "/heatmaps/" + name
	if p.publisher == nil {
		return local
	}
	url, err := p.publisher.PutHeatmap(ctx, name, data)
	if err != nil {
		p.log.Warn().Err(err).Str("artifact", name).Msg("heatmap publish failed")
		return local
	}
	return url
}

func imageBounds(imagePath string) (int, int, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
