package detect

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deepsight/api/internal/tier"
)

// Params configures the external detector invocations.
type Params struct {
	PythonBin       string
	OptimizedScript string
	AdvancedScript  string
	BasicScript     string
	StrategyTimeout time.Duration
}

// Dispatcher drives the detection fallback cascade. Strategies are tried
// in strict sequence with a bounded timeout each; a timeout, a failed
// process or unparseable output advances to the next strategy without
// in-place retries. The terminal mock strategy cannot fail, so Run is
// total: every admitted file gets a Result.
type Dispatcher struct {
	advanced []Strategy
	basic    []Strategy
	timeout  time.Duration
	log      zerolog.Logger
}

func NewDispatcher(runner ProcessRunner, p Params, log zerolog.Logger) *Dispatcher {
	optimized := optimizedStrategy{runner: runner, python: p.PythonBin, script: p.OptimizedScript}
	advanced := advancedStrategy{runner: runner, python: p.PythonBin, script: p.AdvancedScript}
	basic := basicStrategy{runner: runner, python: p.PythonBin, script: p.BasicScript}
	mock := mockStrategy{}

	return &Dispatcher{
		advanced: []Strategy{optimized, advanced, basic, mock},
		basic:    []Strategy{basic, mock},
		timeout:  p.StrategyTimeout,
		log:      log,
	}
}

// NewDispatcherWithStrategies builds a dispatcher from explicit cascades;
// the last strategy of each cascade must be infallible.
func NewDispatcherWithStrategies(advanced, basic []Strategy, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{advanced: advanced, basic: basic, timeout: timeout, log: log}
}

func (d *Dispatcher) Run(ctx context.Context, filePath string, desc tier.Descriptor) Result {
	cascade := d.basic
	if desc.ModelClass == tier.ModelClassAdvanced {
		cascade = d.advanced
	}

	opts := Options{
		GenerateHeatmap: desc.Has(tier.FeatureHeatmapGeneration),
		FaceAnalysis:    desc.Has(tier.FeatureFaceAnalysis),
		Video:           desc.Has(tier.FeatureVideoProcessing) && isVideo(filePath),
	}

	var result Result
	for i, strategy := range cascade {
		res, err := d.invoke(ctx, strategy, filePath, opts)
		if err != nil {
			d.log.Warn().
				Err(err).
				Str("strategy", strategy.Name()).
				Str("file", filepath.Base(filePath)).
				Msg("detection strategy failed, falling back")
			continue
		}
		result = res
		if i > 0 {
			if result.DebugInfo == nil {
				result.DebugInfo = map[string]any{}
			}
			result.DebugInfo["fallback_depth"] = i
		}
		break
	}

	result.finalize()
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, s Strategy, filePath string, opts Options) (Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return s.Detect(ctx, filePath, opts)
}

func isVideo(filePath string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), ".")) {
	case "mp4", "avi", "mov", "mkv":
		return true
	}
	return false
}
