package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deepsight/api/internal/config"
	"deepsight/api/internal/repository"
)

// Processor executes maintenance tasks and records analysis events.
type Processor struct {
	cfg    *config.AppConfig
	quotas *repository.QuotaRepository
	cache  *redis.Client
	logger zerolog.Logger
}

type TaskPayload struct {
	Type      string  `json:"type"`
	ResultID  string  `json:"resultId"`
	ModelType string  `json:"modelType"`
	FakeScore float64 `json:"fakeScore,string"`
	Anonymous bool    `json:"anonymous,string"`
}

func NewProcessor(cfg *config.AppConfig, quotas *repository.QuotaRepository, cache *redis.Client, logger zerolog.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		quotas: quotas,
		cache:  cache,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case "cleanup_heatmaps":
		return p.handleHeatmapCleanup(ctx)
	case "prune_quotas":
		return p.handleQuotaPrune(ctx)
	case "report_created":
		return p.handleReportCreated(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

// handleHeatmapCleanup deletes cached heatmap artifacts past retention.
func (p *Processor) handleHeatmapCleanup(ctx context.Context) error {
	cutoff := time.Now().Add(-p.cfg.Retention.HeatmapMaxAge)

	entries, err := os.ReadDir(p.cfg.Paths.HeatmapsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read heatmap dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(p.cfg.Paths.HeatmapsDir, entry.Name())
		if err := os.Remove(path); err != nil {
			p.logger.Warn().Err(err).Str("file", entry.Name()).Msg("heatmap removal failed")
			continue
		}
		removed++
	}

	p.logger.Info().Int("removed", removed).Msg("heatmap cleanup finished")
	return nil
}

// handleQuotaPrune drops anonymous counter rows older than retention.
// Stale rows are dead weight only; rollover happens via the date key.
func (p *Processor) handleQuotaPrune(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-p.cfg.Retention.QuotaMaxAge).Format("2006-01-02")

	pruned, err := p.quotas.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune quotas: %w", err)
	}

	p.logger.Info().Int64("pruned", pruned).Str("cutoff", cutoff).Msg("quota prune finished")
	return nil
}

// handleReportCreated maintains daily aggregate counters off the hot
// request path.
func (p *Processor) handleReportCreated(ctx context.Context, payload TaskPayload) error {
	if p.cache == nil {
		return nil
	}

	day := time.Now().UTC().Format("2006-01-02")
	pipe := p.cache.Pipeline()
	pipe.Incr(ctx, "deepsight:stats:analyses:"+day)
	if payload.ModelType != "" {
		pipe.Incr(ctx, "deepsight:stats:model:"+payload.ModelType+":"+day)
	}
	if payload.FakeScore > 50 {
		pipe.Incr(ctx, "deepsight:stats:deepfakes:"+day)
	}
	pipe.Expire(ctx, "deepsight:stats:analyses:"+day, 40*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}

	p.logger.Debug().
		Str("result_id", payload.ResultID).
		Str("model_type", payload.ModelType).
		Bool("anonymous", payload.Anonymous).
		Msg("analysis event recorded")
	return nil
}
