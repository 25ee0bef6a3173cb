package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler enqueues periodic maintenance tasks onto the worker stream.
type Scheduler struct {
	cron   *cron.Cron
	queue  *redis.Client
	stream string
	log    zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		queue:  queue,
		stream: stream,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 0 2 * * *", s.enqueueHeatmapCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 30 2 * * *", s.enqueueQuotaPrune); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight jobs, bounded so shutdown cannot hang.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueHeatmapCleanup() {
	if err := s.enqueueTask(map[string]any{
		"type": "cleanup_heatmaps",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue heatmap cleanup failed")
	}
}

func (s *Scheduler) enqueueQuotaPrune() {
	if err := s.enqueueTask(map[string]any{
		"type": "prune_quotas",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue quota prune failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: s.stream,
		Values: payload,
	}).Result()
	return err
}
