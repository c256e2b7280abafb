package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	RetentionSpec         = "15 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneTimeout          = 5 * time.Minute
)

type RunPruner interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UploadPruner interface {
	PruneUploads(cutoff time.Time) (int, error)
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	runs      RunPruner
	uploads   UploadPruner
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func New(
	ctx context.Context,
	runs RunPruner,
	uploads UploadPruner,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		runs:      runs,
		uploads:   uploads,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(RetentionSpec, s.prune); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	cutoff := s.now().Add(-s.retention)

	if s.runs != nil {
		deleted, err := s.runs.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to prune runs",
				"error", err,
				"cutoff", cutoff)
		} else {
			s.log.InfoContext(ctx, "Runs are pruned",
				"deletedCount", deleted,
				"cutoff", cutoff)
		}
	}

	if s.uploads != nil {
		removed, err := s.uploads.PruneUploads(cutoff)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to prune uploads",
				"error", err,
				"removedCount", removed,
				"cutoff", cutoff)
		} else {
			s.log.InfoContext(ctx, "Uploads are pruned",
				"removedCount", removed,
				"cutoff", cutoff)
		}
	}
}
