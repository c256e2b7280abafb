package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"patientbrief/internal/domain"
	"patientbrief/internal/record"

	"github.com/google/uuid"
)

// Source is one document handed to the service by a caller.
type Source struct {
	Name string
	Data []byte
}

type Narrator interface {
	Summarize(ctx context.Context, summary domain.PatientSummary) (domain.Narrative, error)
}

type RunRecorder interface {
	InsertRun(ctx context.Context, run domain.Run) error
}

// Service runs one document through extraction and narration.
type Service struct {
	narrator Narrator
	runs     RunRecorder
	now      func() time.Time
	log      *slog.Logger
}

// New builds a service. runs may be nil, in which case nothing is recorded.
func New(narrator Narrator, runs RunRecorder, log *slog.Logger) *Service {
	return &Service{
		narrator: narrator,
		runs:     runs,
		now:      time.Now,
		log:      log,
	}
}

// Extract runs the record extractor only.
func (s *Service) Extract(ctx context.Context, src Source) (domain.PatientSummary, record.Stats, error) {
	summary, stats, err := record.ExtractBytes(src.Data)
	if err != nil {
		return domain.PatientSummary{}, record.Stats{}, fmt.Errorf("extract record: %w", err)
	}

	s.log.InfoContext(ctx, "Record is extracted",
		"source", src.Name,
		"entryCount", stats.Entries,
		"skippedCount", stats.Skipped,
		"kinds", stats.ByKind)

	return summary, stats, nil
}

// Analyze extracts the summary and obtains both narrative texts. There is
// no partial result: any failure returns nil.
func (s *Service) Analyze(ctx context.Context, src Source) (*domain.Analysis, error) {
	start := s.now()
	run := domain.Run{
		ID:        uuid.NewString(),
		Source:    strings.TrimSpace(src.Name),
		CreatedAt: start.UTC(),
	}

	analysis, err := s.analyze(ctx, src, &run)

	run.DurationMS = s.now().Sub(start).Milliseconds()
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = domain.RunStatusSucceeded
	}
	s.recordRun(ctx, run)

	if err != nil {
		return nil, err
	}

	analysis.ID = run.ID
	analysis.CreatedAt = run.CreatedAt

	s.log.InfoContext(ctx, "Analysis is completed",
		"runID", run.ID,
		"source", run.Source,
		"durationMS", run.DurationMS,
		"trialLinkCount", len(analysis.Narrative.TrialLinks))

	return analysis, nil
}

func (s *Service) analyze(ctx context.Context, src Source, run *domain.Run) (*domain.Analysis, error) {
	if s.narrator == nil {
		return nil, errors.New("narrator is not configured")
	}

	summary, stats, err := s.Extract(ctx, src)
	if err != nil {
		return nil, err
	}

	run.EntryCount = int64(stats.Entries)
	run.SkippedCount = int64(stats.Skipped)

	narrative, err := s.narrator.Summarize(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("summarize record: %w", err)
	}

	return &domain.Analysis{
		Source:    run.Source,
		Summary:   summary,
		Narrative: narrative,
	}, nil
}

func (s *Service) recordRun(ctx context.Context, run domain.Run) {
	if s.runs == nil {
		return
	}

	// Recording must not be cancelled together with the request it describes.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.runs.InsertRun(recordCtx, run); err != nil {
		s.log.ErrorContext(ctx, "Failed to record run",
			"error", err,
			"runID", run.ID,
			"status", run.Status)
	}
}
