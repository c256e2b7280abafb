package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"patientbrief/internal/domain"
)

const defaultRunsLimit = 50

func (d *Database) InsertRun(ctx context.Context, run domain.Run) error {
	run.ID = strings.TrimSpace(run.ID)
	if run.ID == "" {
		return errors.New("run ID is empty")
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `insert into runs
	(id, source, status, error, entry_count, skipped_count, duration_ms, created_at)
	values (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		run.ID,
		strings.TrimSpace(run.Source),
		string(run.Status),
		run.Error,
		run.EntryCount,
		run.SkippedCount,
		run.DurationMS,
		run.CreatedAt.UTC().UnixMilli(),
	)

	return err
}

func (d *Database) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	query := `select id, source, status, error, entry_count, skipped_count, duration_ms, created_at
	from runs
	order by created_at desc, id
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"limit", limit,
				"operation", "ListRuns")
		}
	}()

	runs := []domain.Run{}
	for rows.Next() {
		var (
			r         domain.Run
			status    string
			createdAt int64
		)
		if err = rows.Scan(
			&r.ID,
			&r.Source,
			&status,
			&r.Error,
			&r.EntryCount,
			&r.SkippedCount,
			&r.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Status = domain.RunStatus(status)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return runs, nil
}

func (d *Database) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "delete from runs where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
