package database_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"patientbrief/internal/database"
	"patientbrief/internal/domain"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"), slog.Default())
	if err != nil {
		t.Fatalf("create database: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	return db
}

func TestInsertAndListRuns(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	runs := []domain.Run{
		{ID: "a", Source: "Anna_Jones", Status: domain.RunStatusSucceeded, EntryCount: 12, DurationMS: 900, CreatedAt: base},
		{ID: "b", Source: "upload.json", Status: domain.RunStatusFailed, Error: "malformed document", CreatedAt: base.Add(time.Minute)},
	}
	for _, run := range runs {
		if err := db.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	got, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}

	if got[0].ID != "b" || got[0].Status != domain.RunStatusFailed || got[0].Error != "malformed document" {
		t.Fatalf("unexpected newest run: %+v", got[0])
	}

	if got[1].ID != "a" || got[1].EntryCount != 12 || !got[1].CreatedAt.Equal(base) {
		t.Fatalf("unexpected oldest run: %+v", got[1])
	}
}

func TestInsertRunRequiresID(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.InsertRun(context.Background(), domain.Run{Source: "x"}); err == nil {
		t.Fatalf("expected error for empty ID")
	}
}

func TestDeleteRunsBefore(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		run := domain.Run{
			ID:        string(rune('a' + i)),
			Source:    "sample",
			Status:    domain.RunStatusSucceeded,
			CreatedAt: now.Add(-age),
		}
		if err := db.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}

	deleted, err := db.DeleteRunsBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete runs: %v", err)
	}

	if deleted != 2 {
		t.Fatalf("expected 2 deleted runs, got %d", deleted)
	}

	remaining, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}

	if len(remaining) != 1 || remaining[0].ID != "c" {
		t.Fatalf("unexpected remaining runs: %+v", remaining)
	}
}
