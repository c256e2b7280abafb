package main

import (
	"context"
	"fmt"
	"log/slog"

	"patientbrief/internal/analysis"
	"patientbrief/internal/catalog"
	"patientbrief/internal/config"
	"patientbrief/internal/database"
	"patientbrief/internal/summarizer"
	"patientbrief/internal/trials"

	"github.com/spf13/afero"
)

type app struct {
	cfg      config.Config
	catalog  *catalog.Catalog
	db       *database.Database
	analyzer *analysis.Service
	log      *slog.Logger
}

// newApp loads the configuration and builds the shared components. The run
// history is opened only when withDB is set.
func newApp(ctx context.Context, log *slog.Logger, withDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		catalog: catalog.New(afero.NewOsFs(), cfg.SamplesDir, cfg.UploadDir),
		log:     log,
	}

	if withDB {
		a.db, err = database.New(ctx, cfg.DBPath, log)
		if err != nil {
			return nil, fmt.Errorf("initialize db: %w", err)
		}
		log.InfoContext(ctx, "DB is initialized",
			"dbPath", cfg.DBPath)
	}

	narrator := initNarrator(ctx, cfg, log)

	// A nil *database.Database must not reach the interface.
	var runs analysis.RunRecorder
	if a.db != nil {
		runs = a.db
	}

	var svcNarrator analysis.Narrator
	if narrator != nil {
		svcNarrator = narrator
	}

	a.analyzer = analysis.New(svcNarrator, runs, log)

	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.db == nil {
		return
	}

	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func initNarrator(ctx context.Context, cfg config.Config, log *slog.Logger) *summarizer.Narrator {
	if !cfg.NarrationEnabled() {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so narration is disabled",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	completer, err := summarizer.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI completer so narration is disabled",
			"error", err)

		return nil
	}

	templates, err := summarizer.TemplatesForPreset(cfg.PromptPreset)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve prompt preset so narration is disabled",
			"error", err,
			"preset", cfg.PromptPreset)

		return nil
	}

	narratorCfg := summarizer.NarratorConfig{Templates: templates}

	feed, err := trials.New(cfg.TrialsFeedURL, log)
	switch {
	case err != nil:
		log.WarnContext(ctx, "Failed to create trials feed so listings are disabled",
			"error", err)
	case feed != nil:
		narratorCfg.Listings = feed
		log.InfoContext(ctx, "Trials feed is initialized")
	}

	narrator, err := summarizer.NewNarrator(completer, narratorCfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create narrator so narration is disabled",
			"error", err)

		return nil
	}

	log.InfoContext(ctx, "Narrator is initialized",
		"provider", "openai",
		"model", cfg.OpenAIModel,
		"preset", cfg.PromptPreset)

	return narrator
}
