package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"patientbrief/internal/analysis"
	"patientbrief/internal/bot"
	"patientbrief/internal/domain"
	"patientbrief/internal/scheduler"
	"patientbrief/internal/server"
	"patientbrief/internal/summarizer"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server, the Telegram bot and the retention scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), log)
		},
	}
}

func runServe(parent context.Context, log *slog.Logger) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, log, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	srv, err := server.New(a.analyzer, a.catalog, a.db, log)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	sched := scheduler.New(ctx, a.db, a.catalog, a.cfg.RunRetention, log)

	if err = sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", scheduler.RetentionSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String(),
		"retention", a.cfg.RunRetention)

	if a.cfg.BotEnabled() {
		botInst, err := bot.New(a.cfg.Token, a.analyzer, a.catalog, a.cfg.AllowedUsers, log)
		if err != nil {
			return fmt.Errorf("initialize bot: %w", err)
		}
		defer botInst.Stop()
		log.InfoContext(ctx, "Bot is initialized",
			"allowedUsersCount", len(a.cfg.AllowedUsers))

		go botInst.Start(ctx)
	} else {
		log.InfoContext(ctx, "TOKEN is missing so bot is disabled",
			"envVar", "TOKEN")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(a.cfg.HTTPAddr)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serverErr:
		if err != nil {
			log.ErrorContext(ctx, "HTTP server is stopped",
				"error", err,
				"addr", a.cfg.HTTPAddr)
		}
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", shutdownErr)
	}

	return err
}

func extractCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file|sample>",
		Short: "Print the patient summary of a bundle as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, log, false)
			if err != nil {
				return err
			}

			src, err := resolveSource(a, args[0])
			if err != nil {
				return err
			}

			summary, _, err := a.analyzer.Extract(ctx, src)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func briefCmd(log *slog.Logger) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "brief <file|sample>",
		Short: "Print the clinical care report and matched trials of a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, log, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			src, err := resolveSource(a, args[0])
			if err != nil {
				return err
			}

			result, err := a.analyzer.Analyze(ctx, src)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			return writeBrief(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the whole analysis as JSON")

	return cmd
}

func samplesCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List sample bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), log, false)
			if err != nil {
				return err
			}

			names, err := a.catalog.List()
			if err != nil {
				return err
			}

			for _, name := range names {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// resolveSource reads arg as a file path and falls back to a sample name.
func resolveSource(a *app, arg string) (analysis.Source, error) {
	data, err := os.ReadFile(arg)
	if err == nil {
		return analysis.Source{Name: arg, Data: data}, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return analysis.Source{}, fmt.Errorf("read file: %w", err)
	}

	data, err = a.catalog.Open(strings.TrimSuffix(arg, ".json"))
	if err != nil {
		return analysis.Source{}, fmt.Errorf("open sample: %w", err)
	}

	return analysis.Source{Name: arg, Data: data}, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	_, err = fmt.Fprintln(w, string(out))

	return err
}

func writeBrief(w io.Writer, result *domain.Analysis) error {
	report, err := summarizer.PlainText(result.Narrative.Report)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	matches, err := summarizer.PlainText(result.Narrative.TrialMatches)
	if err != nil {
		return fmt.Errorf("render trial matches: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n\n", result.ID, result.Source)
	fmt.Fprintf(&b, "CLINICAL CARE REPORT\n\n%s\n\n", report)
	fmt.Fprintf(&b, "MATCHED CLINICAL TRIALS\n\n%s\n", matches)

	if len(result.Narrative.TrialLinks) > 0 {
		b.WriteString("\nTRIAL LINKS\n\n")
		for _, link := range result.Narrative.TrialLinks {
			b.WriteString(link + "\n")
		}
	}

	_, err = io.WriteString(w, b.String())

	return err
}
