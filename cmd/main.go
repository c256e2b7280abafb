package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	rootCmd := &cobra.Command{
		Use:           "patientbrief",
		Short:         "Patient record extraction with narrative reports and trial matching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// One-shot commands print their result to stdout.
	cliLog := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	rootCmd.AddCommand(serveCmd(log))
	rootCmd.AddCommand(extractCmd(cliLog))
	rootCmd.AddCommand(briefCmd(cliLog))
	rootCmd.AddCommand(samplesCmd(cliLog))

	if err := rootCmd.Execute(); err != nil {
		log.Error("Failed to execute command",
			"error", err)

		os.Exit(1)
	}
}
