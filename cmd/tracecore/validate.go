package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var noFix bool
	cmd := &cobra.Command{
		Use:   "validate <plan-id>",
		Short: "Build a plan's trace and report consistency violations",
		Long: `Builds the trace, applies the repair battery, and runs the consistency
checker. Violations are reported on stderr; the exit code stays zero so
pipelines can treat the report as advisory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()
			rec, stopMetrics := newRecorder()
			defer stopMetrics()

			client, closeClient, err := openClient(log, rec)
			if err != nil {
				return err
			}
			defer func() { _ = closeClient() }()

			trace, err := buildTrace(ctx, client, args[0], noFix, rec, log)
			if err != nil {
				return err
			}
			_, err = validateTrace(ctx, trace, rec, log)
			return err
		},
	}
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "suppress the heuristic repair battery")
	return cmd
}
