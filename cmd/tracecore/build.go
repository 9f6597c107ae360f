package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"tracecore/internal/archive"
	"tracecore/internal/export"
)

func buildCmd() *cobra.Command {
	var output string
	var validate, noFix, toArchive bool
	cmd := &cobra.Command{
		Use:   "build <plan-id>",
		Short: "Build the provenance document for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			planID := args[0]
			log := slog.Default()
			rec, stopMetrics := newRecorder()
			defer stopMetrics()

			client, closeClient, err := openClient(log, rec)
			if err != nil {
				return err
			}
			defer func() { _ = closeClient() }()

			start := time.Now()
			trace, err := buildTrace(ctx, client, planID, noFix, rec, log)
			rec.ObserveBuild(time.Since(start), err == nil)
			if err != nil {
				return err
			}

			if validate {
				if _, err := validateTrace(ctx, trace, rec, log); err != nil {
					return err
				}
			}

			w, closeOutput, err := outputWriter(output)
			if err != nil {
				return err
			}
			if err := export.WriteJSON(w, trace); err != nil {
				_ = closeOutput()
				return err
			}
			if err := closeOutput(); err != nil {
				return err
			}

			if toArchive {
				store, err := archive.Open(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				if err := store.SaveDocument(ctx, planID, export.Document(trace)); err != nil {
					return err
				}
				log.Info("provenance document archived", "plan", planID, "driver", store.Driver())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to this file instead of stdout")
	cmd.Flags().BoolVar(&validate, "validate", false, "run the consistency checker and report to stderr")
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "suppress the heuristic repair battery")
	cmd.Flags().BoolVar(&toArchive, "archive", false, "also persist the document to the provenance archive")
	return cmd
}
