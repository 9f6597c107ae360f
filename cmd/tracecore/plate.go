package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tracecore/internal/export"
)

func plateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "plate <plan-id> <collection-id>",
		Short: "Export a collection's per-well summary as CSV",
		Args:  cobra.ExactArgs(2),
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

			trace, err := buildTrace(ctx, client, args[0], false, rec, log)
			if err != nil {
				return err
			}

			w, closeOutput, err := outputWriter(output)
			if err != nil {
				return err
			}
			if err := export.WritePlateCSV(w, trace, args[1]); err != nil {
				_ = closeOutput()
				return err
			}
			return closeOutput()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the CSV to this file instead of stdout")
	return cmd
}
