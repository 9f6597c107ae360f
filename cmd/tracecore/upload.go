package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tracecore/internal/blob"
	"tracecore/internal/upload"
)

func uploadCmd() *cobra.Command {
	var base string
	var provOnly, skipValidate bool
	cmd := &cobra.Command{
		Use:   "upload <plan-id>",
		Short: "Upload a plan's files and provenance documents to object storage",
		Long: `Builds and repairs the trace, then uploads it through the configured blob
store (TRACECORE_BLOB_DRIVER): file payloads grouped by generating
activity, with a provenance document at the plan root and in each
directory. Already-present objects are skipped.`,
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

			trace, err := buildTrace(ctx, client, args[0], false, rec, log)
			if err != nil {
				return err
			}
			if !skipValidate {
				if _, err := validateTrace(ctx, trace, rec, log); err != nil {
					return err
				}
			}

			store, err := blob.Open(ctx)
			if err != nil {
				return err
			}
			manager, err := upload.NewManager(trace, upload.Config{
				Store:    store,
				Contents: client,
				BasePath: base,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			log.Info("uploading trace", "plan", args[0], "base", manager.BasePath(), "directories", len(manager.Directories()))
			return manager.Upload(ctx, provOnly)
		},
	}
	cmd.Flags().StringVar(&base, "base", "traces", "base path the upload tree is written under")
	cmd.Flags().BoolVar(&provOnly, "prov-only", false, "upload provenance documents only, no file payloads")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "skip the consistency check before uploading")
	return cmd
}
