package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tracecore/internal/archive"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived provenance documents",
		Long: `Reads the provenance archive (TRACECORE_ARCHIVE_DRIVER) written by
'build --archive'. Archived documents are replayed without touching the
inventory system.`,
	}
	cmd.AddCommand(archiveListCmd())
	cmd.AddCommand(archiveShowCmd())
	return cmd
}

func archiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived plan IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := archive.Open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			plans, err := store.Plans(ctx)
			if err != nil {
				return err
			}
			for _, id := range plans {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func archiveShowCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Print an archived provenance document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := archive.Open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			doc, err := store.Document(ctx, args[0])
			if err != nil {
				return err
			}
			w, closeOutput, err := outputWriter(output)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(doc); err != nil {
				_ = closeOutput()
				return err
			}
			return closeOutput()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to this file instead of stdout")
	return cmd
}
