package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tracecore/internal/export"
)

func sbolCmd() *cobra.Command {
	var output, namespace string
	cmd := &cobra.Command{
		Use:   "sbol <plan-id>",
		Short: "Export a plan's trace as an SBOL RDF/XML document",
		Args:  cobra.ExactArgs(1),
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
			if err := export.SBOL(trace, namespace).WriteRDF(w); err != nil {
				_ = closeOutput()
				return err
			}
			return closeOutput()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the document to this file instead of stdout")
	cmd.Flags().StringVar(&namespace, "namespace", "https://lab.example.org", "namespace identities are minted under")
	return cmd
}
