package main

import (
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source-id>",
	Short: "Run one ingestion for a configured source and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		report, err := e.coord.RunIngestion(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		e.log.Info("ingestion finished",
			"source", report.SourceID,
			"processed", report.Processed,
			"created", report.Created,
			"updated", report.Updated,
			"duplicates", report.Duplicates,
			"failed", report.Failed,
			"events", report.Events,
		)
		return nil
	},
}
