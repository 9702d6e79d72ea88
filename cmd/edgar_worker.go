package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/edgarctl/edgar-ingest/internal/edgar/orchestrator"
)

var edgarWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the EDGAR ingestion Temporal worker",
	Long:  "Polls the configured Temporal task queue and executes ProcessFilingIndex, ProcessFiling, SearchDocument, and ExtractDocumentData activities/workflows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "edgar.worker"))

		if err := cfg.Validate("edgar"); err != nil {
			return err
		}

		edgar, err := edgarClient(cfg.Edgar)
		if err != nil {
			return err
		}
		store, err := edgarBlobStore(cfg.Edgar)
		if err != nil {
			return err
		}
		cat, err := edgarCatalogue(ctx)
		if err != nil {
			return err
		}
		defer cat.Close() //nolint:errcheck

		extraction, err := newExtractionClient(cfg.Edgar.ExtractionURL)
		if err != nil {
			return err
		}

		activities := &orchestrator.Activities{
			EDGAR:      edgar,
			Store:      store,
			Catalogue:  cat,
			Extraction: extraction,
		}

		w, temporal, err := orchestrator.NewWorker(orchestrator.WorkerOptions{
			HostPort:  cfg.Edgar.TemporalHostPort,
			TaskQueue: cfg.Edgar.TemporalTaskQueue,
		}, activities)
		if err != nil {
			return err
		}
		defer temporal.Close()

		log.Info("starting edgar worker", zap.String("task_queue", cfg.Edgar.TemporalTaskQueue))

		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "edgar worker")
		}

		fmt.Println("Worker stopped")
		return nil
	},
}

func init() {
	edgarCmd.AddCommand(edgarWorkerCmd)
}
