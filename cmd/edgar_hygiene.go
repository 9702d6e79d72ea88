package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgarctl/edgar-ingest/internal/edgar/hygiene"
)

var edgarHygieneCmd = &cobra.Command{
	Use:   "hygiene",
	Short: "Repair or remove corrupted artifacts in the blob store",
	Long: `Scans a CIK-scoped or store-wide prefix for rate-limit sentinel
bodies, zero-byte objects, and access-denied sentinel bodies, then repairs
(re-fetch and re-upload) or deletes them, per --sweep.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := zap.L().With(zap.String("command", "edgar.hygiene"))

		if err := cfg.Validate("edgar"); err != nil {
			return err
		}

		sweepKind, _ := cmd.Flags().GetString("sweep")
		cik, _ := cmd.Flags().GetString("cik")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		edgar, err := edgarClient(cfg.Edgar)
		if err != nil {
			return err
		}
		store, err := edgarBlobStore(cfg.Edgar)
		if err != nil {
			return err
		}

		s := &hygiene.Sweeper{EDGAR: edgar, Store: store, Concurrency: concurrency}
		prefix := hygiene.Scope(cik)

		log.Info("starting edgar hygiene sweep", zap.String("sweep", sweepKind), zap.String("prefix", prefix))

		var report hygiene.Report
		switch sweepKind {
		case "rate-limited":
			report, err = s.SweepRateLimited(cmd.Context(), prefix)
		case "zero-byte":
			report, err = s.SweepZeroByte(cmd.Context(), prefix)
		case "access-denied":
			report, err = s.SweepAccessDenied(cmd.Context(), prefix)
		default:
			return eris.Errorf("edgar hygiene: unknown sweep %q (want rate-limited, zero-byte, or access-denied)", sweepKind)
		}
		if err != nil {
			return eris.Wrap(err, "edgar hygiene")
		}

		fmt.Printf("Scanned %d, fixed %d, deleted %d, skipped %d\n", report.Scanned, report.Fixed, report.Deleted, report.Skipped)
		return nil
	},
}

func init() {
	edgarHygieneCmd.Flags().String("sweep", "", "sweep to run: rate-limited, zero-byte, or access-denied (required)")
	edgarHygieneCmd.Flags().String("cik", "", "restrict the sweep to this CIK's tree (default: entire store)")
	edgarHygieneCmd.Flags().Int("concurrency", 5, "max objects inspected/repaired concurrently")
	edgarCmd.AddCommand(edgarHygieneCmd)
}
