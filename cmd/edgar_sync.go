package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgarctl/edgar-ingest/internal/edgar/driver"
)

var edgarSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download filing indexes and dispatch filing processing",
	Long: `Reconciles EDGAR's remote index listings with the blob store and catalogue,
then starts one ProcessFilingIndex workflow per index file. Mirrors the
EDGAR_YEAR/EDGAR_QUARTER/EDGAR_MONTH/FORM_TYPES driver-invocation contract:
flags here override the corresponding environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "edgar.sync"))

		if err := cfg.Validate("edgar"); err != nil {
			return err
		}

		year, quarter, month, formTypes := driver.EnvDriverConfig()
		if v, _ := cmd.Flags().GetInt("year"); v != 0 {
			year = &v
		}
		if v, _ := cmd.Flags().GetInt("quarter"); v != 0 {
			quarter = &v
		}
		if v, _ := cmd.Flags().GetInt("month"); v != 0 {
			month = &v
		}
		if v, _ := cmd.Flags().GetString("form-types"); v != "" {
			formTypes = nil
			for _, f := range strings.Split(v, ",") {
				formTypes = append(formTypes, strings.TrimSpace(f))
			}
		}
		newOnly, _ := cmd.Flags().GetBool("new-only")
		storeRaw, _ := cmd.Flags().GetBool("store-raw")
		storeText, _ := cmd.Flags().GetBool("store-text")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

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

		temporal, err := edgarTemporalClient()
		if err != nil {
			return err
		}
		defer temporal.Close()

		d := &driver.Driver{
			EDGAR:       edgar,
			Store:       store,
			Catalogue:   cat,
			Temporal:    temporal,
			TaskQueue:   cfg.Edgar.TemporalTaskQueue,
			Concurrency: concurrency,
		}

		log.Info("starting edgar sync",
			zap.Any("year", year), zap.Any("quarter", quarter), zap.Any("month", month),
			zap.Strings("form_types", formTypes), zap.Bool("new_only", newOnly),
		)

		started, err := d.ProcessAllFilingIndex(ctx, driver.ProcessAllFilingIndexOpts{
			Year: year, Quarter: quarter, Month: month,
			FormTypeFilter: formTypes,
			NewOnly:        newOnly,
			StoreRaw:       storeRaw,
			StoreText:      storeText,
		})
		if err != nil {
			return eris.Wrap(err, "edgar sync")
		}

		fmt.Printf("Started %d ProcessFilingIndex workflow(s)\n", started)
		return nil
	},
}

func init() {
	edgarSyncCmd.Flags().Int("year", 0, "restrict to this year (0 = every year)")
	edgarSyncCmd.Flags().Int("quarter", 0, "restrict to this quarter, 1-4 (requires --year)")
	edgarSyncCmd.Flags().Int("month", 0, "restrict to this month, 1-12 (requires --year)")
	edgarSyncCmd.Flags().String("form-types", "", "comma-separated form type filter (e.g. 10-K,10-Q)")
	edgarSyncCmd.Flags().Bool("new-only", false, "skip index files already marked processed")
	edgarSyncCmd.Flags().Bool("store-raw", true, "upload raw document bytes content-addressed")
	edgarSyncCmd.Flags().Bool("store-text", true, "upload extracted document text content-addressed")
	edgarSyncCmd.Flags().Int("concurrency", 5, "max index files reconciled concurrently")
	edgarCmd.AddCommand(edgarSyncCmd)
}
