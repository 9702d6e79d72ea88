package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgarctl/edgar-ingest/internal/edgar/driver"
)

var edgarSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search catalogued filing documents for terms",
	Long: `Creates a search query and dispatches one SearchDocument task per
matching filing document, scoped by --form-types. Does not wait for the
dispatched tasks to complete; inspect results via the catalogue once they
have.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "edgar.search"))

		if err := cfg.Validate("edgar"); err != nil {
			return err
		}

		termsFlag, _ := cmd.Flags().GetString("terms")
		terms := splitCSV(termsFlag)
		if len(terms) == 0 {
			return eris.New("edgar search: --terms is required")
		}
		formTypesFlag, _ := cmd.Flags().GetString("form-types")
		formTypes := splitCSV(formTypesFlag)
		caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
		token, _ := cmd.Flags().GetBool("token")
		stem, _ := cmd.Flags().GetBool("stem")
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

		log.Info("starting edgar search", zap.Strings("terms", terms), zap.Strings("form_types", formTypes))

		queryID, started, err := d.SearchFilingDocuments(ctx, driver.SearchFilingDocumentsOpts{
			Terms:          terms,
			FormTypeFilter: formTypes,
			CaseSensitive:  caseSensitive,
			Token:          token,
			Stem:           stem,
		})
		if err != nil {
			return eris.Wrap(err, "edgar search")
		}

		fmt.Printf("Search query %d: started %d SearchDocument task(s)\n", queryID, started)
		return nil
	},
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func init() {
	edgarSearchCmd.Flags().String("terms", "", "comma-separated search terms (required)")
	edgarSearchCmd.Flags().String("form-types", "", "comma-separated form type filter (e.g. 10-K,10-Q)")
	edgarSearchCmd.Flags().Bool("case-sensitive", false, "match term case exactly")
	edgarSearchCmd.Flags().Bool("token", false, "tokenize before matching")
	edgarSearchCmd.Flags().Bool("stem", false, "stem terms and tokens before matching")
	edgarSearchCmd.Flags().Int("concurrency", 5, "max SearchDocument tasks dispatched concurrently")
	edgarCmd.AddCommand(edgarSearchCmd)
}
