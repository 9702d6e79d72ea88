// Package driver implements the two high-level processes that reconcile
// EDGAR's remote index listings with catalogue state and dispatch
// orchestrator tasks: DownloadFilingIndexData and ProcessAllFilingIndex.
// Per the concurrency model, a driver publishes tasks and does not wait
// for their completion; ordering across published tasks is not guaranteed
// and is not required, since every downstream operation is idempotent.
package driver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
	"github.com/edgarctl/edgar-ingest/internal/edgar/orchestrator"
)

// IndexFileStatus reports whether a filing index file had to be fetched
// from EDGAR this run, and whether it is already marked processed in the
// catalogue (mirroring the (path, wasFetched, isProcessed) tuple the
// original Python driver returns from download_filing_index_data).
type IndexFileStatus struct {
	StorePath   string
	WasFetched  bool
	IsProcessed bool
}

// Driver wires the EDGAR client, blob store, catalogue, and a Temporal
// client together to run the two high-level processes.
type Driver struct {
	EDGAR     *client.Client
	Store     blobstore.Store
	Catalogue catalogue.Catalogue
	Temporal  temporalclient.Client
	TaskQueue string

	// Concurrency bounds the number of index files fetched/listed
	// concurrently while reconciling remote listings with the store and
	// catalogue, and the number of SearchDocument workflow starts in flight
	// at once. It does not bound Temporal's own worker concurrency.
	Concurrency int
}

// DownloadFilingIndexData selects the remote index file list for
// (year, quarter, month) — progressively narrowing from "every year" down
// to "one month" as each pointer is supplied — ensures each file is mirrored
// into the blob store under edgar/full-index/…, and reports each file's
// store path alongside whether it was freshly fetched and whether the
// catalogue already has it marked processed.
func (d *Driver) DownloadFilingIndexData(ctx context.Context, year, quarter, month *int) ([]IndexFileStatus, error) {
	log := zap.L().With(zap.String("component", "edgar.driver"))

	remote, err := d.listIndexFiles(ctx, year, quarter, month)
	if err != nil {
		return nil, eris.Wrap(err, "driver: list filing index files")
	}
	log.Info("selected filing index files", zap.Int("count", len(remote)))

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	statuses := make([]IndexFileStatus, len(remote))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, edgarPath := range remote {
		i, edgarPath := i, edgarPath
		g.Go(func() error {
			storePath := filingIndexStorePath(edgarPath)

			idx, err := d.Catalogue.GetFilingIndex(gctx, edgarPath)
			isProcessed := err == nil && idx != nil && idx.IsProcessed

			exists, err := d.Store.Exists(gctx, storePath)
			if err != nil {
				return eris.Wrapf(err, "driver: check store for %q", storePath)
			}

			if exists {
				statuses[i] = IndexFileStatus{StorePath: storePath, WasFetched: false, IsProcessed: isProcessed}
				return nil
			}

			raw, _, err := d.EDGAR.GetBuffer(gctx, edgarPath)
			if err != nil {
				return eris.Wrapf(err, "driver: fetch %q", edgarPath)
			}
			if raw == nil {
				log.Warn("filing index fetch exhausted retry ladder, skipping", zap.String("path", edgarPath))
				return nil
			}
			if err := d.Store.Put(gctx, storePath, raw, false); err != nil {
				return eris.Wrapf(err, "driver: upload %q", storePath)
			}

			statuses[i] = IndexFileStatus{StorePath: storePath, WasFetched: true, IsProcessed: isProcessed}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Drop slots left zero-valued by rows skipped on retry-ladder exhaustion.
	out := statuses[:0]
	for _, s := range statuses {
		if s.StorePath != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ProcessAllFilingIndexOpts configures ProcessAllFilingIndex.
type ProcessAllFilingIndexOpts struct {
	Year, Quarter, Month *int
	FormTypeFilter       []string
	NewOnly              bool
	StoreRaw             bool
	StoreText            bool
}

// ProcessAllFilingIndex is the driver entrypoint named by §6: it downloads
// the selected index files (via DownloadFilingIndexData) then starts one
// ProcessFilingIndexWorkflow per file, without waiting for any of them to
// complete. Each workflow is started under a workflow ID derived from the
// file's store path, so re-running this process for the same period is a
// no-op against any file whose workflow is already running or completed.
func (d *Driver) ProcessAllFilingIndex(ctx context.Context, opts ProcessAllFilingIndexOpts) (int, error) {
	log := zap.L().With(zap.String("component", "edgar.driver"))

	statuses, err := d.DownloadFilingIndexData(ctx, opts.Year, opts.Quarter, opts.Month)
	if err != nil {
		return 0, err
	}

	var started atomic.Int64
	for _, s := range statuses {
		if opts.NewOnly && s.IsProcessed {
			log.Debug("skipping already-processed filing index", zap.String("storePath", s.StorePath))
			continue
		}

		workflowID := "process-filing-index-" + s.StorePath
		_, err := d.Temporal.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: d.TaskQueue,
		}, orchestrator.ProcessFilingIndexWorkflow, orchestrator.ProcessFilingIndexInput{
			FilePath:       s.StorePath,
			FormTypeFilter: opts.FormTypeFilter,
			StoreRaw:       opts.StoreRaw,
			StoreText:      opts.StoreText,
		})
		if err != nil {
			log.Error("failed to start ProcessFilingIndex workflow", zap.String("storePath", s.StorePath), zap.Error(err))
			continue
		}
		started.Add(1)
		log.Info("started ProcessFilingIndex workflow", zap.String("storePath", s.StorePath), zap.String("workflowID", workflowID))
	}

	return int(started.Load()), nil
}

// SearchFilingDocumentsOpts configures SearchFilingDocuments.
type SearchFilingDocumentsOpts struct {
	Terms          []string
	FormTypeFilter []string
	CaseSensitive  bool
	Token          bool
	Stem           bool
}

// SearchFilingDocuments creates a SearchQuery and its terms, then starts one
// SearchDocumentWorkflow per matching FilingDocument without waiting for any
// of them to complete. Mirrors the original's search_filing_documents/
// search_filing_document_sha1 split: query setup happens once, then one
// task per document does the actual counting.
func (d *Driver) SearchFilingDocuments(ctx context.Context, opts SearchFilingDocumentsOpts) (queryID int64, started int, err error) {
	log := zap.L().With(zap.String("component", "edgar.driver"))

	query, err := d.Catalogue.CreateSearchQuery(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "driver: create search query")
	}
	for _, term := range opts.Terms {
		if _, err := d.Catalogue.CreateSearchQueryTerm(ctx, query.ID, term); err != nil {
			return query.ID, 0, eris.Wrapf(err, "driver: create search query term %q", term)
		}
	}

	documents, err := d.Catalogue.ListDocumentsForSearch(ctx, opts.FormTypeFilter)
	if err != nil {
		return query.ID, 0, eris.Wrap(err, "driver: list documents for search")
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, doc := range documents {
		doc := doc
		g.Go(func() error {
			workflowID := fmt.Sprintf("search-document-%d-%s", query.ID, doc.SHA1)
			_, err := d.Temporal.ExecuteWorkflow(gctx, temporalclient.StartWorkflowOptions{
				ID:        workflowID,
				TaskQueue: d.TaskQueue,
			}, orchestrator.SearchDocumentWorkflow, orchestrator.SearchDocumentInput{
				SHA1:          doc.SHA1,
				Terms:         opts.Terms,
				QueryID:       query.ID,
				DocumentID:    doc.ID,
				CaseSensitive: opts.CaseSensitive,
				Token:         opts.Token,
				Stem:          opts.Stem,
			})
			if err != nil {
				log.Error("failed to start SearchDocument workflow", zap.String("sha1", doc.SHA1), zap.Error(err))
				return nil
			}
			count.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("started SearchDocument workflows", zap.Int64("queryID", query.ID), zap.Int64("started", count.Load()), zap.Int("termCount", len(opts.Terms)))
	return query.ID, int(count.Load()), nil
}

func (d *Driver) listIndexFiles(ctx context.Context, year, quarter, month *int) ([]string, error) {
	if year == nil {
		return d.EDGAR.ListIndex(ctx, 1993, 2100)
	}
	if month != nil {
		return d.EDGAR.ListIndexByMonth(ctx, *year, *month)
	}
	if quarter != nil {
		return d.EDGAR.ListIndexByQuarter(ctx, *year, *quarter)
	}
	return d.EDGAR.ListIndexByYear(ctx, *year)
}

// filingIndexStorePath mirrors an EDGAR archive path verbatim into the
// store: EDGAR already serves its index tree under
// /Archives/edgar/full-index/…, so stripping the /Archives/ prefix alone
// reproduces the canonical edgar/full-index/… object layout.
func filingIndexStorePath(edgarPath string) string {
	return strings.TrimPrefix(edgarPath, "/Archives/")
}

// EnvDriverConfig reads EDGAR_YEAR/EDGAR_QUARTER/EDGAR_MONTH/FORM_TYPES per
// §6's driver-invocation contract, used by cmd/edgar*.go to build
// ProcessAllFilingIndexOpts from the process environment.
func EnvDriverConfig() (year, quarter, month *int, formTypes []string) {
	year = envInt("EDGAR_YEAR")
	quarter = envInt("EDGAR_QUARTER")
	month = envInt("EDGAR_MONTH")
	if v := os.Getenv("FORM_TYPES"); v != "" {
		for _, f := range strings.Split(v, ",") {
			formTypes = append(formTypes, strings.TrimSpace(f))
		}
	}
	return year, quarter, month, formTypes
}

func envInt(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int(r-'0')
	}
	return &n
}
