package orchestrator

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/envelope"
)

var defaultActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    5,
	},
}

// ProcessFilingIndexWorkflow implements the ProcessFilingIndex task: it
// downloads and parses the index at FilePath, then dispatches a
// ProcessFilingWorkflow child for every row not already in the catalogue.
// Replaying this workflow with the same FilePath converges on the same
// catalogue state because every step below is keyed by idempotency, not by
// workflow history.
func ProcessFilingIndexWorkflow(ctx workflow.Context, in ProcessFilingIndexInput) (ProcessFilingIndexResult, error) {
	log := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions)

	var a *Activities
	var rows []indexRowTask
	if err := workflow.ExecuteActivity(ctx, a.FetchOrCacheIndex, in.FilePath).Get(ctx, &rows); err != nil {
		return ProcessFilingIndexResult{}, err
	}

	result := ProcessFilingIndexResult{TotalRecordCount: len(rows)}

	for _, row := range rows {
		if !passesFormTypeFilter(row.FormType, in.FormTypeFilter) {
			continue
		}

		storePath := CanonicalFilingPath(row.CIK, row.FileName)

		var existing []catalogue.Filing
		if err := workflow.ExecuteActivity(ctx, a.GetFilingByStorePath, storePath).Get(ctx, &existing); err != nil {
			result.BadRecordCount++
			log.Error("lookup failed, recording filing error", "fileName", row.FileName, "error", err)
			_ = workflow.ExecuteActivity(ctx, a.CreateFilingError, row, storePath).Get(ctx, nil)
			continue
		}

		switch len(existing) {
		case 0:
			// not yet processed; fall through
		case 1:
			continue
		default:
			log.Warn("ambiguous filing at store path, skipping", "storePath", storePath, "count", len(existing))
			continue
		}

		envelopePath := "/Archives/" + row.FileName
		var envelopeBytes []byte
		if err := workflow.ExecuteActivity(ctx, a.EnsureEnvelope, storePath, envelopePath).Get(ctx, &envelopeBytes); err != nil {
			result.BadRecordCount++
			log.Error("envelope fetch failed, recording filing error", "storePath", storePath, "error", err)
			_ = workflow.ExecuteActivity(ctx, a.CreateFilingError, row, storePath).Get(ctx, nil)
			continue
		}

		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "process-filing-" + storePath,
		})
		var childResult ProcessFilingResult
		if err := workflow.ExecuteChildWorkflow(childCtx, ProcessFilingWorkflow, ProcessFilingInput{
			StorePath:     storePath,
			EnvelopeBytes: envelopeBytes,
			StoreRaw:      in.StoreRaw,
			StoreText:     in.StoreText,
		}).Get(ctx, &childResult); err != nil {
			result.BadRecordCount++
			log.Error("child ProcessFiling failed", "storePath", storePath, "error", err)
			continue
		}

		result.ProcessedCount++
	}

	if err := workflow.ExecuteActivity(ctx, a.UpsertFilingIndexResult, in.FilePath, result.TotalRecordCount, result.BadRecordCount).Get(ctx, nil); err != nil {
		return result, err
	}

	return result, nil
}

func passesFormTypeFilter(formType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == formType {
			return true
		}
	}
	return false
}

// ProcessFilingWorkflow implements the ProcessFiling task: parse the
// envelope, resolve the Company/CompanyInfo, persist the Filing and its
// documents, upload content-addressed artifacts, and mark the Filing
// processed. Short-circuits if StorePath already has a Filing row.
func ProcessFilingWorkflow(ctx workflow.Context, in ProcessFilingInput) (ProcessFilingResult, error) {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions)

	var a *Activities

	var existing []catalogue.Filing
	if err := workflow.ExecuteActivity(ctx, a.GetFilingByStorePath, in.StorePath).Get(ctx, &existing); err != nil {
		return ProcessFilingResult{}, err
	}
	if len(existing) > 0 {
		return ProcessFilingResult{FilingID: existing[0].ID, IsProcessed: existing[0].IsProcessed, IsError: existing[0].IsError}, nil
	}

	envelopeBytes := in.EnvelopeBytes
	if envelopeBytes == nil {
		if err := workflow.ExecuteActivity(ctx, a.EnsureEnvelope, in.StorePath, "/Archives/"+in.StorePath).Get(ctx, &envelopeBytes); err != nil {
			return ProcessFilingResult{}, err
		}
	}

	var parsed envelope.Filing
	if err := workflow.ExecuteActivity(ctx, a.ParseEnvelope, envelopeBytes).Get(ctx, &parsed); err != nil {
		// Header carried no CIK: abandon without persisting, per §4.6.
		return ProcessFilingResult{IsError: true}, nil
	}

	var filing catalogue.Filing
	if err := workflow.ExecuteActivity(ctx, a.PersistFiling, in.StorePath, envelopeBytes, parsed).Get(ctx, &filing); err != nil {
		return ProcessFilingResult{IsError: true}, err
	}

	if err := workflow.ExecuteActivity(ctx, a.PersistDocumentsAndArtifacts, filing.ID, parsed.Documents, in.StoreRaw, in.StoreText).Get(ctx, nil); err != nil {
		_ = workflow.ExecuteActivity(ctx, a.UpdateFilingStatus, filing.ID, false, true).Get(ctx, nil)
		return ProcessFilingResult{FilingID: filing.ID, IsError: true}, err
	}

	if err := workflow.ExecuteActivity(ctx, a.UpdateFilingStatus, filing.ID, true, false).Get(ctx, nil); err != nil {
		return ProcessFilingResult{FilingID: filing.ID, IsError: true}, err
	}

	return ProcessFilingResult{FilingID: filing.ID, IsProcessed: true}, nil
}

// SearchDocumentWorkflow implements the SearchDocument task as a single
// activity invocation; the logic lives in Activities.SearchDocument since it
// has no durable, multi-step shape worth modelling as workflow code.
func SearchDocumentWorkflow(ctx workflow.Context, in SearchDocumentInput) (SearchDocumentResult, error) {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions)
	var a *Activities
	var result SearchDocumentResult
	err := workflow.ExecuteActivity(ctx, a.SearchDocument, in).Get(ctx, &result)
	return result, err
}

// ExtractDocumentDataWorkflow implements the ExtractDocumentData task: the
// asynchronous counterpart of ProcessFiling's inline storeText path.
func ExtractDocumentDataWorkflow(ctx workflow.Context, in ExtractDocumentDataInput) (ExtractDocumentDataResult, error) {
	ctx = workflow.WithActivityOptions(ctx, defaultActivityOptions)
	var a *Activities
	var stored bool
	err := workflow.ExecuteActivity(ctx, a.ExtractDocumentData, in.SHA1).Get(ctx, &stored)
	return ExtractDocumentDataResult{TextStored: stored}, err
}
