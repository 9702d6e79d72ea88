// Package orchestrator dispatches the EDGAR ingestion tasks as named,
// versioned Temporal workflows and activities. Idempotency keys travel in
// the workflow/activity input payloads defined here; none of it lives in
// engine-managed state, so a replayed or retried workflow always converges
// on the same catalogue rows.
package orchestrator

// ProcessFilingIndexInput is the input to ProcessFilingIndexWorkflow.
type ProcessFilingIndexInput struct {
	FilePath       string
	FormTypeFilter []string
	StoreRaw       bool
	StoreText      bool
}

// ProcessFilingIndexResult summarizes a completed index run.
type ProcessFilingIndexResult struct {
	TotalRecordCount int
	BadRecordCount   int
	ProcessedCount   int
}

// ProcessFilingInput is the input to ProcessFilingWorkflow. EnvelopeBytes is
// optional: when nil, the activity fetches it from the blob store (or
// EDGAR, on a store miss) keyed by StorePath.
type ProcessFilingInput struct {
	StorePath     string
	EnvelopeBytes []byte
	StoreRaw      bool
	StoreText     bool
}

// ProcessFilingResult reports the outcome of a ProcessFiling run.
type ProcessFilingResult struct {
	FilingID    int64
	IsProcessed bool
	IsError     bool
}

// SearchDocumentInput is the input to SearchDocumentWorkflow.
type SearchDocumentInput struct {
	SHA1          string
	Terms         []string
	QueryID       int64
	DocumentID    int64
	CaseSensitive bool
	Token         bool
	Stem          bool
}

// SearchDocumentResult reports term occurrence counts, keyed by term.
type SearchDocumentResult struct {
	Counts map[string]int
}

// ExtractDocumentDataInput is the input to ExtractDocumentDataWorkflow: the
// asynchronous counterpart of ProcessFiling's inline StoreText path, used
// when extraction is deferred rather than performed synchronously.
type ExtractDocumentDataInput struct {
	SHA1 string
}

// ExtractDocumentDataResult reports whether extracted text was persisted.
type ExtractDocumentDataResult struct {
	TextStored bool
}

// indexRowTask is the per-row unit of work fanned out by
// ProcessFilingIndexWorkflow, carrying enough of the parsed index row to
// compute a canonical filing_path and drive ProcessFiling.
type indexRowTask struct {
	FormType    string
	CIK         int64
	CompanyName string
	DateFiled   string
	FileName    string
}
