package catalogue

import (
	"context"
	"time"
)

// Catalogue defines the persistence interface over the EDGAR entity model.
// Every Create/Resolve operation is keyed by the idempotency key named in
// its doc comment: concurrent callers racing to create the same logical
// row must all observe the single winning row, never a duplicate.
type Catalogue interface {
	// ResolveCompany returns the existing Company for cik, creating it
	// (with lastName) if absent. Idempotency key: CIK.
	ResolveCompany(ctx context.Context, cik int64, lastName string) (*Company, error)

	// ResolveCompanyInfo returns the existing CompanyInfo for
	// (cik, date), creating it from snapshot if absent. Idempotency key:
	// (company, date).
	ResolveCompanyInfo(ctx context.Context, cik int64, date time.Time, snapshot CompanyInfo) (*CompanyInfo, error)

	// UpsertFilingIndex creates or updates the FilingIndex row for url.
	// Idempotency key: URL.
	UpsertFilingIndex(ctx context.Context, idx FilingIndex) (*FilingIndex, error)
	GetFilingIndex(ctx context.Context, url string) (*FilingIndex, error)

	// GetFilingByStorePath returns the Filing(s) at storePath. More than
	// one row signals an ambiguity the caller must log and skip rather
	// than silently repair.
	GetFilingByStorePath(ctx context.Context, storePath string) ([]Filing, error)

	// CreateFiling inserts a new Filing row. Idempotency key: StorePath.
	CreateFiling(ctx context.Context, f Filing) (*Filing, error)
	UpdateFilingStatus(ctx context.Context, filingID int64, isProcessed, isError bool) error

	// CreateFilingDocument inserts a new FilingDocument row. Idempotency
	// key: (FilingID, Sequence).
	CreateFilingDocument(ctx context.Context, d FilingDocument) (*FilingDocument, error)
	ListFilingDocuments(ctx context.Context, filingID int64) ([]FilingDocument, error)

	// ListDocumentsForSearch returns every FilingDocument whose owning
	// Filing's form type is in formTypes (all form types, if empty).
	// Drives the search fan-out: one SearchDocument task per result.
	ListDocumentsForSearch(ctx context.Context, formTypes []string) ([]FilingDocument, error)

	// CreateSearchQuery and CreateSearchQueryTerm set up a query's owned
	// terms; RecordSearchQueryResult persists a result row for a term
	// with a non-negative count. Only terms with count > 0 should be
	// recorded (the caller enforces this, not the Catalogue).
	CreateSearchQuery(ctx context.Context) (*SearchQuery, error)
	CreateSearchQueryTerm(ctx context.Context, queryID int64, term string) (*SearchQueryTerm, error)
	RecordSearchQueryResult(ctx context.Context, r SearchQueryResult) (*SearchQueryResult, error)

	// UpsertCompanyIndustryXref records a historical SIC/CIK
	// cross-reference row scraped from EDGAR's CFIA tables.
	UpsertCompanyIndustryXref(ctx context.Context, x CompanyIndustryXref) (*CompanyIndustryXref, error)

	Migrate(ctx context.Context) error
	Close() error
}
