// Package catalogue persists the EDGAR domain entities: companies, their
// point-in-time snapshots, filing indices, filings, filing documents, and
// search artifacts.
package catalogue

import "time"

// Company is identified by CIK. Its denormalised LastName is set when the
// row is first created; ResolveCompany does not overwrite it afterwards.
type Company struct {
	CIK      int64
	LastName string
}

// CompanyInfo is a point-in-time snapshot of a Company's registration
// details. At most one snapshot exists per (CompanyCIK, Date) pair; once
// created it is never mutated.
type CompanyInfo struct {
	ID                 int64
	CompanyCIK         int64
	Date               time.Time
	Name               string
	SIC                string
	StateLocation      string
	StateIncorporation string
	BusinessAddress    string
}

// FilingIndex is identified by its canonical EDGAR URL. Mutated only to
// transition to a terminal processed state.
type FilingIndex struct {
	URL               string
	DatePublished     time.Time
	DateDownloaded    *time.Time
	TotalRecordCount  int
	BadRecordCount    int
	IsProcessed       bool
	IsError           bool
}

// Filing exists once at least one parse attempt has occurred for its
// envelope. StorePath is unique and serves as its idempotency key.
type Filing struct {
	ID              int64
	FormType        string
	AccessionNumber string
	DateFiled       time.Time
	CompanyCIK      int64
	SHA1            string
	StorePath       string
	DocumentCount   int
	IsProcessed     bool
	IsError         bool
}

// FilingDocument is unique per (FilingID, Sequence). StartPos/EndPos are
// byte offsets into the parent envelope and must satisfy
// 0 <= StartPos < EndPos <= len(envelope).
type FilingDocument struct {
	ID          int64
	FilingID    int64
	Sequence    int
	Type        string
	FileName    string
	ContentType string
	Description string
	SHA1        string
	StartPos    int
	EndPos      int
	IsProcessed bool
	IsError     bool
}

// SearchQuery owns a set of SearchQueryTerms and accumulates
// SearchQueryResults.
type SearchQuery struct {
	ID        int64
	CreatedAt time.Time
}

// SearchQueryTerm is unique per (QueryID, Term).
type SearchQueryTerm struct {
	ID      int64
	QueryID int64
	Term    string
}

// SearchQueryResult is one row per (QueryID, DocumentID, Term), with a
// non-negative occurrence count.
type SearchQueryResult struct {
	ID         int64
	QueryID    int64
	DocumentID int64
	Term       string
	Count      int
}

// CompanyIndustryXref is a historical SIC/CIK cross-reference row scraped
// from EDGAR's CFIA tables. Supplements the core Data Model entities with
// the industry-classification history the original crawler maintained
// alongside the catalogue proper.
type CompanyIndustryXref struct {
	ID         int64
	CompanyCIK int64
	SIC        string
	EffectiveDate time.Time
}
