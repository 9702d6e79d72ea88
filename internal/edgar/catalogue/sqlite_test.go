package catalogue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteCatalogue(t *testing.T) *SQLiteCatalogue {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalogue.db")
	c, err := NewSQLiteCatalogue(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

func TestSQLiteCatalogue_ResolveCompany_Idempotent(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	first, err := c.ResolveCompany(ctx, 320193, "APPLE INC")
	require.NoError(t, err)
	assert.Equal(t, int64(320193), first.CIK)

	second, err := c.ResolveCompany(ctx, 320193, "APPLE INC (RENAMED)")
	require.NoError(t, err)
	assert.Equal(t, "APPLE INC", second.LastName, "re-resolving an existing CIK must return the winner's row, not overwrite it")
}

func TestSQLiteCatalogue_ResolveCompanyInfo_OnePerCompanyDate(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	info, err := c.ResolveCompanyInfo(ctx, 1, date, CompanyInfo{Name: "ACME CORP", SIC: "7372"})
	require.NoError(t, err)
	assert.Equal(t, "7372", info.SIC)

	again, err := c.ResolveCompanyInfo(ctx, 1, date, CompanyInfo{Name: "ACME CORP", SIC: "9999"})
	require.NoError(t, err)
	assert.Equal(t, "7372", again.SIC, "snapshot is created once and never mutated")
}

func TestSQLiteCatalogue_CreateFiling_IdempotentByStorePath(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)

	f := Filing{
		FormType:        "10-K",
		AccessionNumber: "0000000001-24-000001",
		DateFiled:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CompanyCIK:      1,
		SHA1:            "deadbeef",
		StorePath:       "edgar/data/1/0000000001-24-000001.txt",
	}

	created, err := c.CreateFiling(ctx, f)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	again, err := c.CreateFiling(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID, "racing creates at the same store_path must collapse to one row")

	byPath, err := c.GetFilingByStorePath(ctx, f.StorePath)
	require.NoError(t, err)
	require.Len(t, byPath, 1)
}

func TestSQLiteCatalogue_FilingDocument_IdempotentBySequence(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)
	filing, err := c.CreateFiling(ctx, Filing{
		FormType: "10-K", CompanyCIK: 1, SHA1: "x", StorePath: "edgar/data/1/f.txt",
		DateFiled: time.Now().UTC(),
	})
	require.NoError(t, err)

	doc := FilingDocument{FilingID: filing.ID, Sequence: 1, SHA1: "docsha1", StartPos: 0, EndPos: 100}
	first, err := c.CreateFilingDocument(ctx, doc)
	require.NoError(t, err)

	second, err := c.CreateFilingDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	docs, err := c.ListFilingDocuments(ctx, filing.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSQLiteCatalogue_ListDocumentsForSearch_FiltersByFormType(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)

	tenK, err := c.CreateFiling(ctx, Filing{
		FormType: "10-K", CompanyCIK: 1, SHA1: "a", StorePath: "edgar/data/1/10k.txt", DateFiled: time.Now().UTC(),
	})
	require.NoError(t, err)
	eightK, err := c.CreateFiling(ctx, Filing{
		FormType: "8-K", CompanyCIK: 1, SHA1: "b", StorePath: "edgar/data/1/8k.txt", DateFiled: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = c.CreateFilingDocument(ctx, FilingDocument{FilingID: tenK.ID, Sequence: 1, SHA1: "doc-10k"})
	require.NoError(t, err)
	_, err = c.CreateFilingDocument(ctx, FilingDocument{FilingID: eightK.ID, Sequence: 1, SHA1: "doc-8k"})
	require.NoError(t, err)

	all, err := c.ListDocumentsForSearch(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := c.ListDocumentsForSearch(ctx, []string{"10-K"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "doc-10k", filtered[0].SHA1)
}

func TestSQLiteCatalogue_UpdateFilingStatus_NotFound(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	err := c.UpdateFilingStatus(context.Background(), 999, true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteCatalogue_SearchQueryLifecycle(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)
	filing, err := c.CreateFiling(ctx, Filing{
		FormType: "10-K", CompanyCIK: 1, SHA1: "x", StorePath: "edgar/data/1/f.txt",
		DateFiled: time.Now().UTC(),
	})
	require.NoError(t, err)
	doc, err := c.CreateFilingDocument(ctx, FilingDocument{FilingID: filing.ID, Sequence: 1, SHA1: "s", StartPos: 0, EndPos: 10})
	require.NoError(t, err)

	q, err := c.CreateSearchQuery(ctx)
	require.NoError(t, err)

	term, err := c.CreateSearchQueryTerm(ctx, q.ID, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, "goodwill", term.Term)

	result, err := c.RecordSearchQueryResult(ctx, SearchQueryResult{QueryID: q.ID, DocumentID: doc.ID, Term: "goodwill", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)

	again, err := c.RecordSearchQueryResult(ctx, SearchQueryResult{QueryID: q.ID, DocumentID: doc.ID, Term: "goodwill", Count: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, again.Count)
}

func TestSQLiteCatalogue_UpsertFilingIndex(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	idx := FilingIndex{
		URL:              "https://www.sec.gov/Archives/edgar/full-index/2024/QTR1/form.idx",
		DatePublished:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalRecordCount: 100,
	}
	_, err := c.UpsertFilingIndex(ctx, idx)
	require.NoError(t, err)

	now := time.Now().UTC()
	idx.DateDownloaded = &now
	idx.BadRecordCount = 2
	idx.IsProcessed = true

	got, err := c.UpsertFilingIndex(ctx, idx)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.Equal(t, 2, got.BadRecordCount)
}

func TestSQLiteCatalogue_CompanyIndustryXref(t *testing.T) {
	c := newTestSQLiteCatalogue(t)
	ctx := context.Background()

	_, err := c.ResolveCompany(ctx, 1, "ACME CORP")
	require.NoError(t, err)

	x := CompanyIndustryXref{CompanyCIK: 1, SIC: "7372", EffectiveDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	got, err := c.UpsertCompanyIndustryXref(ctx, x)
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
}
