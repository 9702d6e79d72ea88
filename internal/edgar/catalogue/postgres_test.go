package catalogue

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresCatalogue(t *testing.T) (*PostgresCatalogue, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &PostgresCatalogue{pool: mock}, mock
}

func TestPostgresCatalogue_ResolveCompany(t *testing.T) {
	c, mock := newMockPostgresCatalogue(t)

	mock.ExpectExec(`INSERT INTO edgar_company`).
		WithArgs(int64(320193), "APPLE INC").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT cik, last_name FROM edgar_company WHERE cik = \$1`).
		WithArgs(int64(320193)).
		WillReturnRows(pgxmock.NewRows([]string{"cik", "last_name"}).AddRow(int64(320193), "APPLE INC"))

	out, err := c.ResolveCompany(context.Background(), 320193, "APPLE INC")
	require.NoError(t, err)
	assert.Equal(t, "APPLE INC", out.LastName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogue_GetFilingIndex_NotFound(t *testing.T) {
	c, mock := newMockPostgresCatalogue(t)

	mock.ExpectQuery(`SELECT url, date_published, date_downloaded, total_record_count, bad_record_count, is_processed, is_error`).
		WithArgs("https://example.test/form.idx").
		WillReturnError(pgx.ErrNoRows)

	_, err := c.GetFilingIndex(context.Background(), "https://example.test/form.idx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get filing_index")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogue_CreateFiling_RaceFallsBackToExisting(t *testing.T) {
	c, mock := newMockPostgresCatalogue(t)

	f := Filing{
		FormType:   "10-K",
		CompanyCIK: 1,
		SHA1:       "x",
		StorePath:  "edgar/data/1/f.txt",
		DateFiled:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`INSERT INTO edgar_filing`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	mock.ExpectQuery(`SELECT id, form_type, accession_number, date_filed, company_cik, sha1, store_path, document_count, is_processed, is_error`).
		WithArgs(f.StorePath).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "form_type", "accession_number", "date_filed", "company_cik", "sha1", "store_path", "document_count", "is_processed", "is_error",
		}).AddRow(int64(7), "10-K", "", f.DateFiled, int64(1), "x", f.StorePath, 0, false, false))

	out, err := c.CreateFiling(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.ID, "the losing writer must observe the winner's row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCatalogue_ListDocumentsForSearch_FiltersByFormType(t *testing.T) {
	c, mock := newMockPostgresCatalogue(t)

	mock.ExpectQuery(`SELECT d\.id, d\.filing_id.*FROM edgar_filing_document d JOIN edgar_filing f.*WHERE f\.form_type = ANY\(\$1\)`).
		WithArgs([]string{"10-K"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "filing_id", "sequence", "type", "file_name", "content_type", "description", "sha1", "start_pos", "end_pos", "is_processed", "is_error",
		}).AddRow(int64(1), int64(1), 1, "", "", "", "", "doc-10k", 0, 0, false, false))

	out, err := c.ListDocumentsForSearch(context.Background(), []string{"10-K"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "doc-10k", out[0].SHA1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
