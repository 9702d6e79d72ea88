package catalogue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// pgxIface is the slice of *pgxpool.Pool this package depends on. Declaring
// it locally (rather than taking *pgxpool.Pool directly) lets tests swap in
// a pgxmock.PgxPoolIface without the production type ever depending on the
// test double.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCatalogue implements Catalogue using pgxpool.
type PostgresCatalogue struct {
	pool pgxIface
}

// NewPostgresCatalogue creates a PostgresCatalogue with a connection pool.
func NewPostgresCatalogue(ctx context.Context, connString string) (*PostgresCatalogue, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "catalogue/postgres: ping")
	}
	return &PostgresCatalogue{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS edgar_company (
	cik       BIGINT PRIMARY KEY,
	last_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edgar_company_info (
	id                   BIGSERIAL PRIMARY KEY,
	company_cik          BIGINT NOT NULL REFERENCES edgar_company(cik),
	date                 DATE NOT NULL,
	name                 TEXT NOT NULL,
	sic                  TEXT,
	state_location       TEXT,
	state_incorporation  TEXT,
	business_address     TEXT,
	UNIQUE (company_cik, date)
);

CREATE TABLE IF NOT EXISTS edgar_filing_index (
	url                 TEXT PRIMARY KEY,
	date_published      DATE NOT NULL,
	date_downloaded     DATE,
	total_record_count  INTEGER NOT NULL DEFAULT 0,
	bad_record_count    INTEGER NOT NULL DEFAULT 0,
	is_processed        BOOLEAN NOT NULL DEFAULT false,
	is_error            BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS edgar_filing (
	id               BIGSERIAL PRIMARY KEY,
	form_type        TEXT NOT NULL,
	accession_number TEXT NOT NULL,
	date_filed       DATE NOT NULL,
	company_cik      BIGINT NOT NULL REFERENCES edgar_company(cik),
	sha1             TEXT NOT NULL,
	store_path       TEXT NOT NULL UNIQUE,
	document_count   INTEGER NOT NULL DEFAULT 0,
	is_processed     BOOLEAN NOT NULL DEFAULT false,
	is_error         BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS edgar_filing_document (
	id           BIGSERIAL PRIMARY KEY,
	filing_id    BIGINT NOT NULL REFERENCES edgar_filing(id),
	sequence     INTEGER NOT NULL,
	type         TEXT,
	file_name    TEXT,
	content_type TEXT,
	description  TEXT,
	sha1         TEXT NOT NULL,
	start_pos    INTEGER NOT NULL,
	end_pos      INTEGER NOT NULL,
	is_processed BOOLEAN NOT NULL DEFAULT false,
	is_error     BOOLEAN NOT NULL DEFAULT false,
	UNIQUE (filing_id, sequence),
	CHECK (start_pos >= 0 AND start_pos < end_pos)
);

CREATE TABLE IF NOT EXISTS edgar_search_query (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS edgar_search_query_term (
	id       BIGSERIAL PRIMARY KEY,
	query_id BIGINT NOT NULL REFERENCES edgar_search_query(id),
	term     TEXT NOT NULL,
	UNIQUE (query_id, term)
);

CREATE TABLE IF NOT EXISTS edgar_search_query_result (
	id          BIGSERIAL PRIMARY KEY,
	query_id    BIGINT NOT NULL REFERENCES edgar_search_query(id),
	document_id BIGINT NOT NULL REFERENCES edgar_filing_document(id),
	term        TEXT NOT NULL,
	count       INTEGER NOT NULL CHECK (count >= 0),
	UNIQUE (query_id, document_id, term)
);

CREATE TABLE IF NOT EXISTS edgar_company_industry_xref (
	id             BIGSERIAL PRIMARY KEY,
	company_cik    BIGINT NOT NULL REFERENCES edgar_company(cik),
	sic            TEXT NOT NULL,
	effective_date DATE NOT NULL,
	UNIQUE (company_cik, sic, effective_date)
);
`

func (c *PostgresCatalogue) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "catalogue/postgres: migrate")
}

func (c *PostgresCatalogue) Close() error {
	c.pool.Close()
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the signal that a racing writer already won.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (c *PostgresCatalogue) ResolveCompany(ctx context.Context, cik int64, lastName string) (*Company, error) {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO edgar_company (cik, last_name) VALUES ($1, $2) ON CONFLICT (cik) DO NOTHING`,
		cik, lastName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: resolve company %d", cik)
	}

	var out Company
	err = c.pool.QueryRow(ctx,
		`SELECT cik, last_name FROM edgar_company WHERE cik = $1`, cik,
	).Scan(&out.CIK, &out.LastName)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: get company %d", cik)
	}
	return &out, nil
}

func (c *PostgresCatalogue) ResolveCompanyInfo(ctx context.Context, cik int64, date time.Time, snapshot CompanyInfo) (*CompanyInfo, error) {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO edgar_company_info (company_cik, date, name, sic, state_location, state_incorporation, business_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (company_cik, date) DO NOTHING`,
		cik, date, snapshot.Name, snapshot.SIC, snapshot.StateLocation, snapshot.StateIncorporation, snapshot.BusinessAddress,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: resolve company_info (%d, %s)", cik, date)
	}

	var out CompanyInfo
	err = c.pool.QueryRow(ctx,
		`SELECT id, company_cik, date, name, sic, state_location, state_incorporation, business_address
		 FROM edgar_company_info WHERE company_cik = $1 AND date = $2`,
		cik, date,
	).Scan(&out.ID, &out.CompanyCIK, &out.Date, &out.Name, &out.SIC, &out.StateLocation, &out.StateIncorporation, &out.BusinessAddress)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: get company_info (%d, %s)", cik, date)
	}
	return &out, nil
}

func (c *PostgresCatalogue) UpsertFilingIndex(ctx context.Context, idx FilingIndex) (*FilingIndex, error) {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO edgar_filing_index (url, date_published, date_downloaded, total_record_count, bad_record_count, is_processed, is_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url) DO UPDATE SET
			date_downloaded = EXCLUDED.date_downloaded,
			total_record_count = EXCLUDED.total_record_count,
			bad_record_count = EXCLUDED.bad_record_count,
			is_processed = EXCLUDED.is_processed,
			is_error = EXCLUDED.is_error`,
		idx.URL, idx.DatePublished, idx.DateDownloaded, idx.TotalRecordCount, idx.BadRecordCount, idx.IsProcessed, idx.IsError,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: upsert filing_index %q", idx.URL)
	}
	return c.GetFilingIndex(ctx, idx.URL)
}

func (c *PostgresCatalogue) GetFilingIndex(ctx context.Context, url string) (*FilingIndex, error) {
	var out FilingIndex
	err := c.pool.QueryRow(ctx,
		`SELECT url, date_published, date_downloaded, total_record_count, bad_record_count, is_processed, is_error
		 FROM edgar_filing_index WHERE url = $1`, url,
	).Scan(&out.URL, &out.DatePublished, &out.DateDownloaded, &out.TotalRecordCount, &out.BadRecordCount, &out.IsProcessed, &out.IsError)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: get filing_index %q", url)
	}
	return &out, nil
}

func (c *PostgresCatalogue) GetFilingByStorePath(ctx context.Context, storePath string) ([]Filing, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, form_type, accession_number, date_filed, company_cik, sha1, store_path, document_count, is_processed, is_error
		 FROM edgar_filing WHERE store_path = $1`, storePath,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: get filing by store_path %q", storePath)
	}
	defer rows.Close()

	var out []Filing
	for rows.Next() {
		var f Filing
		if err := rows.Scan(&f.ID, &f.FormType, &f.AccessionNumber, &f.DateFiled, &f.CompanyCIK, &f.SHA1, &f.StorePath, &f.DocumentCount, &f.IsProcessed, &f.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/postgres: scan filing")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/postgres: iterate filings")
}

func (c *PostgresCatalogue) CreateFiling(ctx context.Context, f Filing) (*Filing, error) {
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_filing (form_type, accession_number, date_filed, company_cik, sha1, store_path, document_count, is_processed, is_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		f.FormType, f.AccessionNumber, f.DateFiled, f.CompanyCIK, f.SHA1, f.StorePath, f.DocumentCount, f.IsProcessed, f.IsError,
	).Scan(&f.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := c.GetFilingByStorePath(ctx, f.StorePath)
			if getErr != nil {
				return nil, getErr
			}
			if len(existing) > 0 {
				return &existing[0], nil
			}
		}
		return nil, eris.Wrapf(err, "catalogue/postgres: create filing %q", f.StorePath)
	}
	return &f, nil
}

func (c *PostgresCatalogue) UpdateFilingStatus(ctx context.Context, filingID int64, isProcessed, isError bool) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE edgar_filing SET is_processed = $1, is_error = $2 WHERE id = $3`,
		isProcessed, isError, filingID,
	)
	if err != nil {
		return eris.Wrapf(err, "catalogue/postgres: update filing status %d", filingID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("catalogue/postgres: filing not found: %d", filingID)
	}
	return nil
}

func (c *PostgresCatalogue) CreateFilingDocument(ctx context.Context, d FilingDocument) (*FilingDocument, error) {
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_filing_document (filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		d.FilingID, d.Sequence, d.Type, d.FileName, d.ContentType, d.Description, d.SHA1, d.StartPos, d.EndPos, d.IsProcessed, d.IsError,
	).Scan(&d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := c.getFilingDocumentBySequence(ctx, d.FilingID, d.Sequence)
			if getErr != nil {
				return nil, getErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, eris.Wrapf(err, "catalogue/postgres: create filing_document (%d, %d)", d.FilingID, d.Sequence)
	}
	return &d, nil
}

func (c *PostgresCatalogue) getFilingDocumentBySequence(ctx context.Context, filingID int64, sequence int) (*FilingDocument, error) {
	var d FilingDocument
	err := c.pool.QueryRow(ctx,
		`SELECT id, filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error
		 FROM edgar_filing_document WHERE filing_id = $1 AND sequence = $2`,
		filingID, sequence,
	).Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: get filing_document (%d, %d)", filingID, sequence)
	}
	return &d, nil
}

func (c *PostgresCatalogue) ListFilingDocuments(ctx context.Context, filingID int64) ([]FilingDocument, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error
		 FROM edgar_filing_document WHERE filing_id = $1 ORDER BY sequence`, filingID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: list filing_documents %d", filingID)
	}
	defer rows.Close()

	var out []FilingDocument
	for rows.Next() {
		var d FilingDocument
		if err := rows.Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/postgres: scan filing_document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/postgres: iterate filing_documents")
}

func (c *PostgresCatalogue) ListDocumentsForSearch(ctx context.Context, formTypes []string) ([]FilingDocument, error) {
	query := `SELECT d.id, d.filing_id, d.sequence, d.type, d.file_name, d.content_type, d.description, d.sha1, d.start_pos, d.end_pos, d.is_processed, d.is_error
		FROM edgar_filing_document d JOIN edgar_filing f ON f.id = d.filing_id`
	args := []any{}
	if len(formTypes) > 0 {
		query += ` WHERE f.form_type = ANY($1)`
		args = append(args, formTypes)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/postgres: list documents for search")
	}
	defer rows.Close()

	var out []FilingDocument
	for rows.Next() {
		var d FilingDocument
		if err := rows.Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/postgres: scan filing_document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/postgres: iterate documents for search")
}

func (c *PostgresCatalogue) CreateSearchQuery(ctx context.Context) (*SearchQuery, error) {
	var q SearchQuery
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_search_query DEFAULT VALUES RETURNING id, created_at`,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/postgres: create search_query")
	}
	return &q, nil
}

func (c *PostgresCatalogue) CreateSearchQueryTerm(ctx context.Context, queryID int64, term string) (*SearchQueryTerm, error) {
	t := SearchQueryTerm{QueryID: queryID, Term: term}
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_search_query_term (query_id, term) VALUES ($1, $2)
		 ON CONFLICT (query_id, term) DO UPDATE SET term = EXCLUDED.term
		 RETURNING id`,
		queryID, term,
	).Scan(&t.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: create search_query_term (%d, %q)", queryID, term)
	}
	return &t, nil
}

func (c *PostgresCatalogue) RecordSearchQueryResult(ctx context.Context, r SearchQueryResult) (*SearchQueryResult, error) {
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_search_query_result (query_id, document_id, term, count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (query_id, document_id, term) DO UPDATE SET count = EXCLUDED.count
		 RETURNING id`,
		r.QueryID, r.DocumentID, r.Term, r.Count,
	).Scan(&r.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: record search_query_result (%d, %d, %q)", r.QueryID, r.DocumentID, r.Term)
	}
	return &r, nil
}

func (c *PostgresCatalogue) UpsertCompanyIndustryXref(ctx context.Context, x CompanyIndustryXref) (*CompanyIndustryXref, error) {
	err := c.pool.QueryRow(ctx,
		`INSERT INTO edgar_company_industry_xref (company_cik, sic, effective_date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (company_cik, sic, effective_date) DO UPDATE SET sic = EXCLUDED.sic
		 RETURNING id`,
		x.CompanyCIK, x.SIC, x.EffectiveDate,
	).Scan(&x.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/postgres: upsert company_industry_xref %d", x.CompanyCIK)
	}
	return &x, nil
}
