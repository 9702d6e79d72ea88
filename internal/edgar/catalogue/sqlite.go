package catalogue

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.
)

// SQLiteCatalogue implements Catalogue using modernc.org/sqlite. It is the
// single-process alternative to PostgresCatalogue for local runs and tests.
type SQLiteCatalogue struct {
	db *sql.DB
}

// NewSQLiteCatalogue opens a SQLite database at dsn and configures WAL mode.
func NewSQLiteCatalogue(dsn string) (*SQLiteCatalogue, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: open")
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "catalogue/sqlite: ping")
	}

	return &SQLiteCatalogue{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS edgar_company (
	cik       INTEGER PRIMARY KEY,
	last_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edgar_company_info (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	company_cik         INTEGER NOT NULL REFERENCES edgar_company(cik),
	date                TEXT NOT NULL,
	name                TEXT NOT NULL,
	sic                 TEXT,
	state_location      TEXT,
	state_incorporation TEXT,
	business_address    TEXT,
	UNIQUE (company_cik, date)
);

CREATE TABLE IF NOT EXISTS edgar_filing_index (
	url                TEXT PRIMARY KEY,
	date_published     TEXT NOT NULL,
	date_downloaded    TEXT,
	total_record_count INTEGER NOT NULL DEFAULT 0,
	bad_record_count   INTEGER NOT NULL DEFAULT 0,
	is_processed       INTEGER NOT NULL DEFAULT 0,
	is_error           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS edgar_filing (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	form_type        TEXT NOT NULL,
	accession_number TEXT NOT NULL,
	date_filed       TEXT NOT NULL,
	company_cik      INTEGER NOT NULL REFERENCES edgar_company(cik),
	sha1             TEXT NOT NULL,
	store_path       TEXT NOT NULL UNIQUE,
	document_count   INTEGER NOT NULL DEFAULT 0,
	is_processed     INTEGER NOT NULL DEFAULT 0,
	is_error         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS edgar_filing_document (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	filing_id    INTEGER NOT NULL REFERENCES edgar_filing(id),
	sequence     INTEGER NOT NULL,
	type         TEXT,
	file_name    TEXT,
	content_type TEXT,
	description  TEXT,
	sha1         TEXT NOT NULL,
	start_pos    INTEGER NOT NULL,
	end_pos      INTEGER NOT NULL,
	is_processed INTEGER NOT NULL DEFAULT 0,
	is_error     INTEGER NOT NULL DEFAULT 0,
	UNIQUE (filing_id, sequence),
	CHECK (start_pos >= 0 AND start_pos < end_pos)
);

CREATE TABLE IF NOT EXISTS edgar_search_query (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS edgar_search_query_term (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id INTEGER NOT NULL REFERENCES edgar_search_query(id),
	term     TEXT NOT NULL,
	UNIQUE (query_id, term)
);

CREATE TABLE IF NOT EXISTS edgar_search_query_result (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	query_id    INTEGER NOT NULL REFERENCES edgar_search_query(id),
	document_id INTEGER NOT NULL REFERENCES edgar_filing_document(id),
	term        TEXT NOT NULL,
	count       INTEGER NOT NULL CHECK (count >= 0),
	UNIQUE (query_id, document_id, term)
);

CREATE TABLE IF NOT EXISTS edgar_company_industry_xref (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	company_cik    INTEGER NOT NULL REFERENCES edgar_company(cik),
	sic            TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	UNIQUE (company_cik, sic, effective_date)
);
`

const sqliteDateLayout = "2006-01-02"

func (c *SQLiteCatalogue) Migrate(_ context.Context) error {
	_, err := c.db.Exec(sqliteMigration)
	return eris.Wrap(err, "catalogue/sqlite: migrate")
}

func (c *SQLiteCatalogue) Close() error {
	return eris.Wrap(c.db.Close(), "catalogue/sqlite: close")
}

func (c *SQLiteCatalogue) ResolveCompany(ctx context.Context, cik int64, lastName string) (*Company, error) {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_company (cik, last_name) VALUES (?, ?) ON CONFLICT (cik) DO NOTHING`,
		cik, lastName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: resolve company %d", cik)
	}

	var out Company
	err = c.db.QueryRowContext(ctx, `SELECT cik, last_name FROM edgar_company WHERE cik = ?`, cik).
		Scan(&out.CIK, &out.LastName)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: get company %d", cik)
	}
	return &out, nil
}

func (c *SQLiteCatalogue) ResolveCompanyInfo(ctx context.Context, cik int64, date time.Time, snapshot CompanyInfo) (*CompanyInfo, error) {
	dateStr := date.Format(sqliteDateLayout)
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_company_info (company_cik, date, name, sic, state_location, state_incorporation, business_address)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_cik, date) DO NOTHING`,
		cik, dateStr, snapshot.Name, snapshot.SIC, snapshot.StateLocation, snapshot.StateIncorporation, snapshot.BusinessAddress,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: resolve company_info (%d, %s)", cik, dateStr)
	}

	var out CompanyInfo
	var gotDate string
	err = c.db.QueryRowContext(ctx,
		`SELECT id, company_cik, date, name, sic, state_location, state_incorporation, business_address
		 FROM edgar_company_info WHERE company_cik = ? AND date = ?`,
		cik, dateStr,
	).Scan(&out.ID, &out.CompanyCIK, &gotDate, &out.Name, &out.SIC, &out.StateLocation, &out.StateIncorporation, &out.BusinessAddress)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: get company_info (%d, %s)", cik, dateStr)
	}
	out.Date, err = time.Parse(sqliteDateLayout, gotDate)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: parse company_info date")
	}
	return &out, nil
}

func (c *SQLiteCatalogue) UpsertFilingIndex(ctx context.Context, idx FilingIndex) (*FilingIndex, error) {
	var downloaded any
	if idx.DateDownloaded != nil {
		downloaded = idx.DateDownloaded.Format(sqliteDateLayout)
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_filing_index (url, date_published, date_downloaded, total_record_count, bad_record_count, is_processed, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET
			date_downloaded = excluded.date_downloaded,
			total_record_count = excluded.total_record_count,
			bad_record_count = excluded.bad_record_count,
			is_processed = excluded.is_processed,
			is_error = excluded.is_error`,
		idx.URL, idx.DatePublished.Format(sqliteDateLayout), downloaded, idx.TotalRecordCount, idx.BadRecordCount, idx.IsProcessed, idx.IsError,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: upsert filing_index %q", idx.URL)
	}
	return c.GetFilingIndex(ctx, idx.URL)
}

func (c *SQLiteCatalogue) GetFilingIndex(ctx context.Context, url string) (*FilingIndex, error) {
	var out FilingIndex
	var published string
	var downloaded sql.NullString

	err := c.db.QueryRowContext(ctx,
		`SELECT url, date_published, date_downloaded, total_record_count, bad_record_count, is_processed, is_error
		 FROM edgar_filing_index WHERE url = ?`, url,
	).Scan(&out.URL, &published, &downloaded, &out.TotalRecordCount, &out.BadRecordCount, &out.IsProcessed, &out.IsError)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: get filing_index %q", url)
	}

	out.DatePublished, err = time.Parse(sqliteDateLayout, published)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: parse date_published")
	}
	if downloaded.Valid {
		d, err := time.Parse(sqliteDateLayout, downloaded.String)
		if err != nil {
			return nil, eris.Wrap(err, "catalogue/sqlite: parse date_downloaded")
		}
		out.DateDownloaded = &d
	}
	return &out, nil
}

func (c *SQLiteCatalogue) GetFilingByStorePath(ctx context.Context, storePath string) ([]Filing, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, form_type, accession_number, date_filed, company_cik, sha1, store_path, document_count, is_processed, is_error
		 FROM edgar_filing WHERE store_path = ?`, storePath,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: get filing by store_path %q", storePath)
	}
	defer rows.Close()

	var out []Filing
	for rows.Next() {
		var f Filing
		var dateFiled string
		if err := rows.Scan(&f.ID, &f.FormType, &f.AccessionNumber, &dateFiled, &f.CompanyCIK, &f.SHA1, &f.StorePath, &f.DocumentCount, &f.IsProcessed, &f.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/sqlite: scan filing")
		}
		if f.DateFiled, err = time.Parse(sqliteDateLayout, dateFiled); err != nil {
			return nil, eris.Wrap(err, "catalogue/sqlite: parse date_filed")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/sqlite: iterate filings")
}

func (c *SQLiteCatalogue) CreateFiling(ctx context.Context, f Filing) (*Filing, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edgar_filing (form_type, accession_number, date_filed, company_cik, sha1, store_path, document_count, is_processed, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FormType, f.AccessionNumber, f.DateFiled.Format(sqliteDateLayout), f.CompanyCIK, f.SHA1, f.StorePath, f.DocumentCount, f.IsProcessed, f.IsError,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: create filing %q", f.StorePath)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: rows affected")
	}
	if n == 0 {
		existing, err := c.GetFilingByStorePath(ctx, f.StorePath)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &existing[0], nil
		}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	f.ID = id
	return &f, nil
}

func (c *SQLiteCatalogue) UpdateFilingStatus(ctx context.Context, filingID int64, isProcessed, isError bool) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE edgar_filing SET is_processed = ?, is_error = ? WHERE id = ?`,
		isProcessed, isError, filingID,
	)
	if err != nil {
		return eris.Wrapf(err, "catalogue/sqlite: update filing status %d", filingID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "catalogue/sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("catalogue/sqlite: filing not found: %d", filingID)
	}
	return nil
}

func (c *SQLiteCatalogue) CreateFilingDocument(ctx context.Context, d FilingDocument) (*FilingDocument, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edgar_filing_document (filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.FilingID, d.Sequence, d.Type, d.FileName, d.ContentType, d.Description, d.SHA1, d.StartPos, d.EndPos, d.IsProcessed, d.IsError,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: create filing_document (%d, %d)", d.FilingID, d.Sequence)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: rows affected")
	}
	if n == 0 {
		return c.getFilingDocumentBySequence(ctx, d.FilingID, d.Sequence)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	d.ID = id
	return &d, nil
}

func (c *SQLiteCatalogue) getFilingDocumentBySequence(ctx context.Context, filingID int64, sequence int) (*FilingDocument, error) {
	var d FilingDocument
	err := c.db.QueryRowContext(ctx,
		`SELECT id, filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error
		 FROM edgar_filing_document WHERE filing_id = ? AND sequence = ?`,
		filingID, sequence,
	).Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: get filing_document (%d, %d)", filingID, sequence)
	}
	return &d, nil
}

func (c *SQLiteCatalogue) ListFilingDocuments(ctx context.Context, filingID int64) ([]FilingDocument, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, filing_id, sequence, type, file_name, content_type, description, sha1, start_pos, end_pos, is_processed, is_error
		 FROM edgar_filing_document WHERE filing_id = ? ORDER BY sequence`, filingID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: list filing_documents %d", filingID)
	}
	defer rows.Close()

	var out []FilingDocument
	for rows.Next() {
		var d FilingDocument
		if err := rows.Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/sqlite: scan filing_document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/sqlite: iterate filing_documents")
}

func (c *SQLiteCatalogue) ListDocumentsForSearch(ctx context.Context, formTypes []string) ([]FilingDocument, error) {
	query := `SELECT d.id, d.filing_id, d.sequence, d.type, d.file_name, d.content_type, d.description, d.sha1, d.start_pos, d.end_pos, d.is_processed, d.is_error
		FROM edgar_filing_document d JOIN edgar_filing f ON f.id = d.filing_id`
	args := make([]any, 0, len(formTypes))
	if len(formTypes) > 0 {
		placeholders := strings.Repeat("?,", len(formTypes))
		query += ` WHERE f.form_type IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, ft := range formTypes {
			args = append(args, ft)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: list documents for search")
	}
	defer rows.Close()

	var out []FilingDocument
	for rows.Next() {
		var d FilingDocument
		if err := rows.Scan(&d.ID, &d.FilingID, &d.Sequence, &d.Type, &d.FileName, &d.ContentType, &d.Description, &d.SHA1, &d.StartPos, &d.EndPos, &d.IsProcessed, &d.IsError); err != nil {
			return nil, eris.Wrap(err, "catalogue/sqlite: scan filing_document")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "catalogue/sqlite: iterate documents for search")
}

func (c *SQLiteCatalogue) CreateSearchQuery(ctx context.Context) (*SearchQuery, error) {
	res, err := c.db.ExecContext(ctx, `INSERT INTO edgar_search_query DEFAULT VALUES`)
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: create search_query")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	return &SearchQuery{ID: id, CreatedAt: time.Now().UTC()}, nil
}

func (c *SQLiteCatalogue) CreateSearchQueryTerm(ctx context.Context, queryID int64, term string) (*SearchQueryTerm, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_search_query_term (query_id, term) VALUES (?, ?)
		 ON CONFLICT (query_id, term) DO UPDATE SET term = excluded.term`,
		queryID, term,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: create search_query_term (%d, %q)", queryID, term)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	return &SearchQueryTerm{ID: id, QueryID: queryID, Term: term}, nil
}

func (c *SQLiteCatalogue) RecordSearchQueryResult(ctx context.Context, r SearchQueryResult) (*SearchQueryResult, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_search_query_result (query_id, document_id, term, count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (query_id, document_id, term) DO UPDATE SET count = excluded.count`,
		r.QueryID, r.DocumentID, r.Term, r.Count,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: record search_query_result (%d, %d, %q)", r.QueryID, r.DocumentID, r.Term)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	r.ID = id
	return &r, nil
}

func (c *SQLiteCatalogue) UpsertCompanyIndustryXref(ctx context.Context, x CompanyIndustryXref) (*CompanyIndustryXref, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO edgar_company_industry_xref (company_cik, sic, effective_date)
		 VALUES (?, ?, ?)
		 ON CONFLICT (company_cik, sic, effective_date) DO UPDATE SET sic = excluded.sic`,
		x.CompanyCIK, x.SIC, x.EffectiveDate.Format(sqliteDateLayout),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "catalogue/sqlite: upsert company_industry_xref %d", x.CompanyCIK)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "catalogue/sqlite: last insert id")
	}
	x.ID = id
	return &x, nil
}
