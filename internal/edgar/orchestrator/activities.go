package orchestrator

import (
	"context"
	"crypto/sha1" //nolint:gosec // content-addressing key, not a security boundary
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/surgebase/porter2"
	"go.uber.org/zap"

	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
	"github.com/edgarctl/edgar-ingest/internal/edgar/envelope"
	"github.com/edgarctl/edgar-ingest/internal/edgar/indexparser"
	"github.com/edgarctl/edgar-ingest/internal/edgar/textrender"
)

// ExtractionClient calls the external document-extraction service (§6 of
// the spec): given raw filing-document bytes, it returns rendered text.
// Abstracted behind an interface because the concrete client lives outside
// the ingestion pipeline's domain model.
type ExtractionClient interface {
	Extract(ctx context.Context, raw []byte, contentType string) (string, error)
}

// Activities bundles every external dependency an activity method calls
// through: the EDGAR fetcher, the blob store, the catalogue, and the
// extraction service. Temporal registers its exported methods directly.
type Activities struct {
	EDGAR      *client.Client
	Store      blobstore.Store
	Catalogue  catalogue.Catalogue
	Extraction ExtractionClient
}

// FetchOrCacheIndex downloads filePath's index bytes if not already present
// under the EDGAR-mirrored blob store path, then returns the parsed rows.
func (a *Activities) FetchOrCacheIndex(ctx context.Context, filePath string) ([]indexRowTask, error) {
	storePath := strings.TrimPrefix(strings.TrimPrefix(filePath, "/"), "Archives/")
	edgarPath := "/Archives/" + storePath

	exists, err := a.Store.Exists(ctx, storePath)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: check index cache %q", storePath)
	}

	var raw []byte
	if exists {
		raw, err = a.Store.Get(ctx, storePath, false)
		if err != nil {
			return nil, eris.Wrapf(err, "orchestrator: read cached index %q", storePath)
		}
	} else {
		raw, _, err = a.EDGAR.GetBuffer(ctx, edgarPath)
		if err != nil {
			return nil, eris.Wrapf(err, "orchestrator: fetch index %q", edgarPath)
		}
		if raw == nil {
			return nil, eris.Errorf("orchestrator: index %q exhausted retry ladder", edgarPath)
		}
		if err := a.Store.Put(ctx, storePath, raw, false); err != nil {
			return nil, eris.Wrapf(err, "orchestrator: cache index %q", storePath)
		}
	}

	rows := indexparser.ParseIndexBuffer(raw, false)
	out := make([]indexRowTask, 0, len(rows))
	for _, r := range rows {
		out = append(out, indexRowTask{
			FormType:    r.FormType,
			CIK:         r.CIK,
			CompanyName: r.CompanyName,
			DateFiled:   r.DateFiled,
			FileName:    r.FileName,
		})
	}
	return out, nil
}

// CanonicalFilingPath computes the store path a Filing for this row would
// live at, mirroring EDGAR's own archive layout.
func CanonicalFilingPath(cik int64, fileName string) string {
	return fmt.Sprintf("edgar/data/%d/%s", cik, filepathBase(fileName))
}

func filepathBase(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// GetFilingByStorePath reports the Filing row(s) already at storePath.
func (a *Activities) GetFilingByStorePath(ctx context.Context, storePath string) ([]catalogue.Filing, error) {
	return a.Catalogue.GetFilingByStorePath(ctx, storePath)
}

// EnsureEnvelope returns the filing envelope bytes at storePath, fetching
// from EDGAR and caching on a store miss.
func (a *Activities) EnsureEnvelope(ctx context.Context, storePath, edgarPath string) ([]byte, error) {
	exists, err := a.Store.Exists(ctx, storePath)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: check envelope cache %q", storePath)
	}
	if exists {
		return a.Store.Get(ctx, storePath, false)
	}

	raw, _, err := a.EDGAR.GetBuffer(ctx, edgarPath)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: fetch envelope %q", edgarPath)
	}
	if raw == nil {
		return nil, eris.Errorf("orchestrator: envelope %q exhausted retry ladder", edgarPath)
	}
	if err := a.Store.Put(ctx, storePath, raw, false); err != nil {
		return nil, eris.Wrapf(err, "orchestrator: cache envelope %q", storePath)
	}
	return raw, nil
}

// CreateFilingError records a minimal, error-flagged Filing row for a row
// that could not be fetched or parsed (spec.md §4.6 step 5).
func (a *Activities) CreateFilingError(ctx context.Context, row indexRowTask, storePath string) error {
	company, err := a.Catalogue.ResolveCompany(ctx, row.CIK, row.CompanyName)
	if err != nil {
		return eris.Wrap(err, "orchestrator: resolve company for filing error")
	}

	dateFiled, _ := time.Parse("2006-01-02", row.DateFiled)
	_, err = a.Catalogue.CreateFiling(ctx, catalogue.Filing{
		FormType:   row.FormType,
		CompanyCIK: company.CIK,
		DateFiled:  dateFiled,
		StorePath:  storePath,
		IsError:    true,
	})
	return eris.Wrap(err, "orchestrator: create filing error row")
}

// ParseEnvelope splits raw filing bytes into header and documents.
func (a *Activities) ParseEnvelope(ctx context.Context, raw []byte) (envelope.Filing, error) {
	filing := envelope.ParseFiling(raw)
	if filing.Header.CIK == "" {
		return envelope.Filing{}, eris.New("orchestrator: envelope header missing CIK")
	}
	return filing, nil
}

// PersistFiling resolves/creates the Company, CompanyInfo, and Filing rows
// for a parsed envelope, returning the Filing id for document persistence.
// raw is the undecoded envelope buffer, hashed to populate Filing.SHA1.
func (a *Activities) PersistFiling(ctx context.Context, storePath string, raw []byte, parsed envelope.Filing) (*catalogue.Filing, error) {
	cik, err := strconv.ParseInt(parsed.Header.CIK, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: parse CIK %q", parsed.Header.CIK)
	}

	company, err := a.Catalogue.ResolveCompany(ctx, cik, parsed.Header.CompanyName)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: resolve company")
	}

	var dateFiled time.Time
	if parsed.Header.DateFiled != nil {
		dateFiled = *parsed.Header.DateFiled
	}

	if _, err := a.Catalogue.ResolveCompanyInfo(ctx, cik, dateFiled, catalogue.CompanyInfo{
		Name:               parsed.Header.CompanyName,
		SIC:                parsed.Header.SIC,
		StateLocation:      parsed.Header.StateLocation,
		StateIncorporation: parsed.Header.StateIncorporation,
	}); err != nil {
		return nil, eris.Wrap(err, "orchestrator: resolve company_info")
	}

	sum := sha1.Sum(raw) //nolint:gosec // content-addressing key, not a security boundary

	filing, err := a.Catalogue.CreateFiling(ctx, catalogue.Filing{
		FormType:        parsed.Header.FormType,
		AccessionNumber: parsed.Header.AccessionNumber,
		DateFiled:       dateFiled,
		CompanyCIK:      company.CIK,
		SHA1:            hex.EncodeToString(sum[:]),
		StorePath:       storePath,
		DocumentCount:   parsed.Header.DocumentCount,
		IsProcessed:     false,
		IsError:         true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create filing")
	}
	return filing, nil
}

// PersistDocumentsAndArtifacts persists each FilingDocument row and uploads
// its content-addressed artifacts, per spec.md §4.6's put-if-absent rule.
func (a *Activities) PersistDocumentsAndArtifacts(ctx context.Context, filingID int64, docs []envelope.Document, storeRaw, storeText bool) error {
	log := zap.L().With(zap.String("component", "orchestrator"), zap.Int64("filing_id", filingID))

	for i, d := range docs {
		sequence, err := strconv.Atoi(strings.TrimSpace(d.Sequence))
		if err != nil {
			sequence = i + 1
		}

		if _, err := a.Catalogue.CreateFilingDocument(ctx, catalogue.FilingDocument{
			FilingID:    filingID,
			Sequence:    sequence,
			Type:        d.Type,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			Description: d.Description,
			SHA1:        d.SHA1,
			StartPos:    d.StartPos,
			EndPos:      d.EndPos,
			IsProcessed: true,
		}); err != nil {
			return eris.Wrapf(err, "orchestrator: persist filing_document %d/%d", filingID, sequence)
		}

		if storeRaw {
			if err := a.putIfAbsent(ctx, "raw/"+d.SHA1, d.Content); err != nil {
				return err
			}
		}

		if storeText {
			text := textrender.Render(string(d.Content))
			if strings.TrimSpace(text) != "" {
				if err := a.putIfAbsent(ctx, "text/"+d.SHA1, []byte(text)); err != nil {
					return err
				}
			}
		}

		log.Debug("persisted filing document", zap.Int("sequence", sequence), zap.String("sha1", d.SHA1))
	}
	return nil
}

func (a *Activities) putIfAbsent(ctx context.Context, path string, data []byte) error {
	exists, err := a.Store.Exists(ctx, path)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: check artifact %q", path)
	}
	if exists {
		return nil
	}
	if err := a.Store.Put(ctx, path, data, false); err != nil {
		return eris.Wrapf(err, "orchestrator: upload artifact %q", path)
	}
	return nil
}

// UpdateFilingStatus transitions a Filing to its terminal processed state.
func (a *Activities) UpdateFilingStatus(ctx context.Context, filingID int64, isProcessed, isError bool) error {
	return a.Catalogue.UpdateFilingStatus(ctx, filingID, isProcessed, isError)
}

// UpsertFilingIndexResult records a completed index run's summary row.
func (a *Activities) UpsertFilingIndexResult(ctx context.Context, url string, total, bad int) error {
	now := time.Now().UTC()
	_, err := a.Catalogue.UpsertFilingIndex(ctx, catalogue.FilingIndex{
		URL:              url,
		DateDownloaded:   &now,
		TotalRecordCount: total,
		BadRecordCount:   bad,
		IsProcessed:      true,
		IsError:          false,
	})
	return eris.Wrap(err, "orchestrator: upsert filing_index")
}

// SearchDocument fetches the rendered text artifact for sha1 and counts
// each term's occurrences, persisting a SearchQueryResult for every term
// with a positive count. Token/Stem select the matched representation:
// plain substring count by default, exact token-list match when Token is
// set, and exact match against Porter2-stemmed tokens (with the term
// itself stemmed too) when Stem is set.
func (a *Activities) SearchDocument(ctx context.Context, in SearchDocumentInput) (SearchDocumentResult, error) {
	raw, err := a.Store.Get(ctx, "text/"+in.SHA1, false)
	if err != nil {
		return SearchDocumentResult{}, eris.Wrapf(err, "orchestrator: fetch text/%s", in.SHA1)
	}

	doc := string(raw)
	if !in.CaseSensitive {
		doc = strings.ToLower(doc)
	}

	var tokens []string
	switch {
	case in.Token:
		tokens = tokenize(doc)
	case in.Stem:
		tokens = stemTokens(tokenize(doc))
	}

	counts := make(map[string]int, len(in.Terms))
	for _, term := range in.Terms {
		projectedTerm := term
		if !in.CaseSensitive {
			projectedTerm = strings.ToLower(term)
		}
		if in.Stem {
			projectedTerm = porter2.Stem(projectedTerm)
		}

		var n int
		if in.Token || in.Stem {
			n = countExact(tokens, projectedTerm)
		} else {
			n = strings.Count(doc, projectedTerm)
		}
		if n == 0 {
			continue
		}
		counts[term] = n

		if _, err := a.Catalogue.RecordSearchQueryResult(ctx, catalogue.SearchQueryResult{
			QueryID:    in.QueryID,
			DocumentID: in.DocumentID,
			Term:       term,
			Count:      n,
		}); err != nil {
			return SearchDocumentResult{}, eris.Wrapf(err, "orchestrator: record search result %q", term)
		}
	}
	return SearchDocumentResult{Counts: counts}, nil
}

// ExtractDocumentData calls the external extraction service for a
// document's raw bytes and persists the returned text, if any.
func (a *Activities) ExtractDocumentData(ctx context.Context, sha1 string) (bool, error) {
	raw, err := a.Store.Get(ctx, "raw/"+sha1, false)
	if err != nil {
		return false, eris.Wrapf(err, "orchestrator: fetch raw/%s", sha1)
	}

	text, err := a.Extraction.Extract(ctx, raw, detectContentTypeFallback(raw))
	if err != nil {
		return false, eris.Wrapf(err, "orchestrator: extract raw/%s", sha1)
	}
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	if err := a.putIfAbsent(ctx, "text/"+sha1, []byte(text)); err != nil {
		return false, err
	}
	return true, nil
}

func detectContentTypeFallback(raw []byte) string {
	return http.DetectContentType(raw)
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize splits text into its word tokens.
func tokenize(text string) []string {
	return tokenRe.FindAllString(text, -1)
}

// stemTokens reduces every token to its Porter2 stem.
func stemTokens(tokens []string) []string {
	stemmed := make([]string, len(tokens))
	for i, t := range tokens {
		stemmed[i] = porter2.Stem(t)
	}
	return stemmed
}

func countExact(tokens []string, term string) int {
	n := 0
	for _, t := range tokens {
		if t == term {
			n++
		}
	}
	return n
}
