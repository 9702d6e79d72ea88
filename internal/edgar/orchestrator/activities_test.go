package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
)

const sampleIndex = `Description:           Full index of filings
Last Data Received:    2024-01-02
Comments:              webmaster@sec.gov
Anonymous FTP:         ftp://ftp.sec.gov/edgar/
Form Type   Company Name                                                  CIK         Date Filed  File Name
---------   ------------------------------------------------------------  ----------  ----------  -----------------------------------
10-K        ACME CORP                                                     320193      2024-01-02  edgar/data/320193/0000320193-24-000001.txt
`

const sampleEnvelope = `<SEC-DOCUMENT>0000320193-24-000001.txt : 20240102
<SEC-HEADER>0000320193-24-000001.hdr.sgml : 20240102
ACCESSION NUMBER:		0000320193-24-000001
CONFORMED SUBMISSION TYPE:	10-K
FILED AS OF DATE:		20240102
PUBLIC DOCUMENT COUNT:		1

COMPANY DATA:
	COMPANY CONFORMED NAME:		ACME CORP
	CENTRAL INDEX KEY:		0000320193
	STANDARD INDUSTRIAL CLASSIFICATION:	COMPUTERS [3571]
	STATE OF INCORPORATION:		CA

</SEC-HEADER>
<DOCUMENT>
<TYPE>10-K
<SEQUENCE>1
<FILENAME>acme-10k.txt
<DESCRIPTION>ANNUAL REPORT
<TEXT>
Hello, world. ACME reported revenue growth.
</TEXT>
</DOCUMENT>
</SEC-DOCUMENT>
`

type fakeExtraction struct {
	text string
	err  error
}

func (f *fakeExtraction) Extract(_ context.Context, _ []byte, _ string) (string, error) {
	return f.text, f.err
}

func newTestActivities(t *testing.T, handler http.HandlerFunc) *Activities {
	t.Helper()

	var edgarClient *client.Client
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		c, err := client.New(client.Options{BaseURL: srv.URL, UserAgent: "test-agent test@example.com"})
		require.NoError(t, err)
		edgarClient = c
	}

	store := blobstore.NewLocalStore(t.TempDir())

	cat, err := catalogue.NewSQLiteCatalogue(filepath.Join(t.TempDir(), "catalogue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() }) //nolint:errcheck
	require.NoError(t, cat.Migrate(context.Background()))

	return &Activities{
		EDGAR:      edgarClient,
		Store:      store,
		Catalogue:  cat,
		Extraction: &fakeExtraction{},
	}
}

func TestActivities_FetchOrCacheIndex_FetchesAndCaches(t *testing.T) {
	var hits int
	a := newTestActivities(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(sampleIndex))
	})
	ctx := context.Background()

	rows, err := a.FetchOrCacheIndex(ctx, "/Archives/edgar/full-index/2024/QTR1/form.idx")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10-K", rows[0].FormType)
	assert.Equal(t, int64(320193), rows[0].CIK)

	// Second call hits the blob cache, not EDGAR again.
	rows2, err := a.FetchOrCacheIndex(ctx, "/Archives/edgar/full-index/2024/QTR1/form.idx")
	require.NoError(t, err)
	require.Len(t, rows2, 1)
	assert.Equal(t, 1, hits, "second fetch must be served from the blob cache")
}

func TestActivities_EnsureEnvelope_CachesOnMiss(t *testing.T) {
	var hits int
	a := newTestActivities(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(sampleEnvelope))
	})
	ctx := context.Background()

	storePath := "edgar/data/320193/0000320193-24-000001.txt"
	data, err := a.EnsureEnvelope(ctx, storePath, "/Archives/"+storePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ACME CORP")

	exists, err := a.Store.Exists(ctx, storePath)
	require.NoError(t, err)
	assert.True(t, exists)

	if _, err := a.EnsureEnvelope(ctx, storePath, "/Archives/"+storePath); err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	assert.Equal(t, 1, hits, "second ensure must be served from the blob cache")
}

func TestActivities_ParseEnvelope_AbandonsWithoutCIK(t *testing.T) {
	a := newTestActivities(t, nil)
	_, err := a.ParseEnvelope(context.Background(), []byte("<SEC-DOCUMENT>garbage</SEC-DOCUMENT>"))
	assert.Error(t, err)
}

func TestActivities_PersistFilingAndDocuments_Idempotent(t *testing.T) {
	a := newTestActivities(t, nil)
	ctx := context.Background()

	parsed, err := a.ParseEnvelope(ctx, []byte(sampleEnvelope))
	require.NoError(t, err)
	require.Equal(t, "0000320193", parsed.Header.CIK)

	storePath := "edgar/data/320193/0000320193-24-000001.txt"
	filing, err := a.PersistFiling(ctx, storePath, []byte(sampleEnvelope), parsed)
	require.NoError(t, err)
	assert.True(t, filing.IsError, "a freshly persisted Filing starts is_error=true per the processing contract")
	assert.False(t, filing.IsProcessed)
	assert.NotEmpty(t, filing.SHA1)

	require.NoError(t, a.PersistDocumentsAndArtifacts(ctx, filing.ID, parsed.Documents, true, true))
	require.NoError(t, a.UpdateFilingStatus(ctx, filing.ID, true, false))

	docs, err := a.Catalogue.ListFilingDocuments(ctx, filing.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	rawExists, err := a.Store.Exists(ctx, "raw/"+docs[0].SHA1)
	require.NoError(t, err)
	assert.True(t, rawExists)

	textExists, err := a.Store.Exists(ctx, "text/"+docs[0].SHA1)
	require.NoError(t, err)
	assert.True(t, textExists)

	// Re-persisting the same document must not duplicate it (idempotency
	// key is (FilingID, Sequence)).
	require.NoError(t, a.PersistDocumentsAndArtifacts(ctx, filing.ID, parsed.Documents, true, true))
	docs2, err := a.Catalogue.ListFilingDocuments(ctx, filing.ID)
	require.NoError(t, err)
	assert.Len(t, docs2, 1)
}

func TestActivities_SearchDocument_RecordsOnlyPositiveCounts(t *testing.T) {
	a := newTestActivities(t, nil)
	ctx := context.Background()

	sha1 := "deadbeef"
	require.NoError(t, a.Store.Put(ctx, "text/"+sha1, []byte("acme reported steady acme growth"), false))

	q, err := a.Catalogue.CreateSearchQuery(ctx)
	require.NoError(t, err)

	result, err := a.SearchDocument(ctx, SearchDocumentInput{
		SHA1:       sha1,
		Terms:      []string{"acme", "nonexistentterm"},
		QueryID:    q.ID,
		DocumentID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts["acme"])
	_, missing := result.Counts["nonexistentterm"]
	assert.False(t, missing)
}

func TestActivities_ExtractDocumentData_SkipsEmptyText(t *testing.T) {
	a := newTestActivities(t, nil)
	a.Extraction = &fakeExtraction{text: ""}
	ctx := context.Background()

	require.NoError(t, a.Store.Put(ctx, "raw/abc123", []byte("raw bytes"), false))

	stored, err := a.ExtractDocumentData(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, stored)

	a.Extraction = &fakeExtraction{text: "extracted text"}
	stored, err = a.ExtractDocumentData(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, stored)

	exists, err := a.Store.Exists(ctx, "text/abc123")
	require.NoError(t, err)
	assert.True(t, exists)
}
