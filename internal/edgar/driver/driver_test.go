package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
)

const quarterIndexPage = `<html><body>
<div id="main-content">
<a href="/Archives/edgar/full-index/2024/QTR1/form.idx">form.idx</a>
</div>
</body></html>`

func newTestDriver(t *testing.T, handler http.HandlerFunc) *Driver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := client.New(client.Options{BaseURL: srv.URL, UserAgent: "test-agent test@example.com"})
	require.NoError(t, err)

	store := blobstore.NewLocalStore(t.TempDir())

	cat, err := catalogue.NewSQLiteCatalogue(t.TempDir() + "/catalogue.db")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() }) //nolint:errcheck
	require.NoError(t, cat.Migrate(context.Background()))

	return &Driver{EDGAR: c, Store: store, Catalogue: cat}
}

func TestDriver_DownloadFilingIndexData_FetchesMissingAndSkipsCached(t *testing.T) {
	var indexFetches int
	d := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/Archives/edgar/full-index/2024/QTR1/":
			_, _ = w.Write([]byte(quarterIndexPage))
		case r.URL.Path == "/Archives/edgar/full-index/2024/QTR1/form.idx":
			indexFetches++
			_, _ = w.Write([]byte("index body"))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	year, quarter := 2024, 1
	statuses, err := d.DownloadFilingIndexData(ctx, &year, &quarter, nil)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].WasFetched)
	assert.Equal(t, "edgar/full-index/2024/QTR1/form.idx", statuses[0].StorePath)
	assert.Equal(t, 1, indexFetches)

	// Second call finds it already in the store and does not refetch.
	statuses2, err := d.DownloadFilingIndexData(ctx, &year, &quarter, nil)
	require.NoError(t, err)
	require.Len(t, statuses2, 1)
	assert.False(t, statuses2[0].WasFetched)
	assert.Equal(t, 1, indexFetches, "second call must not hit EDGAR again")
}

func TestFilingIndexStorePath(t *testing.T) {
	assert.Equal(t, "edgar/full-index/2024/QTR1/form.idx", filingIndexStorePath("/Archives/edgar/full-index/2024/QTR1/form.idx"))
}

func TestEnvDriverConfig(t *testing.T) {
	t.Setenv("EDGAR_YEAR", "2024")
	t.Setenv("EDGAR_QUARTER", "1")
	t.Setenv("FORM_TYPES", "10-K, 10-Q")
	t.Setenv("EDGAR_MONTH", "")

	year, quarter, month, formTypes := EnvDriverConfig()
	require.NotNil(t, year)
	require.NotNil(t, quarter)
	assert.Nil(t, month)
	assert.Equal(t, 2024, *year)
	assert.Equal(t, 1, *quarter)
	assert.Equal(t, []string{"10-K", "10-Q"}, formTypes)
}
