package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edgarctl/edgar-ingest/internal/config"
	"github.com/edgarctl/edgar-ingest/internal/edgar/blobstore"
	"github.com/edgarctl/edgar-ingest/internal/edgar/catalogue"
	"github.com/edgarctl/edgar-ingest/internal/edgar/client"
	"github.com/edgarctl/edgar-ingest/internal/edgar/extraction"
	"github.com/edgarctl/edgar-ingest/internal/edgar/orchestrator"
)

var edgarCmd = &cobra.Command{
	Use:   "edgar",
	Short: "SEC EDGAR filings crawler and extractor",
	Long:  "Downloads EDGAR filing indexes and filings, parses and catalogues them, and serves full-text search over the results.",
}

func init() {
	rootCmd.AddCommand(edgarCmd)
}

// edgarClient builds the EDGAR HTTP client from cfg.Edgar.
func edgarClient(cfg config.EdgarConfig) (*client.Client, error) {
	requestInterval, err := time.ParseDuration(cfg.RequestInterval)
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: parse request_interval %q", cfg.RequestInterval)
	}

	var backoff []time.Duration
	for _, s := range cfg.Backoff {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, eris.Wrapf(err, "edgar: parse backoff entry %q", s)
		}
		backoff = append(backoff, d)
	}

	return client.New(client.Options{
		BaseURL:         cfg.BaseURL,
		UserAgent:       cfg.UserAgent,
		RequestInterval: requestInterval,
		Backoff:         backoff,
	})
}

// edgarBlobStore selects and builds a blob store backend per
// cfg.Edgar.ClientType.
func edgarBlobStore(cfg config.EdgarConfig) (blobstore.Store, error) {
	switch cfg.ClientType {
	case "S3":
		return blobstore.NewS3Store(context.Background(), blobstore.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case "Blob":
		return blobstore.NewAzureBlobStore(context.Background(), cfg.Blob.ConnectionString, cfg.Blob.Container)
	case "ADL":
		return blobstore.NewAzureDataLakeStore(context.Background(), blobstore.ADLOptions{
			Account:      cfg.ADL.Account,
			TenantID:     cfg.ADL.TenantID,
			ClientID:     cfg.ADL.ClientID,
			ClientSecret: cfg.ADL.ClientSecret,
			FileSystem:   cfg.ADL.FileSystem,
		})
	case "Local", "":
		return blobstore.NewLocalStore(cfg.Local.Root), nil
	default:
		return nil, eris.Errorf("edgar: unknown client_type %q", cfg.ClientType)
	}
}

// edgarCatalogue builds the PostgresCatalogue for cfg.Edgar, migrating it
// if necessary.
func edgarCatalogue(ctx context.Context) (*catalogue.PostgresCatalogue, error) {
	dsn := cfg.Edgar.DatabaseURL
	if dsn == "" {
		dsn = cfg.Store.DatabaseURL
	}
	if dsn == "" {
		return nil, eris.New("edgar: no database_url configured (set edgar.database_url or store.database_url)")
	}

	cat, err := catalogue.NewPostgresCatalogue(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: connect catalogue")
	}
	if err := cat.Migrate(ctx); err != nil {
		cat.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "edgar: migrate catalogue")
	}
	return cat, nil
}

// edgarTemporalClient dials the Temporal frontend configured for the EDGAR
// subsystem.
func edgarTemporalClient() (temporalclient.Client, error) {
	c, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.Edgar.TemporalHostPort})
	if err != nil {
		return nil, eris.Wrap(err, "edgar: dial temporal")
	}
	return c, nil
}

// newExtractionClient builds the text-extraction service client for url.
func newExtractionClient(url string) (orchestrator.ExtractionClient, error) {
	if url == "" {
		return nil, eris.New("edgar: no extraction_url configured")
	}
	return extraction.New(url), nil
}
