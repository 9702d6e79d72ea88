package blobstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/filesystem"
	"github.com/rotisserie/eris"
)

// AzureDataLakeStore implements Store against an Azure Data Lake Storage
// Gen2 filesystem. Per SPEC_FULL.md §4.1, this backend never compresses:
// every deflate argument is ignored and bytes are stored verbatim.
type AzureDataLakeStore struct {
	fs *filesystem.Client
}

// ADLOptions configures an AzureDataLakeStore via Azure AD service-principal
// auth (tenant/client/secret), matching the config shape the rest of the
// EDGAR ADL wiring already uses for AAD-authenticated storage access.
type ADLOptions struct {
	Account      string
	TenantID     string
	ClientID     string
	ClientSecret string
	FileSystem   string
}

// NewAzureDataLakeStore builds an AzureDataLakeStore from opts, creating the
// filesystem on first use if it doesn't already exist.
func NewAzureDataLakeStore(ctx context.Context, opts ADLOptions) (*AzureDataLakeStore, error) {
	cred, err := azidentity.NewClientSecretCredential(opts.TenantID, opts.ClientID, opts.ClientSecret, nil)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore/azuredatalake: new client secret credential")
	}

	serviceURL := fmt.Sprintf("https://%s.dfs.core.windows.net/%s", opts.Account, opts.FileSystem)
	fs, err := filesystem.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore/azuredatalake: new filesystem client")
	}

	if _, err := fs.Create(ctx, nil); err != nil && !isAlreadyExists(err) {
		return nil, eris.Wrapf(err, "blobstore/azuredatalake: create filesystem %q", opts.FileSystem)
	}

	return &AzureDataLakeStore{fs: fs}, nil
}

func (s *AzureDataLakeStore) fileClient(path string) *file.Client {
	return s.fs.NewFileClient(stripLeadingSlash(path))
}

func (s *AzureDataLakeStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.fileClient(path).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, eris.Wrapf(err, "blobstore/azuredatalake: get properties %q", path)
}

func (s *AzureDataLakeStore) Get(ctx context.Context, path string, _ bool) ([]byte, error) {
	fc := s.fileClient(path)
	props, err := fc.GetProperties(ctx, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/azuredatalake: get properties %q", path)
	}

	var size int64
	if props.ContentLength != nil {
		size = *props.ContentLength
	}
	buf := make([]byte, size)
	if _, err := fc.DownloadBuffer(ctx, buf, nil); err != nil {
		return nil, eris.Wrapf(err, "blobstore/azuredatalake: download %q", path)
	}
	return buf, nil
}

func (s *AzureDataLakeStore) GetRange(ctx context.Context, path string, start, end int64, _ bool) ([]byte, error) {
	full, err := s.Get(ctx, path, false)
	if err != nil {
		return nil, err
	}
	if end > int64(len(full)) {
		end = int64(len(full))
	}
	return full[start:end], nil
}

func (s *AzureDataLakeStore) GetToFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := s.Get(ctx, path, deflate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore/azuredatalake: write %q", localPath)
	}
	return nil
}

func (s *AzureDataLakeStore) Put(ctx context.Context, path string, data []byte, _ bool) error {
	fc := s.fileClient(path)
	if _, err := fc.Create(ctx, nil); err != nil && !isAlreadyExists(err) {
		return eris.Wrapf(err, "blobstore/azuredatalake: create %q", path)
	}
	if _, err := fc.UploadBuffer(ctx, data, nil); err != nil {
		return eris.Wrapf(err, "blobstore/azuredatalake: upload %q", path)
	}
	return nil
}

func (s *AzureDataLakeStore) PutFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrapf(err, "blobstore/azuredatalake: read %q", localPath)
	}
	return s.Put(ctx, path, data, deflate)
}

func (s *AzureDataLakeStore) Delete(ctx context.Context, path string) error {
	_, err := s.fileClient(path).Delete(ctx, nil)
	if err != nil && !isNotFound(err) {
		return eris.Wrapf(err, "blobstore/azuredatalake: delete %q", path)
	}
	return nil
}

func (s *AzureDataLakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	p := stripLeadingSlash(prefix)
	pager := s.fs.NewListPathsPager(&filesystem.ListPathsOptions{
		Prefix:    &p,
		Recursive: boolPtr(true),
	})

	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "blobstore/azuredatalake: list %q", prefix)
		}
		for _, item := range page.Paths {
			if item.Name == nil || (item.IsDirectory != nil && *item.IsDirectory) {
				continue
			}
			keys = append(keys, *item.Name)
		}
	}
	return keys, nil
}

func (s *AzureDataLakeStore) ListFolders(ctx context.Context, prefix string, limit int) ([]string, error) {
	p := stripLeadingSlash(prefix)
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}

	pager := s.fs.NewListPathsPager(&filesystem.ListPathsOptions{
		Prefix:    &p,
		Recursive: boolPtr(false),
	})

	var folders []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "blobstore/azuredatalake: list folders %q", prefix)
		}
		for _, item := range page.Paths {
			if item.Name == nil || item.IsDirectory == nil || !*item.IsDirectory {
				continue
			}
			folders = append(folders, *item.Name+"/")
			if limit > 0 && len(folders) >= limit {
				return folders, nil
			}
		}
	}
	return folders, nil
}

func boolPtr(b bool) *bool { return &b }

// isNotFound and isAlreadyExists classify azdatalake's generic *azcore
// response errors by substring, since the package exposes no dedicated
// error-code helper analogous to bloberror for azblob.
func isNotFound(err error) bool {
	return containsAny(err, "PathNotFound", "404")
}

func isAlreadyExists(err error) bool {
	return containsAny(err, "PathAlreadyExists", "409")
}

func containsAny(err error, substrs ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range substrs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
