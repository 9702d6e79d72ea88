package blobstore

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/rotisserie/eris"
)

// AzureBlobStore implements Store against an Azure Blob Storage container.
type AzureBlobStore struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobStore builds an AzureBlobStore from a connection string and
// target container, creating the container on first use if it doesn't
// already exist.
func NewAzureBlobStore(ctx context.Context, connectionString, containerName string) (*AzureBlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore/azureblob: new client")
	}

	if _, err := client.CreateContainer(ctx, containerName, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, eris.Wrapf(err, "blobstore/azureblob: create container %q", containerName)
		}
	}

	return &AzureBlobStore{client: client, container: containerName}, nil
}

func (s *AzureBlobStore) blobName(path string) string {
	return stripLeadingSlash(path)
}

func (s *AzureBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.ServiceClient().NewContainerClient(s.container).
		NewBlobClient(s.blobName(path)).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, eris.Wrapf(err, "blobstore/azureblob: get properties %q", path)
}

func (s *AzureBlobStore) Get(ctx context.Context, path string, deflate bool) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(path), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/azureblob: download %q", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, eris.Wrapf(err, "blobstore/azureblob: read body %q", path)
	}
	if deflate {
		return inflateBytes(buf.Bytes())
	}
	return buf.Bytes(), nil
}

func (s *AzureBlobStore) GetRange(ctx context.Context, path string, start, end int64, deflate bool) ([]byte, error) {
	if deflate {
		full, err := s.Get(ctx, path, true)
		if err != nil {
			return nil, err
		}
		if end > int64(len(full)) {
			end = int64(len(full))
		}
		return full[start:end], nil
	}

	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(path), &azblob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: start, Count: end - start},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/azureblob: download range %q", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, eris.Wrapf(err, "blobstore/azureblob: read range body %q", path)
	}
	return buf.Bytes(), nil
}

func (s *AzureBlobStore) GetToFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := s.Get(ctx, path, deflate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore/azureblob: write %q", localPath)
	}
	return nil
}

func (s *AzureBlobStore) Put(ctx context.Context, path string, data []byte, deflate bool) error {
	body := data
	if deflate {
		compressed, err := deflateBytes(data)
		if err != nil {
			return err
		}
		body = compressed
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, s.blobName(path), body, nil); err != nil {
		return eris.Wrapf(err, "blobstore/azureblob: upload %q", path)
	}
	return nil
}

func (s *AzureBlobStore) PutFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrapf(err, "blobstore/azureblob: read %q", localPath)
	}
	return s.Put(ctx, path, data, deflate)
}

func (s *AzureBlobStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, s.blobName(path), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return eris.Wrapf(err, "blobstore/azureblob: delete %q", path)
	}
	return nil
}

func (s *AzureBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	p := s.blobName(prefix)
	pager := s.client.NewListBlobsFlatPager(s.container, &container.ListBlobsFlatOptions{
		Prefix: &p,
	})

	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "blobstore/azureblob: list %q", prefix)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (s *AzureBlobStore) ListFolders(ctx context.Context, prefix string, limit int) ([]string, error) {
	p := s.blobName(prefix)
	if p != "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}

	pager := s.client.NewListBlobsHierarchyPager(s.container, "/", &container.ListBlobsHierarchyOptions{
		Prefix: &p,
	})

	var folders []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "blobstore/azureblob: list folders %q", prefix)
		}
		for _, bp := range page.Segment.BlobPrefixes {
			if bp.Name == nil {
				continue
			}
			folders = append(folders, *bp.Name)
			if limit > 0 && len(folders) >= limit {
				return folders, nil
			}
		}
	}
	return folders, nil
}
