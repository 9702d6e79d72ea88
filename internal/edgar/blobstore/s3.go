package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// S3Store implements Store against an AWS S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Store builds an S3Store from opts, resolving credentials through
// the standard AWS config chain when AccessKeyID is unset.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     opts.AccessKeyID,
					SecretAccessKey: opts.SecretAccessKey,
				}, nil
			})))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore/s3: load aws config")
	}

	store := &S3Store{client: s3.NewFromConfig(cfg), bucket: opts.Bucket}
	if err := store.ensureBucket(ctx, opts.Region); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureBucket creates the bucket on first use if it doesn't already exist.
func (s *S3Store) ensureBucket(ctx context.Context, region string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		var alreadyExists *types.BucketAlreadyExists
		if errors.As(err, &alreadyOwned) || errors.As(err, &alreadyExists) {
			return nil
		}
		return eris.Wrapf(err, "blobstore/s3: create bucket %q", s.bucket)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stripLeadingSlash(path)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, eris.Wrapf(err, "blobstore/s3: head %q", path)
}

func (s *S3Store) Get(ctx context.Context, path string, deflate bool) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stripLeadingSlash(path)),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/s3: get %q", path)
	}
	defer out.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, eris.Wrapf(err, "blobstore/s3: read body %q", path)
	}
	if deflate {
		return inflateBytes(buf.Bytes())
	}
	return buf.Bytes(), nil
}

func (s *S3Store) GetRange(ctx context.Context, path string, start, end int64, deflate bool) ([]byte, error) {
	if deflate {
		// Range reads on deflated objects operate on the inflated buffer,
		// so a true byte-range GET isn't meaningful: fetch the whole
		// object, inflate, then slice.
		full, err := s.Get(ctx, path, true)
		if err != nil {
			return nil, err
		}
		if end > int64(len(full)) {
			end = int64(len(full))
		}
		return full[start:end], nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stripLeadingSlash(path)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, end-1)),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/s3: get range %q", path)
	}
	defer out.Body.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, eris.Wrapf(err, "blobstore/s3: read range body %q", path)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) GetToFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := s.Get(ctx, path, deflate)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore/s3: write %q", localPath)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, path string, data []byte, deflate bool) error {
	body := data
	if deflate {
		compressed, err := deflateBytes(data)
		if err != nil {
			return err
		}
		body = compressed
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stripLeadingSlash(path)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return eris.Wrapf(err, "blobstore/s3: put %q", path)
	}
	return nil
}

func (s *S3Store) PutFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrapf(err, "blobstore/s3: read %q", localPath)
	}
	return s.Put(ctx, path, data, deflate)
}

func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(stripLeadingSlash(path)),
	})
	if err != nil {
		return eris.Wrapf(err, "blobstore/s3: delete %q", path)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(stripLeadingSlash(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "blobstore/s3: list %q", prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Store) ListFolders(ctx context.Context, prefix string, limit int) ([]string, error) {
	key := stripLeadingSlash(prefix)
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(key),
		Delimiter: aws.String("/"),
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/s3: list folders %q", prefix)
	}

	var folders []string
	for _, p := range out.CommonPrefixes {
		folders = append(folders, aws.ToString(p.Prefix))
		if limit > 0 && len(folders) >= limit {
			break
		}
	}
	return folders, nil
}
