package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/bundler/internal/common"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// S3Options carries the credentials and endpoint for the s3:// provider.
// Either an IAM role (resolved through the default AWS chain) or BOTH the
// access key and secret key must be supplied.
type S3Options struct {
	Endpoint  string
	Region    string
	IAMRole   string
	AccessKey string
	SecretKey string
}

// Validate checks the credential combination rule.
func (o S3Options) Validate() error {
	if o.IAMRole != "" {
		return nil
	}
	if o.AccessKey != "" && o.SecretKey != "" {
		return nil
	}
	return errors.New("s3 authentication not configured: either an IAM role, " +
		"or both an access key and a secret key, must be supplied")
}

// S3FileSystem serves s3://bucket/key URIs from an S3-compatible object
// store. The bucket is the URI host; the key is the URI path.
type S3FileSystem struct {
	client *s3.Client
	log    logging.Logger
}

// NewS3FileSystem builds the provider, resolving credentials once. With an
// IAM role configured the default AWS credential chain is used; otherwise
// the static access/secret pair is installed.
func NewS3FileSystem(ctx context.Context, opts S3Options, log logging.Logger) (*S3FileSystem, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.IAMRole == "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3FileSystem{client: client, log: log}, nil
}

func (f *S3FileSystem) Scheme() string { return "s3" }

// bucketKey splits an s3 URI into its bucket and object key.
func bucketKey(u *url.URL) (string, string) {
	return u.Host, strings.TrimPrefix(u.Path, "/")
}

// wrapS3Error maps SDK failures onto the adapter's failure kinds.
func wrapS3Error(op, bucket, key string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s s3://%s/%s", common.ErrNotFound, op, bucket, key)
	}
	return fmt.Errorf("%w: %s s3://%s/%s: %v", common.ErrTransientIO, op, bucket, key, err)
}

func (f *S3FileSystem) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	bucket, key := bucketKey(u)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, wrapS3Error("get", bucket, key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// s3Writer spools writes to a local temp file and uploads the object on
// Close. Archives can exceed memory, so buffering in RAM is not an option.
type s3Writer struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	tmp    *os.File
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *s3Writer) Close() error {
	defer func() {
		w.tmp.Close()
		os.Remove(w.tmp.Name())
	}()
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding upload spool: %v", common.ErrTransientIO, err)
	}
	_, err := w.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   w.tmp,
	})
	if err != nil {
		return wrapS3Error("put", w.bucket, w.key, err)
	}
	return nil
}

func (f *S3FileSystem) Create(ctx context.Context, u *url.URL) (io.WriteCloser, error) {
	bucket, key := bucketKey(u)
	tmp, err := os.CreateTemp("", "s3upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating upload spool: %v", common.ErrTransientIO, err)
	}
	return &s3Writer{ctx: ctx, client: f.client, bucket: bucket, key: key, tmp: tmp}, nil
}

func (f *S3FileSystem) Exists(ctx context.Context, u *url.URL) (bool, error) {
	bucket, key := bucketKey(u)
	_, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		wrapped := wrapS3Error("head", bucket, key, err)
		if errors.Is(wrapped, common.ErrNotFound) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

func (f *S3FileSystem) Size(ctx context.Context, u *url.URL) (int64, error) {
	bucket, key := bucketKey(u)
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, wrapS3Error("head", bucket, key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (f *S3FileSystem) Remove(ctx context.Context, u *url.URL) error {
	bucket, key := bucketKey(u)
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapS3Error("delete", bucket, key, err)
	}
	return nil
}

func (f *S3FileSystem) Walk(ctx context.Context, u *url.URL) ([]string, error) {
	bucket, prefix := bucketKey(u)
	var out []string
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapS3Error("list", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			if key == prefix {
				return []string{"s3://" + bucket + "/" + key}, nil
			}
			if prefix != "" && !strings.HasPrefix(key, strings.TrimSuffix(prefix, "/")+"/") {
				continue
			}
			out = append(out, "s3://"+bucket+"/"+key)
		}
	}
	return out, nil
}

// MkdirAll is a no-op: object stores have no directories, prefixes come
// into being with the first object written under them.
func (f *S3FileSystem) MkdirAll(ctx context.Context, u *url.URL) error {
	return nil
}
