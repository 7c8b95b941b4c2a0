// Package minio stores and fetches knowledge base documents in S3-compatible
// object storage. The API server can load its knowledge base from a bucket
// at startup, and the CLI publishes validated documents there.
package minio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// MaxObjectSize bounds the documents this package reads into memory.
const MaxObjectSize = 8 << 20

// ObjectAPI is the subset of *minio.Client used here. GetObject is reduced
// to an io.ReadCloser so tests can fake it.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

type sdkAPI struct {
	*minio.Client
}

func (a sdkAPI) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
}

// Config holds connection parameters.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// Client wraps the object API with MedSimplify error codes.
type Client struct {
	api    ObjectAPI
	config Config
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client. It does not contact the server; use
// HealthCheck for that.
func NewClient(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.InvalidParam("minio endpoint is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create minio client").WithDetail(cfg.Endpoint)
	}
	return NewClientWithAPI(sdkAPI{sdk}, cfg, log), nil
}

// NewClientWithAPI builds a Client around an existing ObjectAPI.
func NewClientWithAPI(api ObjectAPI, cfg Config, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Client{api: api, config: cfg, logger: log}
}

// Fetch reads object into memory. Missing buckets or objects map to
// ErrCodeKBSourceUnavailable; objects over MaxObjectSize are rejected.
func (c *Client) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	if c.isClosed() {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "minio client is closed")
	}
	start := time.Now()

	rc, err := c.api.GetObject(ctx, bucket, object)
	if err != nil {
		return nil, translate(err, bucket, object)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxObjectSize+1))
	if err != nil {
		return nil, translate(err, bucket, object)
	}
	if len(data) > MaxObjectSize {
		return nil, errors.New(errors.ErrCodePayloadTooLarge, "object exceeds size limit").
			WithDetailf("%s/%s", bucket, object)
	}

	c.logger.Debug("object fetched",
		logging.String("bucket", bucket),
		logging.String("object", object),
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(start)))
	return data, nil
}

// Put uploads data, creating the bucket when it does not exist.
func (c *Client) Put(ctx context.Context, bucket, object string, data []byte, contentType string) (minio.UploadInfo, error) {
	if c.isClosed() {
		return minio.UploadInfo{}, errors.New(errors.ErrCodeServiceUnavailable, "minio client is closed")
	}
	if err := c.ensureBucket(ctx, bucket); err != nil {
		return minio.UploadInfo{}, err
	}
	info, err := c.api.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return minio.UploadInfo{}, errors.Wrap(err, errors.ErrCodeExternalService, "upload object").
			WithDetailf("%s/%s", bucket, object)
	}
	c.logger.Info("object uploaded",
		logging.String("bucket", bucket),
		logging.String("object", object),
		logging.Int64("size", info.Size))
	return info, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "check bucket").WithDetail(bucket)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "create bucket").WithDetail(bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", bucket))
	return nil
}

// HealthCheck verifies that bucket is reachable.
func (c *Client) HealthCheck(ctx context.Context, bucket string) error {
	exists, err := c.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "minio unreachable")
	}
	if !exists {
		return errors.New(errors.ErrCodeServiceUnavailable, "bucket missing").WithDetail(bucket)
	}
	return nil
}

// Close marks the client closed. The SDK holds no resources that need
// releasing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func translate(err error, bucket, object string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Wrap(err, errors.ErrCodeKBSourceUnavailable, "object not found").
			WithDetailf("%s/%s", bucket, object)
	}
	return errors.Wrap(err, errors.ErrCodeKBSourceUnavailable, "fetch object").
		WithDetailf("%s/%s", bucket, object)
}
