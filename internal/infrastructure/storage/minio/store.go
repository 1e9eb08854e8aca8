package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

type Options struct {
	AccessKeyID        string
	SecretAccessKey    string
	UseSSL             bool
	ResilienceExecutor *resilience.Executor
	Logger             *zap.Logger
}

// Store implements ports.ObjectStorage on a MinIO bucket.
type Store struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
	executor *resilience.Executor
}

// New connects to MinIO and creates the bucket when it does not exist yet.
func New(ctx context.Context, endpoint, bucket string, opts Options) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check minio bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create minio bucket: %w", err)
		}
		logger.Info("minio_bucket_created", zap.String("bucket", bucket))
	}

	executor := opts.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &Store{
		client:   client,
		bucket:   bucket,
		endpoint: endpoint,
		secure:   opts.UseSSL,
		executor: executor,
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = s.executor.Execute(ctx, "minio.put_object", func(callCtx context.Context) error {
		_, putErr := s.client.PutObject(callCtx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return putErr
	}, classifyMinioError)
	if err != nil {
		return wrapMinioError("minio put object", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.executor.Execute(ctx, "minio.get_object", func(callCtx context.Context) error {
		obj, getErr := s.client.GetObject(callCtx, s.bucket, key, minio.GetObjectOptions{})
		if getErr != nil {
			return getErr
		}
		defer obj.Close()
		// GetObject is lazy; a missing key only surfaces on the first read.
		body, readErr := io.ReadAll(obj)
		if readErr != nil {
			return readErr
		}
		data = body
		return nil
	}, classifyMinioError)
	if err != nil {
		return nil, wrapMinioError("minio get object", key, err)
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var out []domain.ObjectInfo
	err := s.executor.Execute(ctx, "minio.list_objects", func(callCtx context.Context) error {
		out = out[:0]
		for obj := range s.client.ListObjects(callCtx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				return obj.Err
			}
			out = append(out, domain.ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
		}
		return nil
	}, classifyMinioError)
	if err != nil {
		return nil, wrapMinioError("minio list objects", prefix, err)
	}
	return out, nil
}

func (s *Store) URL(key string) string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: s.endpoint, Path: "/" + s.bucket + "/" + key}
	return u.String()
}

func classifyMinioError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return resilience.ErrorClassification{}
	case resp.StatusCode >= 500 || resp.Code == "SlowDown":
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case resp.StatusCode >= 400:
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapMinioError(operation, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	wrapped := fmt.Errorf("%s key=%s: %w", operation, key, err)
	switch {
	case resp.Code == "NoSuchKey":
		return domain.WrapError(domain.ErrNotFound, operation, wrapped)
	case classifyMinioError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, operation, wrapped)
	default:
		return wrapped
	}
}
