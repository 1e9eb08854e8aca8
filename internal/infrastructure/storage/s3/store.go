package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// PublicBaseURL, when set, is used to build object URLs instead of s3://.
	PublicBaseURL      string
	ResilienceExecutor *resilience.Executor
}

// Store implements ports.ObjectStorage on Amazon S3 or any S3 compatible
// endpoint.
type Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	executor      *resilience.Executor
}

func New(ctx context.Context, bucket string, opts Options) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return newWithClient(client, bucket, opts), nil
}

func newWithClient(client *s3.Client, bucket string, opts Options) *Store {
	executor := opts.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), nil)
	}
	return &Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		executor:      executor,
	}
}

func (s *Store) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	// Buffer once so retries can replay the body.
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if size < 0 || size != int64(len(body)) {
		size = int64(len(body))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = s.executor.Execute(ctx, "s3.put_object", func(callCtx context.Context) error {
		_, putErr := s.client.PutObject(callCtx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(size),
			ContentType:   aws.String(contentType),
		})
		return putErr
	}, classifyS3Error)
	if err != nil {
		return wrapS3Error("s3 put object", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.executor.Execute(ctx, "s3.get_object", func(callCtx context.Context) error {
		out, getErr := s.client.GetObject(callCtx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if getErr != nil {
			return getErr
		}
		defer out.Body.Close()
		body, readErr := io.ReadAll(out.Body)
		if readErr != nil {
			return readErr
		}
		data = body
		return nil
	}, classifyS3Error)
	if err != nil {
		return nil, wrapS3Error("s3 get object", key, err)
	}
	return data, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var out []domain.ObjectInfo
	err := s.executor.Execute(ctx, "s3.list_objects", func(callCtx context.Context) error {
		out = out[:0]
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, pageErr := paginator.NextPage(callCtx)
			if pageErr != nil {
				return pageErr
			}
			for _, obj := range page.Contents {
				out = append(out, domain.ObjectInfo{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
				})
			}
		}
		return nil
	}, classifyS3Error)
	if err != nil {
		return nil, wrapS3Error("s3 list objects", prefix, err)
	}
	return out, nil
}

func (s *Store) URL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + (&url.URL{Path: key}).EscapedPath()
	}
	return "s3://" + s.bucket + "/" + key
}

func classifyS3Error(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if isNotFound(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorFault() == smithy.FaultServer || apiErr.ErrorCode() == "SlowDown" {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapS3Error(operation, key string, err error) error {
	err = fmt.Errorf("%s key=%s: %w", operation, key, err)
	switch {
	case isNotFound(err):
		return domain.WrapError(domain.ErrNotFound, operation, err)
	case classifyS3Error(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	default:
		return err
	}
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
