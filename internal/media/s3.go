package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures the S3 client used by the s3 media backend.
type S3Options struct {
	Region    string
	Endpoint  string // empty for AWS, e.g. http://127.0.0.1:9000 for MinIO
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. A custom endpoint switches to path-style
// addressing; static keys replace the default credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3 keeps uploads as objects in a single bucket, keyed by handle.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 returns an S3 media store for bucket.
func NewS3(client *s3.Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

// Store uploads r under the first free candidate key. Each PutObject carries
// If-None-Match: * so an existing key is never overwritten.
func (s *S3) Store(ctx context.Context, originalName string, r io.Reader) (string, error) {
	token, err := Sanitize(originalName)
	if err != nil {
		return "", err
	}

	// The body is replayed for every candidate key.
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.IO("read upload", err)
	}

	for n := 0; n < maxAttempts; n++ {
		handle := candidate(token, n)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(handle),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			IfNoneMatch:   aws.String("*"),
		})
		if isStatus(err, http.StatusPreconditionFailed) || isStatus(err, http.StatusConflict) {
			continue
		}
		if err != nil {
			return "", apperr.IO("put object", err)
		}
		return handle, nil
	}
	return "", apperr.IO("store media", fmt.Errorf("no free key for %q after %d attempts", token, maxAttempts))
}

// Open fetches the object stored under handle.
func (s *S3) Open(ctx context.Context, handle string) (*Object, error) {
	if !ValidHandle(handle) {
		return nil, notFound(handle)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) || isStatus(err, http.StatusNotFound) {
		return nil, notFound(handle)
	}
	if err != nil {
		return nil, apperr.IO("get object", err)
	}

	obj := &Object{Body: out.Body, Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		obj.ModTime = *out.LastModified
	}
	return obj, nil
}

// Remove deletes the object stored under handle. S3 deletes are idempotent.
func (s *S3) Remove(ctx context.Context, handle string) error {
	if !ValidHandle(handle) {
		return notFound(handle)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return apperr.IO("delete object", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == code
}
