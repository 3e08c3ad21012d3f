package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store stores documents in an S3 (or S3-compatible) bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	cfg    Config
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 blob: bucket not set")
	}

	loadCtx, cancel := context.WithTimeout(ctx, opTimeout(cfg))
	defer cancel()

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(loadCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 blob: load default AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Printf("[BLOB] s3 bucket=%s prefix=%q region=%s", cfg.Bucket, cfg.Prefix, awsCfg.Region)
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, cfg: cfg}, nil
}

func (s *S3Store) fullKey(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return withPrefix(s.prefix, clean), nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full, err := s.fullKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		log.Printf("[BLOB][ERROR] s3 put %q failed: %v", full, err)
		return err
	}
	log.Printf("[BLOB] s3 put %q ok (%d bytes)", full, len(data))
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	full, err := s.fullKey(key)
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, "", ErrNotFound
		}
		log.Printf("[BLOB][ERROR] s3 get %q failed: %v", full, err)
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("s3 blob: read %q: %w", full, err)
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	full, err := s.fullKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(full),
	}); err != nil && !isS3NotFound(err) {
		log.Printf("[BLOB][ERROR] s3 delete %q failed: %v", full, err)
		return err
	}
	return nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
