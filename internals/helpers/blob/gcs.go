package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores documents in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	cfg    Config
}

func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs blob: bucket not set")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs blob: failed in creating storage client: %w", err)
	}

	log.Printf("[BLOB] gcs bucket=%s prefix=%q", cfg.Bucket, cfg.Prefix)
	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: cfg.Prefix,
		cfg:    cfg,
	}, nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *GCSStore) object(key string) (*storage.ObjectHandle, string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return nil, "", err
	}
	full := withPrefix(s.prefix, clean)
	return s.bucket.Object(full), full, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	obj, full, err := s.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		log.Printf("[BLOB][ERROR] gcs put %q failed: %v", full, err)
		return err
	}
	if err := w.Close(); err != nil {
		log.Printf("[BLOB][ERROR] gcs close %q failed: %v", full, err)
		return err
	}
	log.Printf("[BLOB] gcs put %q ok (%d bytes)", full, len(data))
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	obj, full, err := s.object(key)
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", ErrNotFound
		}
		log.Printf("[BLOB][ERROR] gcs get %q failed: %v", full, err)
		return nil, "", err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("gcs blob: read %q: %w", full, err)
	}
	return data, r.Attrs.ContentType, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	obj, full, err := s.object(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout(s.cfg))
	defer cancel()

	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		log.Printf("[BLOB][ERROR] gcs delete %q failed: %v", full, err)
		return err
	}
	return nil
}
