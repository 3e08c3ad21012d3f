package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStore stores documents in an Aliyun OSS bucket.
type OSSStore struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStore(cfg Config) (*OSSStore, error) {
	endpoint := normalizeOSSEndpoint(cfg.OSSEndpoint)
	if endpoint == "" || cfg.OSSAccessKey == "" || cfg.OSSSecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("oss blob: missing env ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY or BLOB_BUCKET")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.OSSSecurityToken != "" {
		client, err = oss.New(endpoint, cfg.OSSAccessKey, cfg.OSSSecretKey, oss.SecurityToken(cfg.OSSSecurityToken))
	} else {
		client, err = oss.New(endpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	log.Printf("[BLOB] oss bucket=%s prefix=%q endpoint=%s", cfg.Bucket, cfg.Prefix, endpoint)
	return &OSSStore{bucket: bkt, prefix: cfg.Prefix}, nil
}

func normalizeOSSEndpoint(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return ""
	}
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		ep = "https://" + ep
	}
	return strings.TrimRight(ep, "/")
}

func (s *OSSStore) fullKey(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return withPrefix(s.prefix, clean), nil
}

func (s *OSSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full, err := s.fullKey(key)
	if err != nil {
		return err
	}
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(full, bytes.NewReader(data), opts...); err != nil {
		log.Printf("[BLOB][ERROR] oss put %q failed: %v", full, err)
		return err
	}
	log.Printf("[BLOB] oss put %q ok (%d bytes)", full, len(data))
	return nil
}

func (s *OSSStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	full, err := s.fullKey(key)
	if err != nil {
		return nil, "", err
	}
	res, err := s.bucket.DoGetObject(&oss.GetObjectRequest{ObjectKey: full}, []oss.Option{oss.WithContext(ctx)})
	if err != nil {
		if isOSSNotFound(err) {
			return nil, "", ErrNotFound
		}
		log.Printf("[BLOB][ERROR] oss get %q failed: %v", full, err)
		return nil, "", err
	}
	defer res.Response.Body.Close()

	data, err := io.ReadAll(res.Response.Body)
	if err != nil {
		return nil, "", fmt.Errorf("oss blob: read %q: %w", full, err)
	}
	return data, res.Response.Headers.Get("Content-Type"), nil
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	full, err := s.fullKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteObject(full, oss.WithContext(ctx)); err != nil && !isOSSNotFound(err) {
		log.Printf("[BLOB][ERROR] oss delete %q failed: %v", full, err)
		return err
	}
	return nil
}

func isOSSNotFound(err error) bool {
	var se oss.ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound || se.Code == "NoSuchKey"
	}
	return false
}
