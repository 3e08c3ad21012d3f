// file: internals/helpers/blob/store.go
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

/*
Store is the durable document storage used by issuance and file serving.

Keys are slash separated: <student_id>/<record_id>/<file name>. Backends
map them onto a directory tree, an S3/GCS/OSS object name (with an optional
prefix) or a map.
*/
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}

var (
	ErrNotFound   = errors.New("blob: key not found")
	ErrInvalidKey = errors.New("blob: invalid key")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

const (
	DriverLocal  = "local"
	DriverS3     = "s3"
	DriverGCS    = "gcs"
	DriverOSS    = "oss"
	DriverMemory = "memory"
)

type Config struct {
	Driver string

	LocalRoot string

	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // S3-compatible endpoint (MinIO, R2, ...)
	CredentialsFile string // GCS service account json

	OSSEndpoint      string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSSecurityToken string

	Timeout time.Duration
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return NewLocalStore(cfg.LocalRoot)
	case DriverS3:
		return NewS3Store(ctx, cfg)
	case DriverGCS:
		return NewGCSStore(ctx, cfg)
	case DriverOSS:
		return NewOSSStore(cfg)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

// DocumentKey is the object key of one file belonging to a record.
func DocumentKey(studentID, recordID, fileName string) string {
	return studentID + "/" + recordID + "/" + fileName
}

// CleanKey rejects keys that could escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

func withPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func opTimeout(cfg Config) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 60 * time.Second
}
