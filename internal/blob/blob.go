// Package blob stores generated binary assets such as QR code images.
package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/domain"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverS3     Driver = "s3"
)

// Object is a stored blob.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store is implemented by blob backends. Put overwrites existing keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	// URL returns a link clients can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
	Driver() Driver
}

// Open builds the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverMemory, "":
		return NewMemory(cfg.PublicBaseURL), nil
	case DriverS3:
		return NewS3(ctx, S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			PathStyle:       cfg.PathStyle,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// QRCodeKey is the object key of a sample's QR image.
func QRCodeKey(sampleID string) string {
	return "qr-codes/" + sampleID + ".png"
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return domain.NewValidationError("key", "invalid blob key")
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
