package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

// ObjectLocator points at an archived original document.
type ObjectLocator struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Archiver is the narrow contract for best-effort archival of originals.
// A nil Archiver means archiving is unconfigured; saves proceed without it.
type Archiver interface {
	Put(ctx context.Context, data []byte, name, contentType string) (ObjectLocator, error)
	Delete(ctx context.Context, key string) (bool, error)
	Presign(key string, ttl time.Duration) (string, error)
}

// GCSArchive stores originals in a Google Cloud Storage bucket.
type GCSArchive struct {
	client *gcs.Client
	bucket string
	prefix string
	log    *slog.Logger
}

func NewGCSArchive(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*GCSArchive, error) {
	if bucket == "" {
		return nil, common.NewAppError(common.ErrStorageUnavailable, "archive bucket is not configured", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, common.NewAppError(common.ErrStorageUnavailable, "creating storage client", err)
	}
	if prefix == "" {
		prefix = "invoices"
	}
	return &GCSArchive{client: client, bucket: bucket, prefix: prefix, log: logger}, nil
}

// Put writes the original under a timestamped key and returns its locator.
func (a *GCSArchive) Put(ctx context.Context, data []byte, name, contentType string) (ObjectLocator, error) {
	key := fmt.Sprintf("%s/%s_%s", a.prefix, time.Now().UTC().Format("20060102_150405"), sanitizeName(name))

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return ObjectLocator{}, common.NewAppError(common.ErrStorageUnavailable, "writing archive object", err)
	}
	if err := w.Close(); err != nil {
		return ObjectLocator{}, common.NewAppError(common.ErrStorageUnavailable, "finalizing archive object", err)
	}

	loc := ObjectLocator{
		Key: key,
		URL: fmt.Sprintf("https://storage.googleapis.com/%s/%s", a.bucket, key),
	}
	a.log.Info("archive.put.ok", "key", key, "bytes", len(data))
	return loc, nil
}

// Delete removes an archived object; false means it did not exist.
func (a *GCSArchive) Delete(ctx context.Context, key string) (bool, error) {
	err := a.client.Bucket(a.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, common.NewAppError(common.ErrStorageUnavailable, "deleting archive object", err)
	}
	return true, nil
}

// Presign returns a V4 signed download URL for the archived original.
func (a *GCSArchive) Presign(key string, ttl time.Duration) (string, error) {
	url, err := a.client.Bucket(a.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", common.NewAppError(common.ErrStorageUnavailable, "signing archive url", err)
	}
	return url, nil
}

func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	return name
}
