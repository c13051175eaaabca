package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
)

const GCSBackend = "gcs"

// GCS stores archives in a Google Cloud Storage bucket and signs URLs with
// the V4 scheme.
type GCS struct {
	bucket *gcs.BucketHandle
	expiry time.Duration
}

func NewGCS(client *gcs.Client, bucket string, expiry time.Duration) *GCS {
	return &GCS{bucket: client.Bucket(bucket), expiry: expiry}
}

func (g *GCS) Name() string {
	return GCSBackend
}

func (g *GCS) PresignUpload(_ context.Context, objectName, contentType string) (string, error) {
	u, err := g.bucket.SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(g.expiry),
	})
	if err != nil {
		return "", errors.Join(ErrStorage, fmt.Errorf("sign upload %s: %w", objectName, err))
	}
	return u, nil
}

func (g *GCS) Fetch(ctx context.Context, objectName, localPath string) error {
	r, err := g.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return errors.Join(ErrNotFound, err)
		}
		return errors.Join(ErrStorage, fmt.Errorf("open %s: %w", objectName, err))
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return errors.Join(ErrStorage, fmt.Errorf("download %s: %w", objectName, err))
	}
	return f.Close()
}

func (g *GCS) Persist(ctx context.Context, localPath, sessionID string) (Reference, error) {
	objectName := ResultObjectName(sessionID, localPath)
	f, err := os.Open(localPath)
	if err != nil {
		return Reference{}, err
	}
	defer f.Close()

	w := g.bucket.Object(objectName).NewWriter(ctx)
	w.ContentType = "application/zip"
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("upload %s: %w", objectName, err))
	}
	if err := w.Close(); err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("upload %s: %w", objectName, err))
	}

	expires := time.Now().Add(g.expiry)
	u, err := g.bucket.SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	})
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("sign download %s: %w", objectName, err))
	}
	return Reference{
		Backend:     GCSBackend,
		Filename:    filepath.Base(localPath),
		ObjectName:  objectName,
		DownloadURL: u,
		ExpiresAt:   expires,
	}, nil
}
