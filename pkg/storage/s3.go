package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

const S3Backend = "s3"

// S3 stores archives in any S3-compatible bucket.
type S3 struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewS3(client *minio.Client, bucket string, expiry time.Duration) *S3 {
	return &S3{client: client, bucket: bucket, expiry: expiry}
}

func (s *S3) Name() string {
	return S3Backend
}

func (s *S3) PresignUpload(ctx context.Context, objectName, contentType string) (string, error) {
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, objectName, s.expiry, nil, headers)
	if err != nil {
		return "", errors.Join(ErrStorage, fmt.Errorf("presign upload %s: %w", objectName, err))
	}
	return u.String(), nil
}

func (s *S3) Fetch(ctx context.Context, objectName, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, objectName, localPath, minio.GetObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return errors.Join(ErrNotFound, err)
		}
		return errors.Join(ErrStorage, fmt.Errorf("download %s: %w", objectName, err))
	}
	return nil
}

func (s *S3) Persist(ctx context.Context, localPath, sessionID string) (Reference, error) {
	objectName := ResultObjectName(sessionID, localPath)
	info, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("upload %s: %w", objectName, err))
	}
	zerolog.Ctx(ctx).Info().Str("object", objectName).Int64("size", info.Size).Msg("archive uploaded")

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry, nil)
	if err != nil {
		return Reference{}, errors.Join(ErrStorage, fmt.Errorf("presign download %s: %w", objectName, err))
	}
	return Reference{
		Backend:     S3Backend,
		Filename:    filepath.Base(localPath),
		ObjectName:  objectName,
		DownloadURL: u.String(),
		ExpiresAt:   time.Now().Add(s.expiry),
	}, nil
}
