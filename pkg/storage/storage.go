// Package storage places finished archives where clients can fetch them and,
// for object stores, hands out presigned URLs for direct browser uploads.
package storage

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"time"

	"video-splitter/constant"
)

var (
	ErrNotConfigured = errors.New("storage not configured")
	ErrNotAuthorized = errors.New("storage not authorized")
	ErrNotFound      = errors.New("object not found")
	ErrStorage       = errors.New("storage operation failed")
)

// Reference tells a client where to fetch a persisted archive.
type Reference struct {
	Backend     string    `json:"backend"`
	Filename    string    `json:"filename"`
	ObjectName  string    `json:"object_name,omitempty"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Backend stores a finished archive.
type Backend interface {
	Name() string
	Persist(ctx context.Context, localPath, sessionID string) (Reference, error)
}

// SourceFetcher is implemented by backends that can receive the source video
// directly from the client.
type SourceFetcher interface {
	Fetch(ctx context.Context, objectName, localPath string) error
}

// UploadPresigner is implemented by backends that can issue time-limited
// upload URLs.
type UploadPresigner interface {
	PresignUpload(ctx context.Context, objectName, contentType string) (string, error)
}

func UploadObjectName(sessionID, filename string) string {
	return path.Join(constant.UploadObjectPrefix, sessionID, filename)
}

func ResultObjectName(sessionID, localPath string) string {
	return path.Join(constant.ResultObjectPrefix, sessionID, filepath.Base(localPath))
}
