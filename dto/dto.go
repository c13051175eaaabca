package dto

import (
	"time"

	"github.com/google/uuid"
	"video-splitter/entities"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type AnalyzeResponse struct {
	SizeMB            float64                `json:"size_mb"`
	EstimatedSegments int                    `json:"estimated_segments"`
	AIAnalysis        entities.VideoAnalysis `json:"ai_analysis"`
	AIEnabled         bool                   `json:"ai_enabled"`
	AIStatus          string                 `json:"ai_status"`
	Status            string                 `json:"status"`
}

type UploadResponse struct {
	Success       bool                   `json:"success"`
	SessionID     uuid.UUID              `json:"session_id"`
	ZipFilename   string                 `json:"zip_filename"`
	SegmentCount  int                    `json:"segment_count"`
	TotalDuration string                 `json:"total_duration"`
	AIAnalysis    entities.VideoAnalysis `json:"ai_analysis"`
	AIEnabled     bool                   `json:"ai_enabled"`
	AIStatus      string                 `json:"ai_status"`
	FileSize      int64                  `json:"file_size"`
	DownloadURL   string                 `json:"download_url,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
}

type PresignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

type PresignResponse struct {
	PresignedURL string    `json:"presigned_url"`
	ObjectName   string    `json:"object_name"`
	SessionID    uuid.UUID `json:"session_id"`
	ContentType  string    `json:"content_type"`
}

type ProcessVideoRequest struct {
	ObjectName       string    `json:"object_name" binding:"required"`
	SessionID        uuid.UUID `json:"session_id" binding:"required"`
	OriginalFilename string    `json:"original_filename"`
}

type StatusResponse struct {
	Status          string    `json:"status"`
	AIEnabled       bool      `json:"ai_enabled"`
	S3Enabled       bool      `json:"s3_enabled"`
	Storage         string    `json:"storage"`
	DriveEnabled    bool      `json:"drive_enabled"`
	DriveAuthorized bool      `json:"drive_authorized"`
	Timestamp       time.Time `json:"timestamp"`
}

type DriveUploadResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Link     string `json:"link"`
	Filename string `json:"filename"`
}

// SessionCompleted is published once per successfully processed session.
type SessionCompleted struct {
	SessionID     uuid.UUID `json:"sessionId"`
	OriginalVideo string    `json:"originalVideo"`
	SegmentCount  int       `json:"segmentCount"`
	TotalDuration float64   `json:"totalDuration"`
	Storage       string    `json:"storage"`
	ArchiveName   string    `json:"archiveName"`
	DownloadURL   string    `json:"downloadUrl"`
	AIGenerated   bool      `json:"aiGenerated"`
	CompletedAt   time.Time `json:"completedAt"`
}
