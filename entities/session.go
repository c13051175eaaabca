package entities

import (
	"time"

	"github.com/google/uuid"
	"video-splitter/constant"
)

// Session is one end-to-end upload-to-archive processing unit.
type Session struct {
	ID               uuid.UUID              `json:"id" gorm:"type:uuid;primary_key"`
	OriginalFilename string                 `json:"original_filename" gorm:"type:varchar(255);not null"`
	SourceObject     *string                `json:"source_object,omitempty" gorm:"type:varchar(500)"`
	WorkDir          string                 `json:"work_dir" gorm:"type:varchar(500)"`
	FileSizeBytes    int64                  `json:"file_size_bytes" gorm:"type:bigint"`
	Duration         float64                `json:"duration"`
	SegmentCount     int                    `json:"segment_count" gorm:"type:integer;default:0"`
	Status           constant.SessionStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_upload_sessions_status"`
	StorageBackend   string                 `json:"storage_backend,omitempty" gorm:"type:varchar(20)"`
	ArchiveName      string                 `json:"archive_name,omitempty" gorm:"type:varchar(255)"`
	DownloadURL      string                 `json:"download_url,omitempty" gorm:"type:text"`
	AIGenerated      bool                   `json:"ai_generated"`
	ErrorMessage     *string                `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt        time.Time              `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time              `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string {
	return "upload_sessions"
}
