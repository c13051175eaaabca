package constant

import (
	"path/filepath"
	"strings"
)

type SessionStatus string

const (
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

const (
	SegmentPrefix        = "segment_"
	MetadataFileName     = "segmentation_metadata.json"
	ArchivePrefix        = "segmented_videos_"
	DownloadNamePrefix   = "ai_segmented_videos_"
	UploadObjectPrefix   = "uploads"
	ResultObjectPrefix   = "results"
	DefaultSegmentFormat = "mp4"

	MiB                    int64 = 1024 * 1024
	LocalMaxUploadBytes          = 1024 * MiB
	ObjectStoreUploadBytes       = 100 * MiB
)

// AllowedExtensions lists the accepted upload container formats, lower case and without the dot.
var AllowedExtensions = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm", "m4v"}

const AllowedFormatsMessage = "Supported: MP4, AVI, MOV, MKV, WMV, FLV, WebM, M4V"

func IsAllowedExtension(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func ArchiveName(sessionID string) string {
	return ArchivePrefix + sessionID + ".zip"
}
