package entities

import "time"

type SegmentMetadata struct {
	Index       int    `json:"index"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// SegmentationMetadata is embedded verbatim in every archive. SegmentCount must
// equal the number of segment files written next to it.
type SegmentationMetadata struct {
	OriginalVideo    string            `json:"original_video"`
	TotalDuration    float64           `json:"total_duration"`
	SegmentCount     int               `json:"segment_count"`
	AIAnalysis       VideoAnalysis     `json:"ai_analysis"`
	SegmentsMetadata []SegmentMetadata `json:"segments_metadata"`
	ProcessingTime   time.Time         `json:"processing_time"`
	AIGenerated      bool              `json:"ai_generated"`
	AIStatus         string            `json:"ai_status"`
}

// MergeCaptions pairs produced segments with generated captions by position.
// Segments without a caption keep only their index and filename.
func MergeCaptions(segments []Segment, captions []SegmentCaption) []SegmentMetadata {
	out := make([]SegmentMetadata, 0, len(segments))
	for i, seg := range segments {
		meta := SegmentMetadata{Index: seg.Index, Filename: seg.Filename}
		if i < len(captions) {
			meta.Title = captions[i].Title
			meta.Description = captions[i].Description
			meta.Duration = captions[i].Duration
		}
		out = append(out, meta)
	}
	return out
}
