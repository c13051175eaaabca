package entities

// Segment is one contiguous slice of the source video, cut without re-encoding.
type Segment struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Path     string `json:"-"`
}

// SegmentCaption is the generated title/description for one segment.
type SegmentCaption struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
}

// VideoAnalysis is the whole-video title, per-segment titles and strategy.
type VideoAnalysis struct {
	VideoTitle  string   `json:"video_title"`
	Segments    []string `json:"segments"`
	Strategy    string   `json:"strategy"`
	Description string   `json:"description"`
}
