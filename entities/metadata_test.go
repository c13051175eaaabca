package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeCaptions(t *testing.T) {
	segments := []Segment{
		{Index: 0, Filename: "segment_000.mp4"},
		{Index: 1, Filename: "segment_001.mp4"},
		{Index: 2, Filename: "segment_002.mp4"},
	}
	captions := []SegmentCaption{
		{Title: "Intro", Description: "opening", Duration: "2:00"},
		{Title: "Middle", Description: "body", Duration: "2:00"},
	}

	got := MergeCaptions(segments, captions)

	assert.Len(t, got, 3)
	assert.Equal(t, "Intro", got[0].Title)
	assert.Equal(t, "segment_001.mp4", got[1].Filename)
	assert.Equal(t, "Middle", got[1].Title)
	assert.Equal(t, 2, got[2].Index)
	assert.Empty(t, got[2].Title)
}

func TestMergeCaptionsIgnoresExtraCaptions(t *testing.T) {
	got := MergeCaptions([]Segment{{Index: 0, Filename: "segment_000.mp4"}},
		[]SegmentCaption{{Title: "a"}, {Title: "b"}})

	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
}
