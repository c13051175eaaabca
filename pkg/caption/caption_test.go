package caption

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-splitter/entities"
)

type fakeGenerator struct {
	reply   string
	err     error
	panics  bool
	prompts []string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.panics {
		panic("boom")
	}
	return f.reply, f.err
}

func TestFallbackAnalysisSizedToCount(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7} {
		a := FallbackAnalysis(n)
		assert.Equal(t, FallbackTitle, a.VideoTitle)
		assert.Len(t, a.Segments, n)
		if n > 0 {
			assert.Equal(t, "Part 1: Engaging Content", a.Segments[0])
			assert.Equal(t, "Part 7: Engaging Content", FallbackAnalysis(7).Segments[6])
		}
	}
}

func TestAnalyzeVideoDisabled(t *testing.T) {
	c, err := New(nil, 120)
	require.NoError(t, err)

	res := c.AnalyzeVideo(context.Background(), VideoInfo{Duration: 250, SegmentCount: 3})
	assert.Equal(t, StatusDisabled, res.Status)
	assert.False(t, res.Generated())
	assert.Equal(t, FallbackAnalysis(3), res.Value)
}

func TestAnalyzeVideoGenerated(t *testing.T) {
	gen := &fakeGenerator{reply: "Sure! Here it is:\n```json\n" +
		`{"video_title":"Cats","segments":["a","b","c"],"strategy":"s","description":"d"}` +
		"\n```\nEnjoy."}
	c, err := New(gen, 120)
	require.NoError(t, err)

	res := c.AnalyzeVideo(context.Background(), VideoInfo{Duration: 250, SegmentCount: 3, FileSizeMB: 12.5})
	require.Equal(t, StatusGenerated, res.Status)
	assert.Equal(t, "Cats", res.Value.VideoTitle)
	assert.Equal(t, []string{"a", "b", "c"}, res.Value.Segments)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Duration: 250.00 seconds")
	assert.Contains(t, gen.prompts[0], "File size: 12.50 MB")
}

func TestAnalyzeVideoFailures(t *testing.T) {
	cases := []struct {
		name   string
		gen    *fakeGenerator
		status Status
	}{
		{"error", &fakeGenerator{err: errors.New("quota exceeded")}, StatusFailed},
		{"panic", &fakeGenerator{panics: true}, StatusFailed},
		{"no json", &fakeGenerator{reply: "I cannot help with that"}, StatusMalformed},
		{"broken json", &fakeGenerator{reply: `{"video_title": }`}, StatusMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.gen, 120)
			require.NoError(t, err)

			res := c.AnalyzeVideo(context.Background(), VideoInfo{SegmentCount: 4})
			assert.Equal(t, tc.status, res.Status)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, FallbackAnalysis(4), res.Value)
		})
	}
}

func TestDescribeSegments(t *testing.T) {
	segments := []entities.Segment{{Index: 0, Filename: "segment_000.mp4"}, {Index: 1, Filename: "segment_001.mp4"}}

	t.Run("generated", func(t *testing.T) {
		gen := &fakeGenerator{reply: `{"segments":[{"title":"One","description":"first","duration":"2:00"}]}`}
		c, err := New(gen, 120)
		require.NoError(t, err)

		res := c.DescribeSegments(context.Background(), segments)
		require.Equal(t, StatusGenerated, res.Status)
		assert.Equal(t, []entities.SegmentCaption{{Title: "One", Description: "first", Duration: "2:00"}}, res.Value)
		assert.Contains(t, gen.prompts[0], "for 2 video segments")
		assert.Contains(t, gen.prompts[0], "approximately 2 minutes")
	})

	t.Run("failed", func(t *testing.T) {
		c, err := New(&fakeGenerator{err: errors.New("down")}, 120)
		require.NoError(t, err)

		res := c.DescribeSegments(context.Background(), segments)
		assert.Equal(t, StatusFailed, res.Status)
		assert.NotNil(t, res.Value)
		assert.Empty(t, res.Value)
	})

	t.Run("disabled", func(t *testing.T) {
		c, err := New(nil, 120)
		require.NoError(t, err)

		res := c.DescribeSegments(context.Background(), segments)
		assert.Equal(t, StatusDisabled, res.Status)
		assert.Empty(t, res.Value)
	})
}

func TestWithPrompts(t *testing.T) {
	gen := &fakeGenerator{reply: `{"video_title":"x"}`}
	c, err := New(gen, 60, WithPrompts("count={{.SegmentCount}}", ""))
	require.NoError(t, err)

	c.AnalyzeVideo(context.Background(), VideoInfo{SegmentCount: 5})
	assert.Equal(t, []string{"count=5"}, gen.prompts)

	_, err = New(gen, 60, WithPrompts("{{.Broken", ""))
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`, true},
		{"no braces", "", false},
		{"} backwards {", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractJSON(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

type countingGenerator struct{ calls atomic.Int32 }

func (c *countingGenerator) Name() string { return "counting" }

func (c *countingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	c.calls.Add(1)
	return "{}", ctx.Err()
}

func TestRateLimitedBlocksOverQuota(t *testing.T) {
	next := &countingGenerator{}
	limited := NewRateLimited(next, 1, 50*time.Millisecond)
	assert.Equal(t, "counting", limited.Name())

	_, err := limited.Generate(context.Background(), "first")
	require.NoError(t, err)

	// The second token is a minute away, beyond the per-call timeout.
	_, err = limited.Generate(context.Background(), "second")
	assert.Error(t, err)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestRateLimitedUnlimited(t *testing.T) {
	next := &countingGenerator{}
	limited := NewRateLimited(next, 0, 0)
	for i := 0; i < 5; i++ {
		_, err := limited.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 5, next.calls.Load())
}
