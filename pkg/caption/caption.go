// Package caption produces decorative titles and descriptions for a split
// video. Every call returns a Result; no generator failure reaches the caller.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"video-splitter/entities"
)

// TextGenerator sends a prompt to a generative text model and returns its raw reply.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type Status string

const (
	StatusGenerated Status = "generated"
	StatusDisabled  Status = "disabled"
	StatusFailed    Status = "failed"
	StatusMalformed Status = "malformed"
)

// Result carries either generated data or fallback data together with why the
// fallback was used.
type Result[T any] struct {
	Value  T
	Status Status
	Reason string
}

func (r Result[T]) Generated() bool {
	return r.Status == StatusGenerated
}

const (
	FallbackTitle       = "Your Video Content"
	FallbackStrategy    = "Optimal 2-minute segments for viewer engagement"
	FallbackDescription = "Video content ready for segmentation"
)

var errNoJSON = errors.New("no JSON object in response")

// FallbackAnalysis is the deterministic analysis used whenever generation is
// unavailable. It always carries segmentCount titles.
func FallbackAnalysis(segmentCount int) entities.VideoAnalysis {
	return entities.VideoAnalysis{
		VideoTitle: FallbackTitle,
		Segments: lo.Times(segmentCount, func(i int) string {
			return fmt.Sprintf("Part %d: Engaging Content", i+1)
		}),
		Strategy:    FallbackStrategy,
		Description: FallbackDescription,
	}
}

type VideoInfo struct {
	Duration       float64
	SegmentCount   int
	FileSizeMB     float64
	SegmentSeconds int
}

const defaultAnalysisPrompt = `Analyze this video information and provide:
1. A creative title for the video
2. Suggested segment titles for {{.SegmentCount}} segments
3. Optimal segmentation strategy
4. Brief content description

Video Details:
- Duration: {{printf "%.2f" .Duration}} seconds
- Estimated segments: {{.SegmentCount}}
- File size: {{printf "%.2f" .FileSizeMB}} MB

Respond in JSON format:
{
    "video_title": "creative title",
    "segments": ["Segment 1 title", "Segment 2 title", ...],
    "strategy": "segmentation strategy",
    "description": "content description"
}`

const defaultSegmentsPrompt = `Generate engaging titles and descriptions for {{.Count}} video segments.
Each segment is approximately {{.Minutes}} minutes long.

Respond in JSON format:
{
    "segments": [
        {
            "title": "creative title for segment 1",
            "description": "engaging description",
            "duration": "{{.Minutes}}:00"
        },
        ...
    ]
}`

type Captioner struct {
	generator      TextGenerator
	analysisPrompt *template.Template
	segmentsPrompt *template.Template
	segmentSeconds int
}

type Option func(*Captioner) error

// WithPrompts overrides the prompt templates. Empty strings keep the defaults.
func WithPrompts(analysis, segments string) Option {
	return func(c *Captioner) error {
		var err error
		if analysis != "" {
			if c.analysisPrompt, err = template.New("analysis").Parse(analysis); err != nil {
				return fmt.Errorf("analysis prompt: %w", err)
			}
		}
		if segments != "" {
			if c.segmentsPrompt, err = template.New("segments").Parse(segments); err != nil {
				return fmt.Errorf("segments prompt: %w", err)
			}
		}
		return nil
	}
}

// New builds a Captioner. A nil generator disables generation and every call
// returns the fallback with StatusDisabled.
func New(generator TextGenerator, segmentSeconds int, opts ...Option) (*Captioner, error) {
	c := &Captioner{
		generator:      generator,
		analysisPrompt: template.Must(template.New("analysis").Parse(defaultAnalysisPrompt)),
		segmentsPrompt: template.Must(template.New("segments").Parse(defaultSegmentsPrompt)),
		segmentSeconds: segmentSeconds,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Captioner) Enabled() bool {
	return c.generator != nil
}

// AnalyzeVideo asks for a title, per-segment titles, strategy and description.
func (c *Captioner) AnalyzeVideo(ctx context.Context, info VideoInfo) Result[entities.VideoAnalysis] {
	fallback := FallbackAnalysis(info.SegmentCount)
	if !c.Enabled() {
		return Result[entities.VideoAnalysis]{Value: fallback, Status: StatusDisabled, Reason: "no text generator configured"}
	}

	raw, err := c.generate(ctx, c.analysisPrompt, info)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("generator", c.generator.Name()).Msg("video analysis failed, using fallback")
		return Result[entities.VideoAnalysis]{Value: fallback, Status: StatusFailed, Reason: err.Error()}
	}

	var analysis entities.VideoAnalysis
	if err := decodeEmbedded(raw, &analysis); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("video analysis malformed, using fallback")
		return Result[entities.VideoAnalysis]{Value: fallback, Status: StatusMalformed, Reason: err.Error()}
	}
	return Result[entities.VideoAnalysis]{Value: analysis, Status: StatusGenerated}
}

// DescribeSegments asks for a title, description and duration label per
// produced segment. The fallback is an empty list.
func (c *Captioner) DescribeSegments(ctx context.Context, segments []entities.Segment) Result[[]entities.SegmentCaption] {
	empty := []entities.SegmentCaption{}
	if !c.Enabled() {
		return Result[[]entities.SegmentCaption]{Value: empty, Status: StatusDisabled, Reason: "no text generator configured"}
	}

	data := struct {
		Count   int
		Minutes int
		Names   []string
	}{
		Count:   len(segments),
		Minutes: max(1, c.segmentSeconds/60),
		Names:   lo.Map(segments, func(s entities.Segment, _ int) string { return s.Filename }),
	}
	raw, err := c.generate(ctx, c.segmentsPrompt, data)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("generator", c.generator.Name()).Msg("segment metadata failed")
		return Result[[]entities.SegmentCaption]{Value: empty, Status: StatusFailed, Reason: err.Error()}
	}

	var reply struct {
		Segments []entities.SegmentCaption `json:"segments"`
	}
	if err := decodeEmbedded(raw, &reply); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("segment metadata malformed")
		return Result[[]entities.SegmentCaption]{Value: empty, Status: StatusMalformed, Reason: err.Error()}
	}
	if reply.Segments == nil {
		reply.Segments = empty
	}
	return Result[[]entities.SegmentCaption]{Value: reply.Segments, Status: StatusGenerated}
}

func (c *Captioner) generate(ctx context.Context, tmpl *template.Template, data any) (raw string, err error) {
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return c.generator.Generate(ctx, prompt.String())
}

// ExtractJSON returns the text between the first '{' and the last '}'.
// Generators often wrap their JSON in prose; nested or multiple objects in the
// surrounding text can still defeat this.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func decodeEmbedded(raw string, v any) error {
	body, ok := ExtractJSON(raw)
	if !ok {
		return errNoJSON
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
