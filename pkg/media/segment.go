package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"video-splitter/constant"
	"video-splitter/entities"
)

var ErrTimeout = errors.New("processing timeout")

const (
	maxDiagnosticBytes = 2048
	// bounds how long Wait blocks on pipes held open by orphaned children
	waitDelay = 5 * time.Second
)

// Segmenter cuts a source video into fixed-length pieces with the ffmpeg
// segment muxer. Streams are copied, never re-encoded.
type Segmenter struct {
	binary  string
	format  string
	timeout time.Duration
}

func NewSegmenter(binary, format string, timeout time.Duration) *Segmenter {
	if format == "" {
		format = constant.DefaultSegmentFormat
	}
	return &Segmenter{binary: binary, format: format, timeout: timeout}
}

// Split writes segment_NNN files into outputDir and returns them in sequence
// order. The returned list, not the precomputed count, is authoritative.
func (s *Segmenter) Split(ctx context.Context, inputPath, outputDir string, segmentSeconds int) ([]entities.Segment, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ffmpegArgs := []string{
		"-i", inputPath,
		"-c", "copy",
		"-map", "0",
		"-segment_time", strconv.Itoa(segmentSeconds),
		"-f", "segment",
		"-reset_timestamps", "1",
		"-y",
		filepath.Join(outputDir, constant.SegmentPrefix+"%03d."+s.format),
	}

	zerolog.Ctx(ctx).Debug().Strs("ffmpeg_args", ffmpegArgs).Msg("executing ffmpeg segment command")
	cmd := exec.CommandContext(runCtx, s.binary, ffmpegArgs...)
	cmd.WaitDelay = waitDelay
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			zerolog.Ctx(ctx).Error().Dur("timeout", s.timeout).Msg("ffmpeg segmenting timed out")
			return nil, ErrTimeout
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("ffmpeg_output", stderr.String()).Msg("ffmpeg segmenting failed")
		return nil, fmt.Errorf("ffmpeg error: %s", tail(stderr.String(), maxDiagnosticBytes))
	}

	return ListSegments(outputDir)
}

// ListSegments returns the segment files in dir sorted by name, which equals
// sequence order because the numbering is zero-padded.
func ListSegments(dir string) ([]entities.Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && strings.HasPrefix(e.Name(), constant.SegmentPrefix)
	})

	return lo.Map(files, func(e os.DirEntry, i int) entities.Segment {
		return entities.Segment{
			Index:    segmentIndex(e.Name(), i),
			Filename: e.Name(),
			Path:     filepath.Join(dir, e.Name()),
		}
	}), nil
}

func segmentIndex(name string, fallback int) int {
	number := strings.TrimSuffix(strings.TrimPrefix(name, constant.SegmentPrefix), filepath.Ext(name))
	index, err := strconv.Atoi(number)
	if err != nil {
		return fallback
	}
	return index
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
