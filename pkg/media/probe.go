package media

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Prober reads container durations with ffprobe.
type Prober struct {
	binary  string
	timeout time.Duration
}

func NewProber(binary string, timeout time.Duration) *Prober {
	return &Prober{binary: binary, timeout: timeout}
}

// Duration returns the duration of path in seconds, or 0 when it cannot be
// determined. Zero is the only failure signal; callers must not segment on it.
func (p *Prober) Duration(ctx context.Context, path string) float64 {
	// a client disconnect must not kill the probe, only the timeout does
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := exec.CommandContext(runCtx, p.binary, args...)
	cmd.WaitDelay = waitDelay
	output, err := cmd.Output()
	if err != nil {
		event := zerolog.Ctx(ctx).Warn().Err(err).Str("path", path)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			event = event.Str("ffprobe_output", string(exitErr.Stderr))
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			event = event.Dur("timeout", p.timeout)
		}
		event.Msg("ffprobe failed")
		return 0
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		zerolog.Ctx(ctx).Warn().Str("path", path).Str("ffprobe_output", string(output)).Msg("unparsable duration")
		return 0
	}

	return duration
}

// SegmentCount is the number of segments a video of the given duration yields:
// ceil(duration/segmentSeconds), at least 1 for any positive duration.
func SegmentCount(duration float64, segmentSeconds int) int {
	if duration <= 0 || segmentSeconds <= 0 {
		return 0
	}
	count := int(math.Ceil(duration / float64(segmentSeconds)))
	if count < 1 {
		return 1
	}
	return count
}
