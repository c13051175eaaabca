package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"video-splitter/config"
	"video-splitter/pkg/lease"
	"video-splitter/repository"
)

// Sweeper deletes working files older than the retention window. Entries whose
// name carries the id of a leased session are kept regardless of age.
type Sweeper struct {
	dirs     []string
	maxAge   time.Duration
	interval time.Duration
	leaseTTL time.Duration
	leases   lease.Tracker
	repo     repository.SessionRepository
	now      func() time.Time
}

func NewSweeper(cfg *config.Config, leases lease.Tracker, repo repository.SessionRepository) *Sweeper {
	interval := cfg.Retention.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		dirs:     []string{cfg.Paths.UploadDir, cfg.Paths.TempDir},
		maxAge:   cfg.Retention.MaxAge,
		interval: interval,
		leaseTTL: cfg.Redis.LeaseTTL,
		leases:   leases,
		repo:     repo,
		now:      time.Now,
	}
}

// Run sweeps once immediately, then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweepAndLog(ctx)

	c := cron.New()
	if _, err := c.AddFunc("@every "+s.interval.String(), func() { s.sweepAndLog(ctx) }); err != nil {
		return err
	}
	c.Start()
	zerolog.Ctx(ctx).Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("retention sweeper started")

	<-ctx.Done()
	<-c.Stop().Done()
	zerolog.Ctx(ctx).Info().Msg("retention sweeper stopped")
	return nil
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("retention sweep failed")
		return
	}
	if removed > 0 {
		zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("retention sweep finished")
	}
}

// Sweep runs one pass and returns how many entries were removed. Individual
// deletion failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	active, err := s.leases.Active(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("dir", dir).Msg("failed to list directory")
			continue
		}

		for _, entry := range entries {
			if leased(entry.Name(), active) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			// ModTime stands in for creation time, which Go does not expose portably
			if !info.ModTime().Before(cutoff) {
				continue
			}
			p := filepath.Join(dir, entry.Name())
			if err := os.RemoveAll(p); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("path", p).Msg("failed to remove expired entry")
				continue
			}
			zerolog.Ctx(ctx).Debug().Str("path", p).Msg("removed expired entry")
			removed++
		}
	}

	if s.repo != nil {
		// a PROCESSING record that outlived its lease belongs to a dead run
		var staleBefore time.Time
		if s.leaseTTL > 0 {
			staleBefore = s.now().Add(-s.leaseTTL)
		}
		n, err := s.repo.DeleteSessionsBefore(ctx, cutoff, staleBefore)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to prune session records")
		} else if n > 0 {
			zerolog.Ctx(ctx).Info().Int64("sessions", n).Msg("pruned session records")
		}
	}
	return removed, nil
}

func leased(name string, active map[string]struct{}) bool {
	for id := range active {
		if strings.Contains(name, id) {
			return true
		}
	}
	return false
}
