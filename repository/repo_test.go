package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/entities"
)

func repositories(t *testing.T) map[string]SessionRepository {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "sessions.db")
	sqliteRepo, err := Open(config.Database{DSN: dsn}, logger.Silent)
	require.NoError(t, err)

	memRepo, err := Open(config.Database{}, logger.Silent)
	require.NoError(t, err)

	return map[string]SessionRepository{"sqlite": sqliteRepo, "memory": memRepo}
}

func newSession(created time.Time) *entities.Session {
	return &entities.Session{
		ID:               uuid.New(),
		OriginalFilename: "clip.mp4",
		WorkDir:          "temp/x",
		FileSizeBytes:    1024,
		Status:           constant.SessionStatusProcessing,
		CreatedAt:        created,
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(time.Now())
			require.NoError(t, r.CreateSession(ctx, s))

			got, err := r.FindSessionById(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, "clip.mp4", got.OriginalFilename)
			assert.Equal(t, constant.SessionStatusProcessing, got.Status)

			msg := "Could not process video file. Please try another format."
			require.NoError(t, r.UpdateStatusSession(ctx, constant.SessionStatusFailed, s.ID, &msg))
			got, err = r.FindSessionById(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, constant.SessionStatusFailed, got.Status)
			require.NotNil(t, got.ErrorMessage)
			assert.Equal(t, msg, *got.ErrorMessage)

			got.Status = constant.SessionStatusCompleted
			got.SegmentCount = 3
			got.Duration = 250
			got.ErrorMessage = nil
			require.NoError(t, r.SaveSession(ctx, got))
			got, err = r.FindSessionById(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.SegmentCount)
			assert.InDelta(t, 250, got.Duration, 0.001)
			assert.Nil(t, got.ErrorMessage)
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := r.FindSessionById(ctx, uuid.New())
			assert.ErrorIs(t, err, ErrSessionNotFound)

			err = r.UpdateStatusSession(ctx, constant.SessionStatusFailed, uuid.New(), nil)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestDeleteSessionsBefore(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			old := newSession(now.Add(-2 * time.Hour))
			old.Status = constant.SessionStatusCompleted
			oldActive := newSession(now.Add(-2 * time.Hour))
			fresh := newSession(now)
			fresh.Status = constant.SessionStatusCompleted
			for _, s := range []*entities.Session{old, oldActive, fresh} {
				require.NoError(t, r.CreateSession(ctx, s))
			}

			n, err := r.DeleteSessionsBefore(ctx, now.Add(-time.Hour), time.Time{})
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			_, err = r.FindSessionById(ctx, old.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			_, err = r.FindSessionById(ctx, oldActive.ID)
			assert.NoError(t, err)
			_, err = r.FindSessionById(ctx, fresh.ID)
			assert.NoError(t, err)
		})
	}
}

func TestDeleteStaleProcessingSessions(t *testing.T) {
	for name, r := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			abandoned := newSession(now.Add(-3 * time.Hour))
			running := newSession(now.Add(-90 * time.Minute))
			for _, s := range []*entities.Session{abandoned, running} {
				require.NoError(t, r.CreateSession(ctx, s))
			}

			n, err := r.DeleteSessionsBefore(ctx, now.Add(-time.Hour), now.Add(-2*time.Hour))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			_, err = r.FindSessionById(ctx, abandoned.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			got, err := r.FindSessionById(ctx, running.ID)
			require.NoError(t, err)
			assert.Equal(t, constant.SessionStatusProcessing, got.Status)
		})
	}
}
