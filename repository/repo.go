package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/entities"
)

var ErrSessionNotFound = errors.New("session not found")

const sqlitePrefix = "sqlite:"

type SessionRepository interface {
	CreateSession(ctx context.Context, session *entities.Session) error
	FindSessionById(ctx context.Context, id uuid.UUID) (*entities.Session, error)
	UpdateStatusSession(ctx context.Context, status constant.SessionStatus, id uuid.UUID, errMsg *string) error
	SaveSession(ctx context.Context, session *entities.Session) error
	// DeleteSessionsBefore removes finished sessions created before cutoff and
	// PROCESSING sessions created before staleBefore, whose run must have died.
	// A zero staleBefore keeps every PROCESSING session.
	DeleteSessionsBefore(ctx context.Context, cutoff, staleBefore time.Time) (int64, error)
}

type repo struct {
	db *gorm.DB
}

// Open picks the session store from the DSN: empty keeps records in memory,
// "sqlite:<path>" uses a local file, anything else is a postgres DSN.
func Open(cfg config.Database, level logger.LogLevel) (SessionRepository, error) {
	if !cfg.Enabled() {
		return NewMemoryRepo(), nil
	}

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(level)}
	var (
		gormDB *gorm.DB
		err    error
	)
	if path, ok := strings.CutPrefix(cfg.DSN, sqlitePrefix); ok {
		gormDB, err = gorm.Open(sqlite.Open(path), gormCfg)
	} else {
		sqlDB, openErr := config.NewDB(cfg)
		if openErr != nil {
			return nil, openErr
		}
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return NewRepo(gormDB)
}

func NewRepo(db *gorm.DB) (SessionRepository, error) {
	if err := db.AutoMigrate(&entities.Session{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &repo{db: db}, nil
}

func (r *repo) CreateSession(ctx context.Context, session *entities.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindSessionById(ctx context.Context, id uuid.UUID) (*entities.Session, error) {
	session := &entities.Session{}
	err := r.db.WithContext(ctx).First(session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *repo) UpdateStatusSession(ctx context.Context, status constant.SessionStatus, id uuid.UUID, errMsg *string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"updated_at":    time.Now(),
	}
	res := r.db.WithContext(ctx).Model(&entities.Session{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *repo) SaveSession(ctx context.Context, session *entities.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repo) DeleteSessionsBefore(ctx context.Context, cutoff, staleBefore time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Where("created_at < ? AND status <> ?", cutoff, constant.SessionStatusProcessing)
	if !staleBefore.IsZero() {
		query = query.Or("created_at < ? AND status = ?", staleBefore, constant.SessionStatusProcessing)
	}
	res := query.Delete(&entities.Session{})
	return res.RowsAffected, res.Error
}
