package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/dto"
	"video-splitter/entities"
	"video-splitter/pkg/archive"
	"video-splitter/pkg/caption"
	"video-splitter/pkg/lease"
	"video-splitter/pkg/media"
	"video-splitter/pkg/rabbitmq"
	"video-splitter/pkg/storage"
	"video-splitter/repository"
)

// Upload is a video received in the request body.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// Result describes one successfully processed session.
type Result struct {
	Session   *entities.Session
	Document  *entities.SegmentationMetadata
	Reference storage.Reference
}

type Estimate struct {
	SizeMB            float64
	EstimatedSegments int
	Analysis          caption.Result[entities.VideoAnalysis]
}

type Service interface {
	Analyze(ctx context.Context, filename string, size int64) (*Estimate, error)
	ProcessUpload(ctx context.Context, upload Upload) (*Result, error)
	PresignUpload(ctx context.Context, filename, contentType string) (*dto.PresignResponse, error)
	ProcessObject(ctx context.Context, req dto.ProcessVideoRequest) (*Result, error)
	FindSession(ctx context.Context, id uuid.UUID) (*entities.Session, error)
	ArchivePath(filename string) (string, error)
	AuthorizeDrive() (string, error)
	CompleteDriveAuthorization(ctx context.Context, state, code string) error
	ExportToDrive(ctx context.Context, filename string) (storage.Reference, error)
	AIEnabled() bool
	StorageName() string
	DriveEnabled() bool
	DriveAuthorized() bool
}

// Dependencies are the collaborators a service is assembled from. Backend and
// Local are required; Drive may be nil.
type Dependencies struct {
	Repo      repository.SessionRepository
	Prober    *media.Prober
	Segmenter *media.Segmenter
	Captioner *caption.Captioner
	Backend   storage.Backend
	Local     *storage.Local
	Drive     *storage.Drive
	Leases    lease.Tracker
	Events    rabbitmq.Publisher[dto.SessionCompleted]
}

type service struct {
	Dependencies
	cfg *config.Config
	now func() time.Time
}

func NewService(cfg *config.Config, deps Dependencies) Service {
	if deps.Leases == nil {
		deps.Leases = lease.NewMemory(cfg.Redis.LeaseTTL)
	}
	if deps.Events == nil {
		deps.Events = rabbitmq.NewPublisher[dto.SessionCompleted](nil, &cfg.Queue)
	}
	return &service{Dependencies: deps, cfg: cfg, now: time.Now}
}

func (s *service) AIEnabled() bool {
	return s.Captioner.Enabled()
}

func (s *service) StorageName() string {
	return s.Backend.Name()
}

func (s *service) DriveEnabled() bool {
	return s.Drive != nil
}

func (s *service) DriveAuthorized() bool {
	return s.Drive != nil && s.Drive.Authorized()
}

func (s *service) Analyze(ctx context.Context, filename string, size int64) (*Estimate, error) {
	if _, err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	sizeMB := float64(size) / float64(constant.MiB)
	estimated := max(1, int(sizeMB/50))
	analysis := s.Captioner.AnalyzeVideo(ctx, caption.VideoInfo{
		Duration:       0,
		SegmentCount:   estimated,
		FileSizeMB:     sizeMB,
		SegmentSeconds: s.cfg.Media.SegmentSeconds,
	})
	return &Estimate{SizeMB: sizeMB, EstimatedSegments: estimated, Analysis: analysis}, nil
}

func (s *service) ProcessUpload(ctx context.Context, upload Upload) (result *Result, err error) {
	name, err := ValidateFilename(upload.Filename)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	ctx = withSession(ctx, sessionID)
	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session := s.record(ctx, sessionID, filepath.Base(upload.Filename), nil, upload.Size)
	defer s.failOnError(ctx, sessionID, &err)

	sourcePath := s.sourcePath(sessionID, name)
	size, err := saveUpload(sourcePath, upload.Content)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save upload")
		return nil, errors.Join(ErrStorage, err)
	}
	zerolog.Ctx(ctx).Info().Str("file", name).Int64("size", size).Msg("upload saved")

	session.FileSizeBytes = size
	return s.process(ctx, session, sourcePath)
}

func (s *service) PresignUpload(ctx context.Context, filename, contentType string) (*dto.PresignResponse, error) {
	presigner, ok := s.Backend.(storage.UploadPresigner)
	if !ok {
		return nil, storage.ErrNotConfigured
	}
	name, err := ValidateFilename(filename)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}

	sessionID := uuid.New()
	objectName := storage.UploadObjectName(sessionID.String(), name)
	u, err := presigner.PresignUpload(ctx, objectName, contentType)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object", objectName).Msg("failed to presign upload")
		return nil, errors.Join(ErrStorage, err)
	}
	return &dto.PresignResponse{
		PresignedURL: u,
		ObjectName:   objectName,
		SessionID:    sessionID,
		ContentType:  contentType,
	}, nil
}

// ProcessObject splits a video the client already uploaded to the bucket.
// Once the object is known to belong to the session, every outcome is
// recorded on the session, including a failed download.
func (s *service) ProcessObject(ctx context.Context, req dto.ProcessVideoRequest) (result *Result, err error) {
	fetcher, ok := s.Backend.(storage.SourceFetcher)
	if !ok {
		return nil, storage.ErrNotConfigured
	}
	prefix := storage.UploadObjectName(req.SessionID.String(), "") + "/"
	if !strings.HasPrefix(req.ObjectName, prefix) || strings.Contains(req.ObjectName, "..") {
		return nil, ErrInvalidObject
	}
	original := req.OriginalFilename
	if original == "" {
		original = strings.TrimPrefix(req.ObjectName, prefix)
	}

	ctx = withSession(ctx, req.SessionID)
	release, err := s.acquire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// a PROCESSING record without a lease is a run that died; it is redone
	if existing, findErr := s.Repo.FindSessionById(ctx, req.SessionID); findErr == nil && existing.Status == constant.SessionStatusCompleted {
		zerolog.Ctx(ctx).Warn().Msg("session already completed")
		return nil, ErrSessionInUse
	}

	session := s.record(ctx, req.SessionID, original, &req.ObjectName, 0)
	defer s.failOnError(ctx, req.SessionID, &err)

	name, err := ValidateFilename(filepath.Base(req.ObjectName))
	if err != nil {
		return nil, err
	}
	sourcePath := s.sourcePath(req.SessionID, name)
	if err := os.MkdirAll(filepath.Dir(sourcePath), os.ModePerm); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	zerolog.Ctx(ctx).Info().Str("object", req.ObjectName).Msg("downloading source object")
	if err := fetcher.Fetch(ctx, req.ObjectName, sourcePath); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to download source object")
		_ = os.Remove(sourcePath)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrStorage, err)
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		_ = os.Remove(sourcePath)
		return nil, errors.Join(ErrStorage, err)
	}

	session.FileSizeBytes = info.Size()
	return s.process(ctx, session, sourcePath)
}

// record stores the session as PROCESSING, replacing a record left by an
// earlier failed run. A store failure is logged and processing continues.
func (s *service) record(ctx context.Context, sessionID uuid.UUID, original string, sourceObject *string, size int64) *entities.Session {
	session := &entities.Session{
		ID:               sessionID,
		OriginalFilename: original,
		SourceObject:     sourceObject,
		WorkDir:          filepath.Join(s.cfg.Paths.TempDir, sessionID.String()),
		FileSizeBytes:    size,
		Status:           constant.SessionStatusProcessing,
		StorageBackend:   s.Backend.Name(),
		CreatedAt:        s.now(),
	}
	if err := s.Repo.SaveSession(ctx, session); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to record session")
	}
	return session
}

func (s *service) failOnError(ctx context.Context, sessionID uuid.UUID, errp *error) {
	if *errp == nil {
		return
	}
	msg := (*errp).Error()
	if err := s.Repo.UpdateStatusSession(context.WithoutCancel(ctx), constant.SessionStatusFailed, sessionID, &msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update session status")
	}
}

// process runs probe, segment, caption, package and persist for a source that
// is already on local disk. The caller holds the session lease and marks the
// session FAILED when an error is returned.
func (s *service) process(ctx context.Context, session *entities.Session, sourcePath string) (*Result, error) {
	started := s.now()
	sessionID := session.ID
	original := session.OriginalFilename
	size := session.FileSizeBytes
	segmentDir := session.WorkDir
	zipPath := filepath.Join(s.cfg.Paths.TempDir, constant.ArchiveName(sessionID.String()))

	defer func() {
		if err := os.RemoveAll(segmentDir); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to remove segment directory")
		}
		if err := os.Remove(sourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to remove source file")
		}
	}()

	if mime := sniffContent(sourcePath); mime != "" {
		zerolog.Ctx(ctx).Debug().Str("mime", mime).Msg("detected source content type")
	}

	duration := s.Prober.Duration(ctx, sourcePath)
	if duration <= 0 {
		zerolog.Ctx(ctx).Warn().Str("file", original).Msg("duration unknown, aborting")
		return nil, ErrDurationUnknown
	}
	segmentSeconds := s.cfg.Media.SegmentSeconds
	expected := media.SegmentCount(duration, segmentSeconds)

	analysis := s.Captioner.AnalyzeVideo(ctx, caption.VideoInfo{
		Duration:       duration,
		SegmentCount:   expected,
		FileSizeMB:     float64(size) / float64(constant.MiB),
		SegmentSeconds: segmentSeconds,
	})

	zerolog.Ctx(ctx).Info().Float64("duration", duration).Int("expected_segments", expected).Msg("segmenting video")
	segments, err := s.Segmenter.Split(ctx, sourcePath, segmentDir, segmentSeconds)
	if err != nil {
		return nil, errors.Join(ErrSegmentation, err)
	}
	if len(segments) == 0 {
		return nil, errors.Join(ErrSegmentation, errors.New("no segments produced"))
	}
	if len(segments) != expected {
		zerolog.Ctx(ctx).Warn().Int("expected", expected).Int("produced", len(segments)).Msg("segment count differs from estimate")
	}

	captions := s.Captioner.DescribeSegments(ctx, segments)

	doc := &entities.SegmentationMetadata{
		OriginalVideo:    original,
		TotalDuration:    duration,
		SegmentCount:     len(segments),
		AIAnalysis:       analysis.Value,
		SegmentsMetadata: entities.MergeCaptions(segments, captions.Value),
		ProcessingTime:   s.now(),
		AIGenerated:      s.Captioner.Enabled(),
		AIStatus:         string(analysis.Status),
	}
	if _, err := archive.Package(ctx, segmentDir, zipPath, doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to package segments")
		return nil, errors.Join(ErrPackaging, err)
	}

	ref, err := s.Backend.Persist(ctx, zipPath, sessionID.String())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("backend", s.Backend.Name()).Msg("failed to persist archive")
		_ = os.Remove(zipPath)
		return nil, errors.Join(ErrStorage, err)
	}
	if s.Backend.Name() != storage.LocalBackend {
		if err := os.Remove(zipPath); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to remove local archive")
		}
	}

	session.Duration = duration
	session.SegmentCount = doc.SegmentCount
	session.Status = constant.SessionStatusCompleted
	session.ArchiveName = ref.Filename
	session.DownloadURL = ref.DownloadURL
	session.AIGenerated = doc.AIGenerated
	if err := s.Repo.SaveSession(ctx, session); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to update session")
	}

	event := dto.SessionCompleted{
		SessionID:     sessionID,
		OriginalVideo: original,
		SegmentCount:  doc.SegmentCount,
		TotalDuration: duration,
		Storage:       ref.Backend,
		ArchiveName:   ref.Filename,
		DownloadURL:   ref.DownloadURL,
		AIGenerated:   doc.AIGenerated,
		CompletedAt:   s.now(),
	}
	if err := s.Events.Publish(ctx, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to publish completion event")
	}

	zerolog.Ctx(ctx).Info().
		Int("segment_count", doc.SegmentCount).
		Dur("elapsed", s.now().Sub(started)).
		Msg("session completed")
	return &Result{Session: session, Document: doc, Reference: ref}, nil
}

func (s *service) FindSession(ctx context.Context, id uuid.UUID) (*entities.Session, error) {
	return s.Repo.FindSessionById(ctx, id)
}

func (s *service) ArchivePath(filename string) (string, error) {
	p, err := s.Local.Open(filename)
	if err != nil {
		return "", ErrArchiveNotFound
	}
	return p, nil
}

func (s *service) AuthorizeDrive() (string, error) {
	if s.Drive == nil {
		return "", storage.ErrNotConfigured
	}
	return s.Drive.AuthCodeURL(), nil
}

func (s *service) CompleteDriveAuthorization(ctx context.Context, state, code string) error {
	if s.Drive == nil {
		return storage.ErrNotConfigured
	}
	return s.Drive.Exchange(ctx, state, code)
}

func (s *service) ExportToDrive(ctx context.Context, filename string) (storage.Reference, error) {
	if s.Drive == nil {
		return storage.Reference{}, storage.ErrNotConfigured
	}
	p, err := s.ArchivePath(filename)
	if err != nil {
		return storage.Reference{}, err
	}
	ref, err := s.Drive.Persist(ctx, p, "")
	if err != nil {
		if errors.Is(err, storage.ErrNotAuthorized) {
			return storage.Reference{}, err
		}
		return storage.Reference{}, errors.Join(ErrStorage, err)
	}
	return ref, nil
}

func (s *service) sourcePath(sessionID uuid.UUID, name string) string {
	return filepath.Join(s.cfg.Paths.UploadDir, fmt.Sprintf("%s_%s", sessionID, name))
}

// acquire takes the session lease. A lease held by another run rejects the
// request; an unreachable tracker only costs sweeper protection.
func (s *service) acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	err := s.Leases.Acquire(ctx, sessionID.String())
	if errors.Is(err, lease.ErrHeld) {
		zerolog.Ctx(ctx).Warn().Msg("session is already being processed")
		return nil, errors.Join(ErrSessionInUse, err)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to acquire session lease")
	}
	return func() {
		if err := s.Leases.Release(context.WithoutCancel(ctx), sessionID.String()); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to release session lease")
		}
	}, nil
}

func withSession(ctx context.Context, sessionID uuid.UUID) context.Context {
	logger := zerolog.Ctx(ctx).With().Str("session_id", sessionID.String()).Logger()
	return logger.WithContext(ctx)
}

func saveUpload(path string, content io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}
