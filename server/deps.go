package server

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/dto"
	"video-splitter/handler"
	"video-splitter/pkg/caption"
	"video-splitter/pkg/lease"
	"video-splitter/pkg/media"
	"video-splitter/pkg/rabbitmq"
	"video-splitter/pkg/storage"
	"video-splitter/repository"
	"video-splitter/service"
)

const downloadRoute = "/download"

func newRepository(ctx context.Context, cfg *config.Config) (repository.SessionRepository, error) {
	level := gormlogger.Warn
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		level = gormlogger.Info
	}
	repo, err := repository.Open(cfg.Database, level)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Enabled() {
		zerolog.Ctx(ctx).Info().Msg("session records stored in database")
	}
	return repo, nil
}

// newLeaseTracker shares leases through redis when it answers, otherwise
// keeps them in memory.
func newLeaseTracker(ctx context.Context, cfg *config.Config) lease.Tracker {
	if !cfg.Redis.Enabled() {
		return lease.NewMemory(cfg.Redis.LeaseTTL)
	}
	client := config.NewRedisClient(cfg.Redis)
	if err := client.Ping(ctx).Err(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using in-process leases")
		_ = client.Close()
		return lease.NewMemory(cfg.Redis.LeaseTTL)
	}
	zerolog.Ctx(ctx).Info().Str("addr", cfg.Redis.Addr).Msg("session leases stored in redis")
	return lease.NewRedis(client, cfg.Redis.LeaseTTL)
}

func newGenerator(ctx context.Context, cfg config.AI) caption.TextGenerator {
	var (
		gen caption.TextGenerator
		err error
	)
	switch {
	case cfg.GoogleAPIKey != "":
		gen, err = caption.NewGemini(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	case cfg.OpenAIAPIKey != "":
		gen = caption.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("text generator unavailable, captions use fallback text")
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("generator", gen.Name()).Msg("AI captions enabled")
	return caption.NewRateLimited(gen, cfg.RequestsPerMinute, cfg.Timeout)
}

// newBackend selects where archives go: S3 when configured and reachable,
// then GCS, then the local temp directory.
func newBackend(ctx context.Context, cfg *config.Config, local *storage.Local) storage.Backend {
	if cfg.S3.Enabled() {
		client, err := config.NewMinioClient(cfg.S3)
		if err == nil {
			err = config.WaitForBucket(ctx, client, cfg.S3.Bucket)
		}
		if err == nil {
			zerolog.Ctx(ctx).Info().Str("bucket", cfg.S3.Bucket).Msg("archives stored in S3")
			return storage.NewS3(client, cfg.S3.Bucket, cfg.S3.PresignExpiry)
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("S3 storage unavailable")
	}
	if cfg.GCS.Enabled() {
		client, err := config.NewGCSClient(ctx, cfg.GCS)
		if err == nil {
			zerolog.Ctx(ctx).Info().Str("bucket", cfg.GCS.Bucket).Msg("archives stored in GCS")
			return storage.NewGCS(client, cfg.GCS.Bucket, cfg.GCS.PresignExpiry)
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("GCS storage unavailable")
	}
	return local
}

func newDrive(ctx context.Context, cfg config.Drive, stateKey string) *storage.Drive {
	if !cfg.Enabled() {
		return nil
	}
	d, err := storage.NewDrive(cfg.ClientSecretsFile, cfg.TokenFile, cfg.RedirectURL, stateKey)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Google Drive export unavailable")
		return nil
	}
	return d
}

func newBroker(ctx context.Context, cfg *config.Config) *amqp.Connection {
	if !cfg.Queue.Enabled() {
		return nil
	}
	// the connection closes itself when ctx is done
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return nil
	}
	return conn
}

// newConsumer accepts queued requests only when archives come from a bucket
// the service can fetch sources from.
func newConsumer(ctx context.Context, cfg *config.Config, conn *amqp.Connection, backend storage.Backend) rabbitmq.Consumer[service.Service] {
	if conn == nil {
		return nil
	}
	if _, ok := backend.(storage.SourceFetcher); !ok {
		zerolog.Ctx(ctx).Info().Str("storage", backend.Name()).Msg("queued segmentation requests disabled")
		return nil
	}
	return rabbitmq.NewConsumer(conn, &cfg.Queue, cfg.Queue.Workers, handler.ProcessVideoMessage)
}

type app struct {
	svc       service.Service
	sweeper   *service.Sweeper
	consumer  rabbitmq.Consumer[service.Service]
	s3Enabled bool
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	repo, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	leases := newLeaseTracker(ctx, cfg)

	captioner, err := caption.New(newGenerator(ctx, cfg.AI), cfg.Media.SegmentSeconds,
		caption.WithPrompts(cfg.AI.AnalysisPrompt, cfg.AI.SegmentsPrompt))
	if err != nil {
		return nil, err
	}

	local := storage.NewLocal(cfg.Paths.TempDir, downloadRoute)
	backend := newBackend(ctx, cfg, local)
	broker := newBroker(ctx, cfg)

	svc := service.NewService(cfg, service.Dependencies{
		Repo:      repo,
		Prober:    media.NewProber(cfg.Media.FFprobePath, cfg.Media.ProbeTimeout),
		Segmenter: media.NewSegmenter(cfg.Media.FFmpegPath, cfg.Media.SegmentFormat, cfg.Media.SegmentTimeout),
		Captioner: captioner,
		Backend:   backend,
		Local:     local,
		Drive:     newDrive(ctx, cfg.Drive, cfg.App.SecretKey),
		Leases:    leases,
		Events:    rabbitmq.NewPublisher[dto.SessionCompleted](broker, &cfg.Queue),
	})
	return &app{
		svc:       svc,
		sweeper:   service.NewSweeper(cfg, leases, repo),
		consumer:  newConsumer(ctx, cfg, broker, backend),
		s3Enabled: backend.Name() == storage.S3Backend,
	}, nil
}
