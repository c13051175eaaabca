package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"video-splitter/constant"
)

type Config struct {
	App       App
	Server    Server
	Paths     Paths
	Media     Media
	AI        AI
	S3        S3
	GCS       GCS
	Drive     Drive
	Database  Database
	Redis     Redis
	Queue     RabbitMQ
	Retention Retention
}

type App struct {
	Environment string
	Name        string
	SecretKey   string // signs the Drive OAuth state
}

type Server struct {
	HttpPort       string
	MaxUploadBytes int64
	CORSOrigins    []string
}

// BodyLimit returns the maximum accepted request body. Deployments that offload
// the large upload to object storage accept much smaller bodies.
func (s Server) BodyLimit(objectStorage bool) int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	if objectStorage {
		return constant.ObjectStoreUploadBytes
	}
	return constant.LocalMaxUploadBytes
}

type Paths struct {
	UploadDir string
	TempDir   string
}

type Media struct {
	FFprobePath    string
	FFmpegPath     string
	SegmentSeconds int
	SegmentFormat  string
	ProbeTimeout   time.Duration
	SegmentTimeout time.Duration
}

type AI struct {
	GoogleAPIKey      string
	GeminiModel       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	RequestsPerMinute int
	Timeout           time.Duration
	AnalysisPrompt    string
	SegmentsPrompt    string
}

func (a AI) Enabled() bool {
	return a.GoogleAPIKey != "" || a.OpenAIAPIKey != ""
}

type S3 struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string
	UseSSL          bool
	PresignExpiry   time.Duration
}

func (s S3) Enabled() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Bucket != ""
}

type GCS struct {
	Bucket          string
	CredentialsFile string
	PresignExpiry   time.Duration
}

func (g GCS) Enabled() bool {
	return g.Bucket != ""
}

type Drive struct {
	ClientSecretsFile string
	TokenFile         string
	RedirectURL       string
}

func (d Drive) Enabled() bool {
	return d.ClientSecretsFile != ""
}

type Database struct {
	DSN string
}

func (d Database) Enabled() bool {
	return d.DSN != ""
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	LeaseTTL time.Duration
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type RabbitMQ struct {
	URL          string
	ExchangeName string
	Kind         string
	RoutingKey   string
	// requests for objects already uploaded to the bucket
	RequestQueue      string
	RequestRoutingKey string
	Workers           int
}

func (r RabbitMQ) Enabled() bool {
	return r.URL != ""
}

type Retention struct {
	MaxAge   time.Duration
	Interval time.Duration
}

// legacyEnv maps config keys to the environment variable names used by earlier
// deployments of the splitter.
var legacyEnv = map[string]string{
	"app.secret_key":       "SECRET_KEY",
	"ai.google_api_key":    "GOOGLE_API_KEY",
	"ai.openai_api_key":    "OPENAI_API_KEY",
	"ai.openai_base_url":   "OPENAI_BASE_URL",
	"s3.access_key_id":     "AWS_ACCESS_KEY_ID",
	"s3.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"s3.region":            "AWS_REGION",
	"s3.bucket":            "S3_BUCKET",
	"s3.endpoint":          "S3_ENDPOINT",
	"gcs.bucket":           "GCS_BUCKET",
	"gcs.credentials_file": "GCS_CREDENTIALS_FILE",
	"drive.client_secrets": "GOOGLE_CLIENT_SECRETS_FILE",
	"drive.token_file":     "DRIVE_TOKEN_FILE",
	"drive.redirect_url":   "DRIVE_REDIRECT_URL",
	"database.dsn":         "DATABASE_URL",
	"redis.addr":           "REDIS_ADDR",
	"redis.password":       "REDIS_PASSWORD",
	"rabbitmq.url":         "RABBITMQ_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("app.name", "video-splitter")
	v.SetDefault("app.secret_key", "dev-secret-key")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.max_upload_bytes", 0)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("paths.upload_dir", "uploads")
	v.SetDefault("paths.temp_dir", "temp")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.segment_seconds", 120)
	v.SetDefault("media.segment_format", constant.DefaultSegmentFormat)
	v.SetDefault("media.probe_timeout", 30*time.Second)
	v.SetDefault("media.segment_timeout", 300*time.Second)
	v.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	v.SetDefault("ai.openai_model", "gpt-4o-mini")
	v.SetDefault("ai.requests_per_minute", 60)
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.presign_expiry", time.Hour)
	v.SetDefault("gcs.presign_expiry", time.Hour)
	v.SetDefault("drive.token_file", "token.json")
	v.SetDefault("drive.redirect_url", "http://localhost:5000/oauth2callback")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_ttl", 2*time.Hour)
	v.SetDefault("rabbitmq.exchange_name", "segmentation_exchange")
	v.SetDefault("rabbitmq.kind", "topic")
	v.SetDefault("rabbitmq.routing_key", "segmentation.completed")
	v.SetDefault("rabbitmq.request_queue", "segmentation_queue")
	v.SetDefault("rabbitmq.request_routing_key", "segmentation.request")
	v.SetDefault("rabbitmq.workers", 2)
	v.SetDefault("retention.max_age", time.Hour)
	v.SetDefault("retention.interval", time.Hour)
}

// Load reads config.yaml from path when present, then applies .env and
// environment overrides. Missing credentials leave the matching feature disabled.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return &Config{
		App: App{
			Environment: v.GetString("app.environment"),
			Name:        v.GetString("app.name"),
			SecretKey:   v.GetString("app.secret_key"),
		},
		Server: Server{
			HttpPort:       v.GetString("server.port"),
			MaxUploadBytes: v.GetInt64("server.max_upload_bytes"),
			CORSOrigins:    v.GetStringSlice("server.cors_origins"),
		},
		Paths: Paths{
			UploadDir: v.GetString("paths.upload_dir"),
			TempDir:   v.GetString("paths.temp_dir"),
		},
		Media: Media{
			FFprobePath:    v.GetString("media.ffprobe_path"),
			FFmpegPath:     v.GetString("media.ffmpeg_path"),
			SegmentSeconds: v.GetInt("media.segment_seconds"),
			SegmentFormat:  v.GetString("media.segment_format"),
			ProbeTimeout:   v.GetDuration("media.probe_timeout"),
			SegmentTimeout: v.GetDuration("media.segment_timeout"),
		},
		AI: AI{
			GoogleAPIKey:      v.GetString("ai.google_api_key"),
			GeminiModel:       v.GetString("ai.gemini_model"),
			OpenAIAPIKey:      v.GetString("ai.openai_api_key"),
			OpenAIBaseURL:     v.GetString("ai.openai_base_url"),
			OpenAIModel:       v.GetString("ai.openai_model"),
			RequestsPerMinute: v.GetInt("ai.requests_per_minute"),
			Timeout:           v.GetDuration("ai.timeout"),
			AnalysisPrompt:    v.GetString("ai.analysis_prompt"),
			SegmentsPrompt:    v.GetString("ai.segments_prompt"),
		},
		S3: S3{
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			Region:          v.GetString("s3.region"),
			Bucket:          v.GetString("s3.bucket"),
			Endpoint:        v.GetString("s3.endpoint"),
			UseSSL:          v.GetBool("s3.use_ssl"),
			PresignExpiry:   v.GetDuration("s3.presign_expiry"),
		},
		GCS: GCS{
			Bucket:          v.GetString("gcs.bucket"),
			CredentialsFile: v.GetString("gcs.credentials_file"),
			PresignExpiry:   v.GetDuration("gcs.presign_expiry"),
		},
		Drive: Drive{
			ClientSecretsFile: v.GetString("drive.client_secrets"),
			TokenFile:         v.GetString("drive.token_file"),
			RedirectURL:       v.GetString("drive.redirect_url"),
		},
		Database: Database{
			DSN: v.GetString("database.dsn"),
		},
		Redis: Redis{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LeaseTTL: v.GetDuration("redis.lease_ttl"),
		},
		Queue: RabbitMQ{
			URL:          v.GetString("rabbitmq.url"),
			ExchangeName: v.GetString("rabbitmq.exchange_name"),
			Kind:         v.GetString("rabbitmq.kind"),
			RoutingKey:   v.GetString("rabbitmq.routing_key"),

			RequestQueue:      v.GetString("rabbitmq.request_queue"),
			RequestRoutingKey: v.GetString("rabbitmq.request_routing_key"),
			Workers:           v.GetInt("rabbitmq.workers"),
		},
		Retention: Retention{
			MaxAge:   v.GetDuration("retention.max_age"),
			Interval: v.GetDuration("retention.interval"),
		},
	}, nil
}
