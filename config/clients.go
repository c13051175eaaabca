package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const awsEndpoint = "s3.amazonaws.com"

func NewMinioClient(cfg S3) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = awsEndpoint
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// WaitForBucket checks the bucket exists, retrying while the endpoint is unreachable.
func WaitForBucket(ctx context.Context, client *minio.Client, bucket string) error {
	operation := func() (bool, error) {
		ok, err := client.BucketExists(ctx, bucket)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", bucket).Msg("bucket check failed. Retrying...")
			return false, err
		}
		if !ok {
			return false, backoff.Permanent(fmt.Errorf("bucket %q does not exist", bucket))
		}
		return true, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
	return err
}

func NewGCSClient(ctx context.Context, cfg GCS) (*gcs.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return gcs.NewClient(ctx, opts...)
}

func NewDB(cfg Database) (*sql.DB, error) {
	return sql.Open("postgres", cfg.DSN)
}

func NewRedisClient(cfg Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
