package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/handler"
	"video-splitter/pkg/storage"
	"video-splitter/service"
)

//go:embed templates/index.html
var indexHTML string

const shutdownTimeout = 30 * time.Second

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.TempDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	objectStorage := a.svc.StorageName() != storage.LocalBackend
	r := newRouter(ctx, cfg, handler.NewHandler(a.svc, a.s3Enabled), cfg.Server.BodyLimit(objectStorage))

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", srv.Addr).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.sweeper.Run(gCtx)
	})
	if a.consumer != nil {
		g.Go(func() error {
			err := a.consumer.Consume(gCtx, a.svc)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		zerolog.Ctx(ctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return err
}

// SweepOnce runs a single retention pass over the working directories.
func SweepOnce(cfg *config.Config) error {
	ctx := setupLogger(cfg)
	repo, err := newRepository(ctx, cfg)
	if err != nil {
		return err
	}
	removed, err := service.NewSweeper(cfg, newLeaseTracker(ctx, cfg), repo).Sweep(ctx)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("retention sweep finished")
	return nil
}

func newRouter(ctx context.Context, cfg *config.Config, h *handler.Handler, bodyLimit int64) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestLogger(*zerolog.Ctx(ctx)))
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	r.Use(handler.LimitBody(bodyLimit))
	r.SetHTMLTemplate(template.Must(template.New(handler.IndexTemplate).Parse(indexHTML)))

	addHealth(r)
	h.Register(r)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", cfg.App.Name).Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
