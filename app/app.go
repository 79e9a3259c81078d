// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/api"
	"github.com/raushankrgupta/fashionfit/capture"
	"github.com/raushankrgupta/fashionfit/config"
	"github.com/raushankrgupta/fashionfit/garment"
	"github.com/raushankrgupta/fashionfit/kv"
	"github.com/raushankrgupta/fashionfit/landmarks"
	"github.com/raushankrgupta/fashionfit/media"
	"github.com/raushankrgupta/fashionfit/notify"
	"github.com/raushankrgupta/fashionfit/recommend"
	"github.com/raushankrgupta/fashionfit/store"
	"github.com/raushankrgupta/fashionfit/tryon"
)

const redisKeyPrefix = "fashionfit:"

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Sessions   store.Sessions
	Profiles   store.Profiles
	Media      media.Storage
	MediaFiles http.Handler
	Accounts   *account.Service
	TryOn      *tryon.Service
	Garments   *garment.Resolver

	closers []func(context.Context) error
}

// New connects every backend named by cfg. Call Close when done, also after a
// partial failure has been returned.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.initStores(ctx); err != nil {
		return a, err
	}
	if err := a.initMedia(ctx); err != nil {
		return a, err
	}

	var accountOpts []account.Option
	if google := account.GoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL); google != nil {
		accountOpts = append(accountOpts, account.WithGoogle(google))
	}
	a.Accounts = account.NewService(a.Profiles, cfg.JWTSecret, accountOpts...)

	var renderer garment.Renderer
	if cfg.RenderGarmentPages {
		renderer = garment.ChromeRenderer{Timeout: 45 * time.Second, Settle: 2 * time.Second}
	}
	a.Garments = garment.NewResolver(renderer, logger.Named("garment"))

	deps := tryon.Deps{
		Media:            a.Media,
		Sessions:         a.Sessions,
		Images:           a.Garments,
		Logger:           logger.Named("tryon"),
		RecommendTimeout: cfg.RecommendTimeout,
	}

	provider, err := a.landmarkProvider()
	if err != nil {
		return a, err
	}
	deps.Provider = provider

	if cfg.GeminiAPIKey != "" {
		gemini, err := recommend.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return a, err
		}
		a.onClose(func(context.Context) error { return gemini.Close() })
		deps.Evaluator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, every try-on gets the fallback recommendation")
		deps.Evaluator = recommend.Unavailable(recommend.ErrMissingAPIKey)
	}

	if cfg.SendGridAPIKey != "" {
		deps.Notifier = notify.NewSendGrid(cfg.SendGridAPIKey, cfg.NotifyFrom, logger.Named("notify"))
	}
	if cfg.CameraSnapshotURL != "" {
		deps.Camera = capture.NewSnapshot(cfg.CameraSnapshotURL)
	}

	a.TryOn = tryon.NewService(deps)
	return a, nil
}

// OpenStores connects only the session and profile stores.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	return a, a.initStores(ctx)
}

func (a *App) initStores(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StoreBackend {
	case "file":
		files, err := kv.NewFile(cfg.DataDir)
		if err != nil {
			return err
		}
		a.useBlob(files)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.onClose(func(context.Context) error { return client.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		a.useBlob(kv.NewRedis(client, redisKeyPrefix))
	case "mongo":
		client, err := store.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		a.onClose(client.Disconnect)
		db := client.Database(cfg.DBName)
		a.Sessions = store.NewMongoSessions(db)
		a.Profiles = store.NewMongoProfiles(db)
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	a.Logger.Info("store ready", zap.String("backend", cfg.StoreBackend))
	return nil
}

func (a *App) useBlob(s kv.Store) {
	a.Sessions = store.NewBlobSessions(s)
	a.Profiles = store.NewBlobProfiles(s)
}

func (a *App) initMedia(ctx context.Context) error {
	cfg := a.Config
	switch cfg.MediaBackend {
	case "local":
		local, err := media.NewLocal(cfg.MediaDir, "/media/")
		if err != nil {
			return err
		}
		a.Media = local
		a.MediaFiles = local.Handler()
	case "s3":
		s3, err := media.NewS3(ctx, media.S3Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AWSBucketName,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		a.Media = s3
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
	return nil
}

func (a *App) landmarkProvider() (landmarks.Provider, error) {
	switch a.Config.LandmarkProvider {
	case "none":
		a.Logger.Info("no landmark provider, clients must send landmarks")
		return landmarks.None{}, nil
	case "browser":
		b, err := landmarks.NewBrowser(a.Config.DetectorPageURL, time.Minute, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onClose(b.Close)
		return b, nil
	default:
		return nil, fmt.Errorf("unknown LANDMARK_PROVIDER %q", a.Config.LandmarkProvider)
	}
}

func (a *App) onClose(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// Handler is the HTTP API.
func (a *App) Handler() http.Handler {
	h := &api.Handler{
		Accounts:   a.Accounts,
		TryOn:      a.TryOn,
		Sessions:   a.Sessions,
		Media:      a.Media,
		Garments:   a.Garments,
		Logger:     a.Logger.Named("api"),
		MediaFiles: a.MediaFiles,
	}
	return h.Routes()
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
