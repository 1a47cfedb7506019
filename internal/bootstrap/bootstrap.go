// Package bootstrap provides dependency initialization for the motionphoto
// commands.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/maauso/motionphoto/internal/config"
	"github.com/maauso/motionphoto/internal/job"
	"github.com/maauso/motionphoto/internal/motion"
	"github.com/maauso/motionphoto/internal/scan"
	"github.com/maauso/motionphoto/internal/server"
	"github.com/maauso/motionphoto/internal/storage"
	"github.com/maauso/motionphoto/internal/watch"
)

// Dependencies holds every initialized component.
type Dependencies struct {
	Engine  *motion.Engine
	Store   storage.Storage
	Service *job.ExtractService
	Scanner *scan.Scanner
	Watcher *watch.Watcher

	cfg    *config.Config
	logger *slog.Logger
}

// NewDependencies creates and initializes all dependencies on the OS
// filesystem.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	return newDependencies(cfg, logger, afero.NewOsFs())
}

func newDependencies(cfg *config.Config, logger *slog.Logger, fsys afero.Fs) (*Dependencies, error) {
	store, err := initStorage(cfg, logger, fsys)
	if err != nil {
		return nil, err
	}

	engine := motion.New(
		motion.WithFs(fsys),
		motion.WithLogger(logger),
		motion.WithCollisionPolicy(cfg.Collision()),
	)

	svc := job.NewExtractService(job.NewMemoryRepository(), engine, store, logger)

	return &Dependencies{
		Engine:  engine,
		Store:   store,
		Service: svc,
		Scanner: scan.New(fsys, engine,
			scan.WithWorkers(cfg.ScanWorkers),
			scan.WithLogger(logger),
		),
		Watcher: watch.New(engine,
			watch.WithSettle(time.Duration(cfg.WatchSettleMs)*time.Millisecond),
			watch.WithLogger(logger),
		),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Handler builds the HTTP API with its middleware chain.
func (d *Dependencies) Handler() http.Handler {
	handlers := server.NewHandlers(d.Service, d.Store, d.logger,
		server.WithMediaRoot(d.cfg.MediaRoot),
		server.WithScanner(d.Scanner),
	)
	return server.NewRouter(handlers, d.logger, server.DefaultConfig())
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger, fsys afero.Fs) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(fsys, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(fsys, cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
