package server

import (
	"context"
	"time"

	"hlsbox/cache"
	"hlsbox/config"
	"hlsbox/core/archive"
	"hlsbox/core/audio"
	"hlsbox/core/convert"
	"hlsbox/core/workspace"
	"hlsbox/db"
	"hlsbox/logger"
	"hlsbox/repository"
	"hlsbox/storage"
)

// BuildService assembles the conversion pipeline from cfg. Optional backends that fail to
// connect are logged and left out. The returned func releases their connections.
func BuildService(cfg *config.Config) (*convert.Service, func()) {
	opts := convert.Options{
		Workspaces:        workspace.NewManager(cfg.TempDir),
		Transcoder:        audio.NewFFmpegTranscoder(cfg.FFmpegPath, cfg.TranscodeTimeout),
		Packager:          archive.NewPackager(cfg.ArchiveDir),
		MaxUploadBytes:    cfg.MaxUploadBytes,
		ExposeDiagnostics: cfg.ExposeDiagnostics,
		ToolProbe: func() bool {
			return audio.CheckTool(cfg.FFmpegPath).Available
		},
	}
	var closers []func()

	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, archive cache disabled", logger.ErrorField(err))
		} else {
			opts.Cache = cache.NewArchiveCache(cache.RedisClient, cfg.CacheTTL)
			closers = append(closers, func() { _ = cache.CloseRedis() })
			logger.Info("archive cache enabled", logger.Duration("ttl", cfg.CacheTTL))
		}
	}

	if cfg.MinioEnabled {
		if store, err := connectArchiveStore(cfg); err != nil {
			logger.Warn("MinIO unavailable, archive mirror disabled", logger.ErrorField(err))
		} else {
			opts.Mirror = store
			logger.Info("archive mirror enabled", logger.String("bucket", store.Bucket()))
		}
	}

	if cfg.DBEnabled {
		if err := connectHistory(cfg); err != nil {
			logger.Warn("database unavailable, conversion history disabled", logger.ErrorField(err))
		} else {
			opts.Recorder = repository.NewGormConversionRepository(db.GormDB)
			closers = append(closers, func() { _ = db.CloseGormDB() })
		}
	}

	return convert.NewService(opts), func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func connectArchiveStore(cfg *config.Config) (*storage.ArchiveStore, error) {
	store, err := storage.NewArchiveStore(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func connectHistory(cfg *config.Config) error {
	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		_ = db.CloseGormDB()
		return err
	}
	return nil
}
