package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hlsbox/config"
	"hlsbox/core/archive"
	"hlsbox/core/audio"
	"hlsbox/logger"
)

const shutdownTimeout = 10 * time.Second

// Start initializes and starts the HTTP server, blocking until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	service, closeBackends := BuildService(cfg)
	defer closeBackends()

	status := audio.CheckTool(cfg.FFmpegPath)
	if status.Available {
		logger.Info("ffmpeg ready", logger.String("path", status.Path))
	} else {
		logger.Warn("ffmpeg not available, conversions will fail until it is provisioned",
			logger.String("path", status.Path),
			logger.String("reason", status.Reason))
	}

	if watcher, err := audio.NewToolWatcher(cfg.FFmpegPath, nil); err != nil {
		logger.Warn("ffmpeg watcher disabled", logger.ErrorField(err))
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	go archive.NewSweeper(cfg.ArchiveDir, cfg.ArchiveMaxAge).Run(ctx, cfg.SweepInterval)

	handler := NewHandler(service, cfg.FFmpegPath, cfg.MaxRequestBytes)
	router := NewRouter(handler, cfg.AuthJWTSecret)

	// 设置服务器超时
	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      WithCORS(router, cfg.CORSOrigins),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.TranscodeTimeout + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.ServerAddr),
			logger.String("ffmpegPath", cfg.FFmpegPath),
			logger.Bool("auth", cfg.AuthJWTSecret != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
