package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"hlsbox/core/archive"
	"hlsbox/core/audio"
	"hlsbox/core/workspace"
	"hlsbox/logger"
	"hlsbox/model"
)

// ArchiveCache stores finished archives by input hash. Get returns nil, nil on a miss.
type ArchiveCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ArchiveMirror keeps a copy of each produced archive, returning where it was stored.
type ArchiveMirror interface {
	Upload(ctx context.Context, art *archive.Artifact) (string, error)
}

// Recorder persists the outcome of each conversion.
type Recorder interface {
	Record(ctx context.Context, c *model.Conversion) error
}

// Options wires a Service. Cache, Mirror and Recorder are optional.
type Options struct {
	Workspaces        *workspace.Manager
	Transcoder        audio.Transcoder
	Packager          *archive.Packager
	MaxUploadBytes    int64
	ExposeDiagnostics bool

	// ToolProbe gates cache hits so a missing tool fails every request, cached or not.
	ToolProbe func() bool

	Cache    ArchiveCache
	Mirror   ArchiveMirror
	Recorder Recorder
}

// Service runs the validate -> workspace -> transcode -> package pipeline.
type Service struct {
	opts Options
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	return &Service{opts: opts}
}

// MaxUploadBytes returns the configured upload limit.
func (s *Service) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

// CacheKey derives the archive cache key for an input.
func CacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "hlsbox:archive:" + hex.EncodeToString(sum[:])
}

// Convert turns asset into a zip archive. Every failure is a *Error. The returned
// artifact's file belongs to the caller.
func (s *Service) Convert(ctx context.Context, asset Asset) (*archive.Artifact, error) {
	start := time.Now()
	art, cacheHit, err := s.convert(ctx, asset)
	elapsed := time.Since(start)

	fields := []logger.Field{
		logger.String("requestId", RequestID(ctx)),
		logger.String("filename", asset.Filename),
		logger.String("contentType", asset.ContentType),
		logger.Int("inputBytes", len(asset.Data)),
		logger.Duration("elapsed", elapsed),
	}
	if err != nil {
		logger.Warn("conversion failed", append(fields,
			logger.String("kind", string(KindOf(err))),
			logger.ErrorField(err))...)
	} else {
		logger.Info("conversion finished", append(fields,
			logger.String("downloadName", art.DownloadName),
			logger.Int("entries", len(art.Entries)),
			logger.Int64("archiveBytes", art.Size),
			logger.Bool("cacheHit", cacheHit))...)
	}

	s.record(ctx, asset, art, cacheHit, err, elapsed)
	if err != nil {
		return nil, err
	}
	return art, nil
}

func (s *Service) convert(ctx context.Context, asset Asset) (*archive.Artifact, bool, error) {
	if err := Validate(asset, s.opts.MaxUploadBytes); err != nil {
		return nil, false, err
	}

	var key string
	if s.opts.Cache != nil {
		key = CacheKey(asset.Data)
		if art := s.fromCache(ctx, key, asset.Filename); art != nil {
			return art, true, nil
		}
	}

	var art *archive.Artifact
	err := s.opts.Workspaces.With(func(ws *workspace.Workspace) error {
		res, err := s.opts.Transcoder.Transcode(ctx, asset.Data, ws.Dir)
		if err != nil {
			if errors.Is(err, audio.ErrToolUnavailable) {
				return ErrToolUnavailable(err)
			}
			return ErrInternal(err)
		}
		switch res.Outcome {
		case audio.OutcomeTimeout:
			return ErrTranscodeTimeout(fmt.Errorf("ffmpeg killed after %s", res.Elapsed.Round(time.Millisecond)))
		case audio.OutcomeFailed:
			return s.transcodeFailed(ctx, res)
		}

		a, err := s.opts.Packager.Package(ws, asset.Filename)
		if err != nil {
			return ErrPackagingFailed(err)
		}
		art = a
		return nil
	})
	if err != nil {
		return nil, false, AsError(err)
	}

	if s.opts.Cache != nil {
		s.toCache(ctx, key, art)
	}
	if s.opts.Mirror != nil {
		if location, err := s.opts.Mirror.Upload(ctx, art); err != nil {
			logger.Warn("archive mirror upload failed", logger.String("path", art.Path), logger.ErrorField(err))
		} else {
			logger.Debug("archive mirrored", logger.String("location", location))
		}
	}
	return art, false, nil
}

func (s *Service) transcodeFailed(ctx context.Context, res audio.Result) error {
	cause := fmt.Errorf("ffmpeg exited with status %d", res.ExitCode)
	logger.Warn("ffmpeg reported failure",
		logger.String("requestId", RequestID(ctx)),
		logger.Int("exitCode", res.ExitCode),
		logger.String("stderr", res.Diagnostic))
	if s.opts.ExposeDiagnostics {
		return ErrTranscodeFailed("FFmpeg conversion failed: "+res.Diagnostic, cause)
	}
	return ErrTranscodeFailed("FFmpeg conversion failed", cause)
}

func (s *Service) fromCache(ctx context.Context, key, filename string) *archive.Artifact {
	if s.opts.ToolProbe != nil && !s.opts.ToolProbe() {
		return nil
	}
	data, err := s.opts.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("archive cache lookup failed", logger.String("key", key), logger.ErrorField(err))
		return nil
	}
	if data == nil {
		return nil
	}
	art, err := s.opts.Packager.Restore(data, filename)
	if err != nil {
		logger.Warn("cached archive unusable", logger.String("key", key), logger.ErrorField(err))
		return nil
	}
	return art
}

func (s *Service) toCache(ctx context.Context, key string, art *archive.Artifact) {
	data, err := os.ReadFile(art.Path)
	if err != nil {
		logger.Warn("failed to read archive for cache", logger.String("path", art.Path), logger.ErrorField(err))
		return
	}
	if err := s.opts.Cache.Set(ctx, key, data); err != nil {
		logger.Warn("archive cache store failed", logger.String("key", key), logger.ErrorField(err))
	}
}

func (s *Service) record(ctx context.Context, asset Asset, art *archive.Artifact, cacheHit bool, err error, elapsed time.Duration) {
	if s.opts.Recorder == nil {
		return
	}
	rec := &model.Conversion{
		RequestID:  RequestID(ctx),
		Filename:   truncate(asset.Filename, 255),
		InputBytes: int64(len(asset.Data)),
		Status:     model.ConversionStatusSuccess,
		CacheHit:   cacheHit,
		ElapsedMs:  elapsed.Milliseconds(),
	}
	if err != nil {
		rec.Status = model.ConversionStatusFailed
		rec.ErrorKind = string(KindOf(err))
	}
	if art != nil {
		rec.DownloadName = art.DownloadName
		rec.ArchiveBytes = art.Size
		for _, name := range art.Entries {
			if strings.HasSuffix(name, audio.SegmentExt) {
				rec.Segments++
			}
		}
	}
	// The request context may already be canceled; history is written regardless.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.opts.Recorder.Record(recCtx, rec); err != nil {
		logger.Warn("failed to record conversion", logger.ErrorField(err))
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
