package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hlsbox/logger"

	"golang.org/x/sys/unix"
)

// commandContext is swapped in tests to run a fake tool.
var commandContext = exec.CommandContext

const (
	InputFileName    = "input.mp3"
	PlaylistFileName = "playlist.m3u8"
	PlaylistExt      = ".m3u8"
	SegmentExt       = ".ts"

	AudioBitrate   = "128k"
	HLSSegmentTime = "2"

	// How long Wait keeps draining stderr after the process group was killed.
	killGrace = 2 * time.Second
)

// FFmpegTranscoder implements the Transcoder interface using an ffmpeg binary.
type FFmpegTranscoder struct {
	ffmpegPath string
	timeout    time.Duration
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
func NewFFmpegTranscoder(ffmpegPath string, timeout time.Duration) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, timeout: timeout}
}

// Path returns the configured ffmpeg executable path.
func (p *FFmpegTranscoder) Path() string {
	return p.ffmpegPath
}

// HLSArgs builds the fixed ffmpeg argument list: AAC at 128k, 2 second segments and a
// playlist that lists every segment.
func HLSArgs(inputFile, outputM3U8 string) []string {
	return []string{
		"-i", inputFile,
		"-c:a", "aac",
		"-b:a", AudioBitrate,
		"-f", "hls",
		"-hls_time", HLSSegmentTime,
		"-hls_list_size", "0",
		outputM3U8,
	}
}

// Transcode writes input to workDir/input.mp3 and runs ffmpeg to produce
// workDir/playlist.m3u8 and its segments.
func (p *FFmpegTranscoder) Transcode(ctx context.Context, input []byte, workDir string) (Result, error) {
	inputFile := filepath.Join(workDir, InputFileName)
	if err := os.WriteFile(inputFile, input, 0o600); err != nil {
		return Result{}, fmt.Errorf("failed to write input file %s: %w", inputFile, err)
	}

	if status := CheckTool(p.ffmpegPath); !status.Available {
		return Result{}, fmt.Errorf("%w at %s: %s", ErrToolUnavailable, p.ffmpegPath, status.Reason)
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := HLSArgs(inputFile, filepath.Join(workDir, PlaylistFileName))
	cmd := commandContext(runCtx, p.ffmpegPath, args...)
	cmd.Dir = workDir
	// Own process group so a timeout takes down anything ffmpeg spawned as well.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = killGrace

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Executing FFmpeg command",
		logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		return Result{Outcome: OutcomeSuccess, Elapsed: elapsed}, nil
	}

	if ctx.Err() != nil {
		return Result{Elapsed: elapsed}, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("FFmpeg timed out, process group killed",
			logger.Duration("timeout", p.timeout),
			logger.Duration("elapsed", elapsed))
		return Result{
			Outcome:    OutcomeTimeout,
			ExitCode:   -1,
			Diagnostic: strings.TrimSpace(stderr.String()),
			Elapsed:    elapsed,
		}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{
			Outcome:    OutcomeFailed,
			ExitCode:   exitErr.ExitCode(),
			Diagnostic: strings.TrimSpace(stderr.String()),
			Elapsed:    elapsed,
		}, nil
	}

	return Result{Elapsed: elapsed}, fmt.Errorf("ffmpeg execution failed for %s: %w", inputFile, err)
}
