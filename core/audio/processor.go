package audio

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies how a transcode run ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the outcome of one transcode run. ExitCode and Diagnostic are set when the
// tool exited non-zero.
type Result struct {
	Outcome    Outcome
	ExitCode   int
	Diagnostic string
	Elapsed    time.Duration
}

var (
	// ErrToolUnavailable is returned when the executable is missing or not executable.
	ErrToolUnavailable = errors.New("ffmpeg not available")
	// ErrCanceled is returned when the caller's context ends before the tool does.
	ErrCanceled = errors.New("transcode canceled")
)

// Transcoder turns an uploaded audio file into an HLS playlist plus segments inside workDir.
// A non-nil error means the run could not be attempted or was abandoned; tool failures and
// timeouts are reported through Result.
type Transcoder interface {
	Transcode(ctx context.Context, input []byte, workDir string) (Result, error)
}
