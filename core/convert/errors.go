package convert

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a conversion failure.
type Kind string

const (
	KindMissingFile          Kind = "missing_file"
	KindMalformedUpload      Kind = "malformed_upload"
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindToolUnavailable      Kind = "tool_unavailable"
	KindTranscodeTimeout     Kind = "transcode_timeout"
	KindTranscodeFailed      Kind = "transcode_failed"
	KindPackagingFailed      Kind = "packaging_failed"
	KindInternal             Kind = "internal_error"
)

// HTTPStatus maps the kind to a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingFile, KindMalformedUpload, KindUnsupportedMediaType:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a stage failure. Detail is safe to show to the caller; Err is for logs.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindInternal for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// AsError wraps unclassified errors as KindInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternal(err)
}

var (
	ErrMissingFile = func(err error) *Error {
		return &Error{Kind: KindMissingFile, Detail: "No file provided", Err: err}
	}
	ErrMalformedUpload = func(err error) *Error {
		return &Error{Kind: KindMalformedUpload, Detail: "Malformed multipart upload", Err: err}
	}
	ErrUnsupportedMediaType = func(contentType string) *Error {
		return &Error{Kind: KindUnsupportedMediaType, Detail: "File must be MP3 format",
			Err: fmt.Errorf("content type %q not allowed", contentType)}
	}
	ErrPayloadTooLarge = func(size, limit int64) *Error {
		return &Error{Kind: KindPayloadTooLarge, Detail: fmt.Sprintf("File too large (max %d MB)", limit/(1024*1024)),
			Err: fmt.Errorf("%d bytes exceeds limit of %d", size, limit)}
	}
	ErrToolUnavailable = func(err error) *Error {
		return &Error{Kind: KindToolUnavailable, Detail: "FFmpeg not available. Ensure build script ran successfully.", Err: err}
	}
	ErrTranscodeTimeout = func(err error) *Error {
		return &Error{Kind: KindTranscodeTimeout, Detail: "FFmpeg conversion timed out", Err: err}
	}
	ErrTranscodeFailed = func(detail string, err error) *Error {
		return &Error{Kind: KindTranscodeFailed, Detail: detail, Err: err}
	}
	ErrPackagingFailed = func(err error) *Error {
		return &Error{Kind: KindPackagingFailed, Detail: "Failed to package HLS output", Err: err}
	}
	ErrInternal = func(err error) *Error {
		return &Error{Kind: KindInternal, Detail: "Internal server error", Err: err}
	}
)
