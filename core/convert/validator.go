package convert

import (
	"mime"
	"strings"
)

var allowedContentTypes = map[string]bool{
	"audio/mpeg":               true,
	"audio/mp3":                true,
	"application/octet-stream": true,
}

// Asset is one uploaded file, fully buffered.
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
}

// IsAllowedContentType reports whether the declared tag is MP3 compatible. Parameters are
// ignored and the comparison is case-insensitive.
func IsAllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return allowedContentTypes[mediaType]
}

// Validate checks the declared type first, then the buffered size.
func Validate(asset Asset, maxBytes int64) error {
	if !IsAllowedContentType(asset.ContentType) {
		return ErrUnsupportedMediaType(asset.ContentType)
	}
	if size := int64(len(asset.Data)); size > maxBytes {
		return ErrPayloadTooLarge(size, maxBytes)
	}
	return nil
}
