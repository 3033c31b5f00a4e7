package archive

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackBase  = "audio"
	maxBaseLength = 150
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// SanitizeBase derives a safe archive base name from a user supplied filename: the text
// before the first '.', with directories, separators and anything outside [A-Za-z0-9_-]
// removed. Accented letters are folded to ASCII first.
func SanitizeBase(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	name = path.Base(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}

	// Transformer chains are stateful, build one per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}

	name = multipleSpaces.ReplaceAllString(strings.TrimSpace(name), "_")
	name = nonAlphaNumeric.ReplaceAllString(name, "")

	if len(name) > maxBaseLength {
		name = name[:maxBaseLength]
	}
	if name == "" {
		name = fallbackBase
	}
	return name
}

// DownloadName is the filename suggested to clients for an upload named filename.
func DownloadName(filename string) string {
	return SanitizeBase(filename) + downloadSuffix
}
