package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hlsbox/core/audio"
	"hlsbox/core/workspace"
	"hlsbox/logger"

	"github.com/google/uuid"
)

const downloadSuffix = "_hls.zip"

// ErrNoOutput means the tool reported success but left no playlist or segments behind.
var ErrNoOutput = errors.New("no HLS files found in workspace")

// ErrInvalidArchive means archive bytes do not hold one playlist plus flat segment entries.
var ErrInvalidArchive = errors.New("archive does not hold a flat HLS playlist with segments")

// Artifact is a finished zip archive living outside any workspace.
type Artifact struct {
	Path         string   // file on disk, owned by the caller once returned
	DownloadName string   // suggested filename for the client
	Entries      []string // flat entry names, sorted
	Size         int64
}

// Remove deletes the archive file.
func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Packager zips HLS output into archives under outDir.
type Packager struct {
	outDir string
}

// NewPackager creates a Packager writing to outDir.
func NewPackager(outDir string) *Packager {
	return &Packager{outDir: outDir}
}

// OutDir returns the archive directory.
func (p *Packager) OutDir() string {
	return p.outDir
}

// IsHLSFile reports whether name is a playlist or a segment.
func IsHLSFile(name string) bool {
	return strings.HasSuffix(name, audio.PlaylistExt) || strings.HasSuffix(name, audio.SegmentExt)
}

// CollectHLSFiles lists the playlist and segment files directly inside dir, sorted by name.
func CollectHLSFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsHLSFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Package zips every playlist and segment in ws into a new archive named after originalName.
func (p *Packager) Package(ws *workspace.Workspace, originalName string) (*Artifact, error) {
	names, err := CollectHLSFiles(ws.Dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoOutput
	}

	base := SanitizeBase(originalName)
	f, err := p.create(base)
	if err != nil {
		return nil, err
	}

	if err := writeZip(f, ws.Dir, names); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return p.finish(f, base, names)
}

// Restore writes previously produced archive bytes back to disk, for cache hits.
func (p *Packager) Restore(data []byte, originalName string) (*Artifact, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("cached archive is not a zip: %w", err)
	}
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	sort.Strings(names)
	if err := checkEntries(names); err != nil {
		return nil, err
	}

	base := SanitizeBase(originalName)
	f, err := p.create(base)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write archive %s: %w", f.Name(), err)
	}
	return p.finish(f, base, names)
}

// checkEntries requires exactly one playlist, at least one segment and nothing else, all at the
// archive root.
func checkEntries(names []string) error {
	var playlists, segments int
	for _, name := range names {
		if strings.ContainsAny(name, `/\`) || !IsHLSFile(name) {
			return fmt.Errorf("%w: unexpected entry %q", ErrInvalidArchive, name)
		}
		if strings.HasSuffix(name, audio.PlaylistExt) {
			playlists++
		} else {
			segments++
		}
	}
	if playlists != 1 || segments == 0 {
		return fmt.Errorf("%w: %d playlists, %d segments", ErrInvalidArchive, playlists, segments)
	}
	return nil
}

func (p *Packager) create(base string) (*os.File, error) {
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir %s: %w", p.outDir, err)
	}
	// The uuid keeps concurrent uploads of the same filename apart.
	path := filepath.Join(p.outDir, fmt.Sprintf("%s_hls_%s.zip", base, uuid.NewString()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	return f, nil
}

func (p *Packager) finish(f *os.File, base string, names []string) (*Artifact, error) {
	path := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close archive %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to stat archive %s: %w", path, err)
	}
	logger.Debug("archive written",
		logger.String("path", path),
		logger.Int("entries", len(names)),
		logger.Int64("size", info.Size()))
	return &Artifact{
		Path:         path,
		DownloadName: base + downloadSuffix,
		Entries:      names,
		Size:         info.Size(),
	}, nil
}

func writeZip(w io.Writer, dir string, names []string) error {
	zw := zip.NewWriter(w)
	for _, name := range names {
		if err := addFile(zw, filepath.Join(dir, name), name); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	return nil
}
