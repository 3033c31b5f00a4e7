package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"hlsbox/core/archive"
	"hlsbox/core/audio"
	"hlsbox/core/workspace"
	"hlsbox/logger"
	"hlsbox/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTranscoder struct {
	mu       sync.Mutex
	calls    int
	result   audio.Result
	err      error
	segments int
	lastDir  string
}

func (f *fakeTranscoder) Transcode(ctx context.Context, input []byte, workDir string) (audio.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastDir = workDir
	f.mu.Unlock()

	if f.err != nil {
		return audio.Result{}, f.err
	}
	if err := os.WriteFile(filepath.Join(workDir, audio.InputFileName), input, 0o600); err != nil {
		return audio.Result{}, err
	}
	if f.result.Outcome != audio.OutcomeSuccess {
		return f.result, nil
	}
	var playlist strings.Builder
	playlist.WriteString("#EXTM3U\n")
	for i := 0; i < f.segments; i++ {
		name := "playlist" + string(rune('0'+i)) + audio.SegmentExt
		playlist.WriteString("#EXTINF:2.0,\n" + name + "\n")
		if err := os.WriteFile(filepath.Join(workDir, name), []byte("segment"), 0o644); err != nil {
			return audio.Result{}, err
		}
	}
	playlist.WriteString("#EXT-X-ENDLIST\n")
	if err := os.WriteFile(filepath.Join(workDir, audio.PlaylistFileName), []byte(playlist.String()), 0o644); err != nil {
		return audio.Result{}, err
	}
	return f.result, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.data[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = append([]byte(nil), data...)
	return nil
}

type failingMirror struct{ calls int }

func (m *failingMirror) Upload(ctx context.Context, art *archive.Artifact) (string, error) {
	m.calls++
	return "", errors.New("bucket unreachable")
}

type memRecorder struct {
	rows []*model.Conversion
}

func (r *memRecorder) Record(ctx context.Context, c *model.Conversion) error {
	r.rows = append(r.rows, c)
	return nil
}

type fixture struct {
	svc      *Service
	tc       *fakeTranscoder
	wsRoot   string
	outDir   string
	recorder *memRecorder
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		tc:       &fakeTranscoder{segments: 3},
		wsRoot:   filepath.Join(base, "work"),
		outDir:   filepath.Join(base, "out"),
		recorder: &memRecorder{},
	}
	opts := Options{
		Workspaces:        workspace.NewManager(f.wsRoot),
		Transcoder:        f.tc,
		Packager:          archive.NewPackager(f.outDir),
		MaxUploadBytes:    10 * 1024 * 1024,
		ExposeDiagnostics: true,
		Recorder:          f.recorder,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = NewService(opts)
	return f
}

func (f *fixture) workspaceCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.wsRoot)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	return len(entries)
}

func mp3Asset(name string) Asset {
	return Asset{Filename: name, ContentType: "audio/mpeg", Data: []byte("ID3\x03fake mp3 payload")}
}

func zipEntries(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestConvertSuccess(t *testing.T) {
	f := newFixture(t, nil)

	art, err := f.svc.Convert(context.Background(), mp3Asset("My Song.mp3"))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	defer art.Remove()

	if art.DownloadName != "My_Song_hls.zip" {
		t.Errorf("unexpected download name %q", art.DownloadName)
	}

	var playlists, segments int
	for _, name := range zipEntries(t, art.Path) {
		if strings.Contains(name, "/") {
			t.Errorf("entry %q should be flat", name)
		}
		switch {
		case strings.HasSuffix(name, audio.PlaylistExt):
			playlists++
		case strings.HasSuffix(name, audio.SegmentExt):
			segments++
		default:
			t.Errorf("unexpected entry %q", name)
		}
	}
	if playlists != 1 || segments < 1 {
		t.Fatalf("expected one playlist and at least one segment, got %d/%d", playlists, segments)
	}

	if n := f.workspaceCount(t); n != 0 {
		t.Fatalf("workspace left behind: %d entries", n)
	}
	if _, err := os.Stat(f.tc.lastDir); !os.IsNotExist(err) {
		t.Fatalf("workspace %s should be gone", f.tc.lastDir)
	}

	if len(f.recorder.rows) != 1 {
		t.Fatalf("expected one history row, got %d", len(f.recorder.rows))
	}
	row := f.recorder.rows[0]
	if row.Status != model.ConversionStatusSuccess || row.Segments != 3 || row.CacheHit {
		t.Fatalf("unexpected history row %+v", row)
	}
}

func TestConvertRejectsBeforeWorkspace(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Convert(context.Background(), Asset{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hi")})
	if KindOf(err) != KindUnsupportedMediaType {
		t.Fatalf("expected unsupported media type, got %v", err)
	}
	if f.tc.calls != 0 {
		t.Fatal("transcoder must not run for rejected uploads")
	}
	if n := f.workspaceCount(t); n != 0 {
		t.Fatalf("no workspace should be created, found %d", n)
	}

	big := Asset{Filename: "big.mp3", ContentType: "audio/mpeg", Data: make([]byte, 10*1024*1024+1)}
	_, err = f.svc.Convert(context.Background(), big)
	if KindOf(err) != KindPayloadTooLarge {
		t.Fatalf("expected payload too large, got %v", err)
	}
	if f.tc.calls != 0 || f.workspaceCount(t) != 0 {
		t.Fatal("oversized upload must not reach the transcoder")
	}

	if len(f.recorder.rows) != 2 || f.recorder.rows[1].ErrorKind != string(KindPayloadTooLarge) {
		t.Fatalf("rejections should be recorded, got %+v", f.recorder.rows)
	}
}

func TestConvertToolUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.tc.err = audio.ErrToolUnavailable

	_, err := f.svc.Convert(context.Background(), mp3Asset("a.mp3"))
	ce := AsError(err)
	if ce == nil || ce.Kind != KindToolUnavailable {
		t.Fatalf("expected tool unavailable, got %v", err)
	}
	if ce.Kind.HTTPStatus() != 500 {
		t.Fatalf("expected 500, got %d", ce.Kind.HTTPStatus())
	}
	if !strings.Contains(ce.Detail, "FFmpeg not available") {
		t.Fatalf("unexpected detail %q", ce.Detail)
	}
	if n := f.workspaceCount(t); n != 0 {
		t.Fatalf("workspace left behind: %d", n)
	}
}

func TestConvertTimeout(t *testing.T) {
	f := newFixture(t, nil)
	f.tc.result = audio.Result{Outcome: audio.OutcomeTimeout, ExitCode: -1, Elapsed: 60 * time.Second}

	_, err := f.svc.Convert(context.Background(), mp3Asset("slow.mp3"))
	if KindOf(err) != KindTranscodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if AsError(err).Detail != "FFmpeg conversion timed out" {
		t.Fatalf("unexpected detail %q", AsError(err).Detail)
	}
	if n := f.workspaceCount(t); n != 0 {
		t.Fatalf("workspace left behind: %d", n)
	}
	if entries, _ := os.ReadDir(f.outDir); len(entries) != 0 {
		t.Fatalf("no archive should be produced, found %d", len(entries))
	}
}

func TestConvertFailureDiagnostics(t *testing.T) {
	failed := audio.Result{Outcome: audio.OutcomeFailed, ExitCode: 1, Diagnostic: "Invalid data found when processing input"}

	exposed := newFixture(t, nil)
	exposed.tc.result = failed
	_, err := exposed.svc.Convert(context.Background(), mp3Asset("bad.mp3"))
	if KindOf(err) != KindTranscodeFailed {
		t.Fatalf("expected transcode failed, got %v", err)
	}
	if !strings.Contains(AsError(err).Detail, "Invalid data found") {
		t.Fatalf("diagnostic should be exposed, got %q", AsError(err).Detail)
	}

	hidden := newFixture(t, func(o *Options) { o.ExposeDiagnostics = false })
	hidden.tc.result = failed
	_, err = hidden.svc.Convert(context.Background(), mp3Asset("bad.mp3"))
	if AsError(err).Detail != "FFmpeg conversion failed" {
		t.Fatalf("diagnostic should be hidden, got %q", AsError(err).Detail)
	}
}

func TestConvertNoOutputIsPackagingFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Transcoder = transcoderFunc(func(ctx context.Context, input []byte, dir string) (audio.Result, error) {
			return audio.Result{Outcome: audio.OutcomeSuccess}, nil
		})
	})

	_, err := f.svc.Convert(context.Background(), mp3Asset("empty.mp3"))
	if KindOf(err) != KindPackagingFailed {
		t.Fatalf("expected packaging failure, got %v", err)
	}
	if !errors.Is(err, archive.ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput cause, got %v", err)
	}
}

type transcoderFunc func(ctx context.Context, input []byte, dir string) (audio.Result, error)

func (fn transcoderFunc) Transcode(ctx context.Context, input []byte, dir string) (audio.Result, error) {
	return fn(ctx, input, dir)
}

func TestConvertIsRepeatable(t *testing.T) {
	f := newFixture(t, nil)
	first, err := f.svc.Convert(context.Background(), mp3Asset("song.mp3"))
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	second, err := f.svc.Convert(context.Background(), mp3Asset("song.mp3"))
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("each conversion should produce its own archive file")
	}
	if first.DownloadName != second.DownloadName {
		t.Fatalf("download names differ: %q vs %q", first.DownloadName, second.DownloadName)
	}
	if strings.Join(first.Entries, ",") != strings.Join(second.Entries, ",") {
		t.Fatalf("entries differ: %v vs %v", first.Entries, second.Entries)
	}
}

func TestConvertCacheHitGatedByTool(t *testing.T) {
	available := true
	cache := &memCache{}
	mirror := &failingMirror{}
	f := newFixture(t, func(o *Options) {
		o.Cache = cache
		o.Mirror = mirror
		o.ToolProbe = func() bool { return available }
	})

	first, err := f.svc.Convert(context.Background(), mp3Asset("song.mp3"))
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	if mirror.calls != 1 {
		t.Fatalf("mirror should be attempted once, got %d", mirror.calls)
	}
	firstBytes, _ := os.ReadFile(first.Path)

	second, err := f.svc.Convert(context.Background(), mp3Asset("renamed.mp3"))
	if err != nil {
		t.Fatalf("cached Convert: %v", err)
	}
	if f.tc.calls != 1 {
		t.Fatalf("cache hit should skip the transcoder, calls=%d", f.tc.calls)
	}
	if second.DownloadName != "renamed_hls.zip" {
		t.Fatalf("cache hit should use the new filename, got %q", second.DownloadName)
	}
	secondBytes, _ := os.ReadFile(second.Path)
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Fatal("cached archive bytes differ")
	}
	if !f.recorder.rows[1].CacheHit {
		t.Fatal("history should mark the cache hit")
	}

	available = false
	f.tc.err = audio.ErrToolUnavailable
	_, err = f.svc.Convert(context.Background(), mp3Asset("song.mp3"))
	if KindOf(err) != KindToolUnavailable {
		t.Fatalf("missing tool must fail even with a cached archive, got %v", err)
	}
}

func TestConvertLogsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.SetLogger(zap.New(core))
	defer logger.SetLogger(nil)

	f := newFixture(t, nil)
	ctx := WithRequestID(context.Background(), "req-42")
	art, err := f.svc.Convert(ctx, mp3Asset("song.mp3"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer art.Remove()

	entries := logs.FilterMessage("conversion finished").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["requestId"]; got != "req-42" {
		t.Fatalf("expected request id in log, got %v", got)
	}
	if f.recorder.rows[0].RequestID != "req-42" {
		t.Fatalf("history row should carry the request id, got %q", f.recorder.rows[0].RequestID)
	}
}

func TestConvertHistoryKeepsFilenameValidUTF8(t *testing.T) {
	f := newFixture(t, nil)
	name := strings.Repeat("a", 254) + "é.mp3"

	art, err := f.svc.Convert(context.Background(), mp3Asset(name))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	defer art.Remove()

	got := f.recorder.rows[0].Filename
	if !utf8.ValidString(got) {
		t.Fatalf("recorded filename is not valid UTF-8: %q", got[len(got)-4:])
	}
	if got != strings.Repeat("a", 254) {
		t.Fatalf("expected cut before the split rune, got %d bytes", len(got))
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"},
		{"日本", 4, "日"},
		{"é", 1, ""},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
