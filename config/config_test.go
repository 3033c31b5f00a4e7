package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TEMP_DIR", tmp)
	t.Setenv("FFMPEG_PATH", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("TRANSCODE_TIMEOUT", "")

	cfg := FromEnv()
	if cfg.FFmpegPath != "/var/task/api/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg path %q", cfg.FFmpegPath)
	}
	if cfg.MaxUploadBytes != 10*1024*1024 {
		t.Fatalf("unexpected max upload %d", cfg.MaxUploadBytes)
	}
	if cfg.MaxRequestBytes != 4*cfg.MaxUploadBytes {
		t.Fatalf("unexpected max request %d", cfg.MaxRequestBytes)
	}
	if cfg.TranscodeTimeout != 60*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.TranscodeTimeout)
	}
	if cfg.ArchiveDir != filepath.Join(tmp, "hls-archives") {
		t.Fatalf("unexpected archive dir %q", cfg.ArchiveDir)
	}
	if !cfg.ExposeDiagnostics {
		t.Fatal("expected diagnostics to be exposed by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/usr/bin/ffmpeg")
	t.Setenv("TRANSCODE_TIMEOUT", "90")
	t.Setenv("ARCHIVE_MAX_AGE", "15m")
	t.Setenv("EXPOSE_DIAGNOSTICS", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_DB", "3")

	cfg := FromEnv()
	if cfg.FFmpegPath != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg path %q", cfg.FFmpegPath)
	}
	if cfg.TranscodeTimeout != 90*time.Second {
		t.Fatalf("bare seconds not parsed: %s", cfg.TranscodeTimeout)
	}
	if cfg.ArchiveMaxAge != 15*time.Minute {
		t.Fatalf("duration not parsed: %s", cfg.ArchiveMaxAge)
	}
	if cfg.ExposeDiagnostics {
		t.Fatal("expected diagnostics to be hidden")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("unexpected redis db %d", cfg.RedisDB)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			FFmpegPath:       "ffmpeg",
			TempDir:          "/tmp",
			ArchiveDir:       "/tmp/a",
			MaxUploadBytes:   10,
			MaxRequestBytes:  40,
			TranscodeTimeout: time.Second,
			ArchiveMaxAge:    time.Minute,
		}
	}
	cases := map[string]func(*Config){
		"empty ffmpeg":     func(c *Config) { c.FFmpegPath = "" },
		"zero upload":      func(c *Config) { c.MaxUploadBytes = 0 },
		"request < upload": func(c *Config) { c.MaxRequestBytes = 5 },
		"zero timeout":     func(c *Config) { c.TranscodeTimeout = 0 },
		"empty archive":    func(c *Config) { c.ArchiveDir = "" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
