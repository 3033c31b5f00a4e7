package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestToolWatcherReportsProvisioning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")

	changes := make(chan ToolStatus, 8)
	w, err := NewToolWatcher(path, func(s ToolStatus) { changes <- s })
	if err != nil {
		t.Fatalf("NewToolWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-changes:
			if s.Path != path {
				t.Fatalf("unexpected path %q", s.Path)
			}
			if s.Available {
				return
			}
		case <-deadline:
			t.Fatal("no availability change observed")
		}
	}
}

func TestNewToolWatcherMissingDir(t *testing.T) {
	if _, err := NewToolWatcher(filepath.Join(t.TempDir(), "nope", "ffmpeg"), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
