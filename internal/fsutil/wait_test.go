package fsutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/fsutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestWaitUntilExistsPresent(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/out/stdout", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	start := time.Now()
	ok := fsutil.WaitUntilExists(context.Background(), fs, "/out/stdout", fsutil.Poll{}, discardLogger())
	if !ok {
		t.Fatal("WaitUntilExists = false for existing file")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("existing file took %v, want immediate return", elapsed)
	}
}

func TestWaitUntilExistsTimesOut(t *testing.T) {
	fs := afero.NewMemMapFs()

	start := time.Now()
	ok := fsutil.WaitUntilExists(context.Background(), fs, "/missing",
		fsutil.Poll{Timeout: 20 * time.Millisecond, Step: time.Millisecond}, discardLogger())
	if ok {
		t.Fatal("WaitUntilExists = true for missing file")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, want about 20ms", elapsed)
	}
}

func TestWaitUntilExistsDirectoryIsNotAFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/dir", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	ok := fsutil.WaitUntilExists(context.Background(), fs, "/dir",
		fsutil.Poll{Timeout: 10 * time.Millisecond, Step: time.Millisecond}, nil)
	if ok {
		t.Fatal("WaitUntilExists = true for a directory")
	}
}

func TestWaitUntilExistsDelayedVisibility(t *testing.T) {
	fs := afero.NewMemMapFs()

	go func() {
		time.Sleep(15 * time.Millisecond)
		_ = afero.WriteFile(fs, "/late", []byte("done"), 0o644)
	}()

	ok := fsutil.WaitUntilExists(context.Background(), fs, "/late",
		fsutil.Poll{Timeout: 2 * time.Second, Step: 2 * time.Millisecond}, discardLogger())
	if !ok {
		t.Fatal("WaitUntilExists = false for a file that appears later")
	}
}

func TestWaitUntilExistsContextCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := fsutil.WaitUntilExists(ctx, fs, "/never",
		fsutil.Poll{Timeout: time.Minute, Step: time.Second}, discardLogger())
	if ok {
		t.Fatal("WaitUntilExists = true with cancelled context")
	}
}
