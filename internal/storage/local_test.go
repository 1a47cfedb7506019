package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		fsys := afero.NewMemMapFs()

		storage, err := NewLocalStorage(fsys, "/work/uploads")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != "/work/uploads" {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), "/work/uploads")
		}

		info, err := fsys.Stat("/work/uploads")
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage(afero.NewMemMapFs(), "")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "motionphoto")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})

	t.Run("defaults to OS filesystem", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		if _, err := NewLocalStorage(nil, dir); err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory not created on disk: %v", err)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage, fsys := setupTestStorage(t)

	t.Run("keeps the extension", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "IMG_0001.jpg", bytes.NewReader([]byte("photo")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		base := filepath.Base(path)
		if !strings.HasPrefix(base, "IMG_0001_") || filepath.Ext(base) != ".jpg" {
			t.Errorf("unexpected name %s", base)
		}
		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("path %s outside temp dir", path)
		}

		content, err := afero.ReadFile(fsys, path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "photo" {
			t.Errorf("got %q, want %q", string(content), "photo")
		}
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "../../etc/x.jpeg", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("path %s escaped temp dir", path)
		}
	})

	t.Run("two saves get distinct names", func(t *testing.T) {
		a, err := storage.SaveTemp(context.Background(), "same.jpg", bytes.NewReader([]byte("a")))
		if err != nil {
			t.Fatal(err)
		}
		b, err := storage.SaveTemp(context.Background(), "same.jpg", bytes.NewReader([]byte("b")))
		if err != nil {
			t.Fatal(err)
		}
		if a == b {
			t.Errorf("expected distinct paths, got %s twice", a)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test.jpg", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("removes file when the reader fails", func(t *testing.T) {
		_, err := storage.SaveTemp(context.Background(), "broken.jpg", failingReader{})
		if err == nil {
			t.Fatal("expected error")
		}
		matches, _ := afero.Glob(fsys, filepath.Join(storage.TempDir(), "broken_*"))
		if len(matches) != 0 {
			t.Errorf("leftover files: %v", matches)
		}
	})
}

func TestLocalStorage_LoadTemp(t *testing.T) {
	storage, fsys := setupTestStorage(t)
	ctx := context.Background()

	if err := afero.WriteFile(fsys, "/work/a_motion.mp4", []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := storage.LoadTemp(ctx, "/work/a_motion.mp4")
	if err != nil {
		t.Fatalf("LoadTemp() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video" {
		t.Errorf("got %q, want %q", data, "video")
	}

	if _, err := storage.LoadTemp(ctx, "/work/missing.mp4"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage, fsys := setupTestStorage(t)
	ctx := context.Background()

	for _, p := range []string{"/work/a.jpg", "/work/a_motion.mp4"} {
		if err := afero.WriteFile(fsys, p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	err := storage.CleanupTemp(ctx, []string{"/work/a.jpg", "/work/missing.mp4", "/work/a_motion.mp4"})
	if err != nil {
		t.Fatalf("CleanupTemp() error = %v", err)
	}

	for _, p := range []string{"/work/a.jpg", "/work/a_motion.mp4"} {
		if ok, _ := afero.Exists(fsys, p); ok {
			t.Errorf("%s still exists", p)
		}
	}
}

func TestLocalStorage_UploadToS3(t *testing.T) {
	storage, _ := setupTestStorage(t)

	_, err := storage.UploadToS3(context.Background(), "key", bytes.NewReader(nil))
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) (*LocalStorage, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	storage, err := NewLocalStorage(fsys, "/work/uploads")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage, fsys
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}
