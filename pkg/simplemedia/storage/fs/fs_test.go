package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "media/division/2024/06/file.txt"

	data := []byte("hello fs")
	if err := backend.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmp, "media/division/2024/06"))
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Fatalf("expected dir mode 0755, got %v", info.Mode().Perm())
	}

	meta, err := backend.GetObjectMeta(ctx, key)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Size != int64(len(data)) {
		t.Fatalf("expected size %d, got %d", len(data), meta.Size)
	}

	rc, err := backend.Download(ctx, key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != string(data) {
		t.Fatalf("download mismatch: %q", string(got))
	}

	if err := backend.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "media")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directories cleaned up, stat err=%v", err)
	}
}

func TestFSBackend_DeleteMissingIsNoop(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if err := backend.Delete(context.Background(), "nope/missing.jpg"); err != nil {
		t.Fatalf("expected nil for missing object, got %v", err)
	}
}

func TestFSBackend_NotFound(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()
	if _, err := backend.Download(ctx, "missing"); !errors.Is(err, simplemedia.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := backend.GetObjectMeta(ctx, "missing"); !errors.Is(err, simplemedia.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFSBackend_KeysStayInsideBaseDir(t *testing.T) {
	tmp := t.TempDir()
	base := filepath.Join(tmp, "store")
	backend, err := New(Config{BaseDir: base})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if err := backend.Upload(context.Background(), "../escape.txt", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "escape.txt")); !os.IsNotExist(err) {
		t.Fatalf("key escaped base dir")
	}
	if _, err := os.Stat(filepath.Join(base, "escape.txt")); err != nil {
		t.Fatalf("expected file inside base dir: %v", err)
	}
}

func TestFSBackend_URLFor(t *testing.T) {
	ctx := context.Background()

	noPrefix, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	if _, err := noPrefix.URLFor(ctx, "a/b.jpg"); err == nil {
		t.Fatalf("expected error without urlPrefix")
	}

	withPrefix, err := New(Config{BaseDir: t.TempDir(), URLPrefix: "https://example.com/storage/"})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	u, err := withPrefix.URLFor(ctx, "a/b.jpg")
	if err != nil {
		t.Fatalf("url for: %v", err)
	}
	if u != "https://example.com/storage/a/b.jpg" {
		t.Fatalf("unexpected url %q", u)
	}
}
