package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenExistingFileReadsContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rc, err := b.Open(context.Background(), "a.txt", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q, want payload", data)
	}
}

func TestOpenCreateWritesNewFile(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rc, err := b.Open(context.Background(), "new.txt", true)
	if err != nil {
		t.Fatalf("Open create: %v", err)
	}
	rc.Close()

	if _, err := os.Stat(filepath.Join(dir, "new.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestOpenRepeatedUsesCachedDescriptor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("xyz"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		rc, err := b.Open(context.Background(), "a.txt", false)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || string(data) != "xyz" {
			t.Fatalf("Open #%d: got %q, err %v", i, data, err)
		}
	}
}

func TestStatReportsSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sized.txt"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := b.Stat(context.Background(), "sized.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != 5 {
		t.Fatalf("expected size 5, got %d", info.Size)
	}
}

func TestRemoveDeletesFileAndEvictsCache(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Open(context.Background(), "gone.txt", false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := b.Remove(context.Background(), "gone.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err=%v", err)
	}
}

func TestPathRejectsEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	b, err := New(dir, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := b.path("../../etc/passwd")
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		t.Fatalf("path %q escapes root %q (rel=%q)", p, dir, rel)
	}
}
