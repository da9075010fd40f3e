package alog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfofWritesLineToFile(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "test")
	l.Infof("hello %s", "world")
	l.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Fatalf("log file missing message: %q", data)
	}
	if !strings.Contains(string(data), " I ") {
		t.Fatalf("expected info severity marker, got %q", data)
	}
}

func TestErrorfFlushesImmediately(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "test")
	l.Errorf("boom")

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "boom") || !strings.Contains(string(data), " E ") {
		t.Fatalf("expected flushed error line, got %q", data)
	}
}

func TestRotateIfNeededRollsOverPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "test")
	orig := MaxSize
	MaxSize = 1
	defer func() { MaxSize = orig }()

	l.Infof("first")
	l.Infof("second")
	l.Flush()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected a rotated file in addition to test.log, got %v", entries)
	}
}

func TestEmptyDirLogsToStderrOnly(t *testing.T) {
	l := New("", "stderr-only")
	l.Infof("no panic expected")
	l.Flush()
}

func TestPackageLevelHelpersUseDefault(t *testing.T) {
	dir := t.TempDir()
	SetDefault(New(dir, "default"))
	defer SetDefault(New("", "asyncframe"))

	Infof("via package default")
	Flush()

	data, err := os.ReadFile(filepath.Join(dir, "default.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "via package default") {
		t.Fatalf("missing message: %q", data)
	}
}
