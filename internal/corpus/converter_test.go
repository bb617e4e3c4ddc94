package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestConvertMarkdownPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	content := "# Title\n\nSome body text."
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	conv := NewConverter(nil)
	got, err := conv.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if got != content {
		t.Errorf("Convert() = %q, want %q", got, content)
	}
}

func TestConvertCacheHitStripsPageBreaks(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	defer cache.Close()

	if err := cache.Put("doc.pdf", "# doc\n\npage one"+pageBreak+"page two"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	conv := NewConverter(cache)
	got, err := conv.Convert(context.Background(), filepath.Join(dir, "doc.pdf"))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	want := "# doc\n\npage one page two"
	if got != want {
		t.Errorf("Convert() = %q, want %q", got, want)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	defer cache.Close()

	if _, ok, err := cache.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want miss", ok, err)
	}

	if err := cache.Put("a.pdf", "markup"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := cache.Get("a.pdf")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v, want hit", ok, err)
	}
	if got != "markup" {
		t.Errorf("Get() = %q, want %q", got, "markup")
	}
}
