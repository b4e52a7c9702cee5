package pdfdoc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRender_RejectsDPIOutsideRange(t *testing.T) {
	r := NewRasterizer(t.TempDir())
	err := r.Render(context.Background(), "job1", "/irrelevant.pdf", MinDPI-1, func(Page) error { return nil })
	if err == nil {
		t.Fatalf("expected an error for a DPI below the supported range")
	}
	err = r.Render(context.Background(), "job1", "/irrelevant.pdf", MaxDPI+1, func(Page) error { return nil })
	if err == nil {
		t.Fatalf("expected an error for a DPI above the supported range")
	}
}

func TestWriteBlankPNGThenReadPage_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.png")
	if err := writeBlankPNG(path, 100, 50); err != nil {
		t.Fatalf("writeBlankPNG failed: %v", err)
	}
	data, err := ReadPage(path)
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PNG bytes")
	}
}

func TestReadPage_MissingFileReturnsError(t *testing.T) {
	if _, err := ReadPage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("expected an error reading a nonexistent file")
	}
}

func TestRender_MissingSourceFileFailsValidation(t *testing.T) {
	r := NewRasterizer(t.TempDir())
	err := r.Render(context.Background(), "job1", filepath.Join(os.TempDir(), "definitely-missing.pdf"), DefaultDPI, func(Page) error { return nil })
	if err == nil {
		t.Fatalf("expected validation to fail for a missing source file")
	}
}
