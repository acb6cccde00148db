package imagestore

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mira/outfitadvisor/internal/domain"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSaveAndDelete(t *testing.T) {
	store := New(t.TempDir(), nil)

	path, err := store.Save(jpegBytes(t, 100, 100), "outfit.jpg")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved file not on disk: %v", err)
	}

	store.Delete(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after delete: %v", err)
	}
}

func TestSaveRejectsInvalidImage(t *testing.T) {
	base := t.TempDir()
	store := New(base, nil)

	_, err := store.Save([]byte("definitely not an image"), "bad.jpg")
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}

	// Nothing may be left readable on disk after a rejected upload.
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("failed to read base dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty upload dir after rejection, found %d entries", len(entries))
	}
}

func TestSaveAcceptsPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}

	store := New(t.TempDir(), nil)
	if _, err := store.Save(buf.Bytes(), "item.png"); err != nil {
		t.Fatalf("Save rejected valid png: %v", err)
	}
}

func TestSaveIsolatesSameFilename(t *testing.T) {
	store := New(t.TempDir(), nil)
	data := jpegBytes(t, 20, 20)

	p1, err := store.Save(data, "same.jpg")
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	p2, err := store.Save(data, "same.jpg")
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if p1 == p2 {
		t.Errorf("two saves of the same filename share a path: %s", p1)
	}
}

func TestDeleteMissingPathIsNoop(t *testing.T) {
	store := New(t.TempDir(), nil)
	// Must not panic or error on a path that was never written.
	store.Delete(filepath.Join(t.TempDir(), "nope", "missing.jpg"))
	store.Delete("")
}
