package cascade

import (
	"image"
	"path/filepath"
	"testing"
)

func TestLargest(t *testing.T) {
	if _, ok := Largest(nil); ok {
		t.Error("Expected no face for empty input")
	}

	faces := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(50, 50, 90, 95),
		image.Rect(5, 5, 30, 30),
	}
	got, ok := Largest(faces)
	if !ok || got != faces[1] {
		t.Errorf("Expected %v, got %v", faces[1], got)
	}
}

func TestLowerHalf(t *testing.T) {
	got := LowerHalf(image.Rect(10, 20, 110, 120))
	want := image.Rect(10, 70, 110, 120)
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestNewMissingFiles(t *testing.T) {
	_, err := New(DefaultConfig(filepath.Join(t.TempDir(), "nowhere")))
	if err == nil {
		t.Error("Expected error for missing cascade files")
	}
}
