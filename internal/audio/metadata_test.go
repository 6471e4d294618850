package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMetadataFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Morning Call.mp3", "Morning Call.flac"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("no tags here"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := ReadMetadata(path).Title; got != "Morning Call" {
			t.Fatalf("ReadMetadata(%q).Title = %q, want %q", name, got, "Morning Call")
		}
	}
}

func TestReadMetadataMissingFile(t *testing.T) {
	m := ReadMetadata(filepath.Join(t.TempDir(), "gone.ogg"))
	if m.Title != "gone" || m.Artist != "" {
		t.Fatalf("unexpected metadata: %+v", m)
	}
}
