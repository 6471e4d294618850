package media

import (
	"strings"
	"testing"
)

func TestIsSupportedExtCoversNativeAndFFmpegFormats(t *testing.T) {
	for _, ext := range []string{".mp3", ".WAV", ".flac", ".ogg", ".aiff", ".m4a"} {
		if !IsSupportedExt(ext) {
			t.Fatalf("expected %s to be supported", ext)
		}
	}
	if IsSupportedExt(".txt") {
		t.Fatal("expected .txt to be unsupported")
	}
}

func TestNativeAndFFmpegSetsAreDisjoint(t *testing.T) {
	for _, ext := range []string{".mp3", ".wav", ".flac", ".ogg"} {
		if !IsNativeExt(ext) || NeedsFFmpeg(ext) {
			t.Fatalf("expected %s to decode natively", ext)
		}
	}
	for _, ext := range []string{".aiff", ".aif", ".aac", ".m4a"} {
		if IsNativeExt(ext) || !NeedsFFmpeg(ext) {
			t.Fatalf("expected %s to need ffmpeg", ext)
		}
	}
}

func TestSupportedExtsListIncludesAIFF(t *testing.T) {
	list := SupportedExtsList()
	for _, ext := range []string{".aiff", ".wav", ".mp3"} {
		if !strings.Contains(list, ext) {
			t.Fatalf("expected supported ext list to include %s, got %q", ext, list)
		}
	}
}
