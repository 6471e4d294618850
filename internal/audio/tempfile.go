package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	mkdirTemp = os.MkdirTemp
	removeAll = os.RemoveAll
	sleep     = time.Sleep
)

// WriteTemp stores an in-memory asset in a private temp directory so it can be
// opened like any other file. ext selects the decoder (".wav", "mp3", ...).
// cleanup removes the directory; it is nil when err is non-nil.
func WriteTemp(data []byte, ext string) (string, func(), error) {
	if ext == "" {
		return "", nil, fmt.Errorf("%w: missing extension hint", ErrUnsupportedFormat)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	dir, err := mkdirTemp("", "soundwave-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp dir: %w", err)
	}
	cleanup := func() {
		cleanupTempDirWithRetry(dir)
	}

	path := filepath.Join(dir, "track"+strings.ToLower(ext))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("writing temp asset: %w", err)
	}
	return path, cleanup, nil
}

func cleanupTempDirWithRetry(dir string) {
	for attempt := 0; attempt < 5; attempt++ {
		if err := removeAll(dir); err == nil || !isRetryableCleanupAttempt(attempt) {
			return
		}
		sleep(75 * time.Millisecond)
	}
}

func isRetryableCleanupAttempt(attempt int) bool {
	return attempt < 4
}
