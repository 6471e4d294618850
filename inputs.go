package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olivier-w/soundwave/internal/audio"
	"github.com/olivier-w/soundwave/internal/media"
	"github.com/olivier-w/soundwave/internal/queue"
)

// resolveInputs checks every argument and stores a "-" argument from stdin in
// a temp file. cleanup is never nil.
func resolveInputs(args []string, stdin io.Reader, format string) ([]string, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for _, c := range cleanups {
			c()
		}
	}

	paths := make([]string, 0, len(args))
	usedStdin := false
	for _, arg := range args {
		if arg == "-" {
			if usedStdin {
				cleanup()
				return nil, func() {}, errors.New("stdin can only be read once")
			}
			usedStdin = true
			path, done, err := readStdin(stdin, format)
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			cleanups = append(cleanups, done)
			paths = append(paths, path)
			continue
		}
		if err := checkAudioFile(arg); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		paths = append(paths, arg)
	}
	return paths, cleanup, nil
}

func readStdin(stdin io.Reader, format string) (string, func(), error) {
	if format == "" {
		return "", nil, errors.New("reading audio from stdin needs -format")
	}
	ext := "." + strings.TrimPrefix(strings.ToLower(format), ".")
	if !media.IsSupportedExt(ext) {
		return "", nil, fmt.Errorf("unsupported format %s (supported: %s)", ext, media.SupportedExtsList())
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return "", nil, errors.New("stdin is empty")
	}
	return audio.WriteTemp(data, ext)
}

func checkAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); !media.IsSupportedExt(ext) {
		return fmt.Errorf("unsupported format %s (supported: %s)", ext, media.SupportedExtsList())
	}
	return nil
}

// buildQueue plays the given files in order. A single file brings its
// directory siblings along so next and previous have somewhere to go.
func buildQueue(paths []string) *queue.Queue {
	if len(paths) != 1 {
		return queue.FromPaths(paths)
	}
	siblings := scanAudioFiles(paths[0])
	if siblings == nil {
		return queue.FromPaths(paths)
	}

	q := queue.FromPaths(siblings)
	absPath, _ := filepath.Abs(paths[0])
	for i, f := range siblings {
		if f == absPath {
			q.SetCurrentIndex(i)
			break
		}
	}
	return q
}

// scanAudioFiles returns all supported audio files in the same directory as
// path, sorted case-insensitively. It returns nil if fewer than 2 are found.
func scanAudioFiles(path string) []string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	dir := filepath.Dir(absPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if media.IsSupportedExt(filepath.Ext(e.Name())) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) < 2 {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files
}
