package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no decoder handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoAudio is returned when a file decodes but carries no usable audio stream.
	ErrNoAudio = errors.New("no audio track")
)

// AssetLoadError reports that an asset could not be opened or its metadata read.
type AssetLoadError struct {
	Path string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// DecodeError reports that a decode session could not be started or failed mid-stream.
type DecodeError struct {
	Path string
	Op   string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
