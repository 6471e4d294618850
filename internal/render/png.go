package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

var pngEncoder = png.Encoder{CompressionLevel: png.BestCompression}

// WritePNG encodes img to w.
func WritePNG(w io.Writer, img image.Image) error {
	if err := pngEncoder.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// SavePNG writes img to path, replacing any existing file.
func SavePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return WritePNG(f, img)
}
