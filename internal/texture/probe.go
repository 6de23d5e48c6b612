package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("texture: unsupported image format")

// Info is what a header probe learns about an image file.
type Info struct {
	Format string
	Width  int
	Height int
}

type configDecoder func(r *bytes.Reader) (image.Config, error)

var decoders = map[string]configDecoder{
	"png":  func(r *bytes.Reader) (image.Config, error) { return png.DecodeConfig(r) },
	"jpeg": func(r *bytes.Reader) (image.Config, error) { return jpeg.DecodeConfig(r) },
	"gif":  func(r *bytes.Reader) (image.Config, error) { return gif.DecodeConfig(r) },
	"bmp":  func(r *bytes.Reader) (image.Config, error) { return bmp.DecodeConfig(r) },
	"tiff": func(r *bytes.Reader) (image.Config, error) { return tiff.DecodeConfig(r) },
	"webp": func(r *bytes.Reader) (image.Config, error) { return webp.DecodeConfig(r) },
	"tga":  func(r *bytes.Reader) (image.Config, error) { return tga.DecodeConfig(r) },
}

// formatByExt maps lowercase extensions to decoder names.
var formatByExt = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
	".webp": "webp",
	".tga":  "tga",
}

// Supported reports whether the extension of path is probeable.
func Supported(path string) bool {
	_, ok := formatByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Probe reads an image header. The extension decides the decoder first;
// when that fails the file signature is tried, since exported textures are
// often misnamed.
func Probe(path string) (Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("texture: read %s: %w", path, err)
	}

	format := formatByExt[strings.ToLower(filepath.Ext(path))]
	if format != "" {
		info, decodeErr := probeAs(raw, format)
		if decodeErr == nil {
			return info, nil
		}
		detected := sniff(raw)
		if detected == "" || detected == format {
			return Info{}, fmt.Errorf("texture: decode %s as %s: %w", path, format, decodeErr)
		}
		info, err := probeAs(raw, detected)
		if err != nil {
			return Info{}, fmt.Errorf("texture: decode %s as %s or %s: %w", path, format, detected, decodeErr)
		}
		return info, nil
	}

	detected := sniff(raw)
	if detected == "" {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	info, err := probeAs(raw, detected)
	if err != nil {
		return Info{}, fmt.Errorf("texture: decode %s as %s: %w", path, detected, err)
	}
	return info, nil
}

func probeAs(raw []byte, format string) (Info, error) {
	dec, ok := decoders[format]
	if !ok {
		return Info{}, ErrUnsupportedFormat
	}
	cfg, err := dec(bytes.NewReader(raw))
	if err != nil {
		return Info{}, err
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// sniff guesses the format from the file signature. TGA has none.
func sniff(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case bytes.HasPrefix(raw, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(raw, []byte("GIF87a")), bytes.HasPrefix(raw, []byte("GIF89a")):
		return "gif"
	case bytes.HasPrefix(raw, []byte("BM")):
		return "bmp"
	case bytes.HasPrefix(raw, []byte("II*\x00")), bytes.HasPrefix(raw, []byte("MM\x00*")):
		return "tiff"
	case len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WEBP":
		return "webp"
	}
	return ""
}
