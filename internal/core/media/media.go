// Package media validates user-selected images and encodes them into data
// URIs suitable for the verification endpoint.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	// decoders for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the largest image accepted for verification (5 MiB).
const DefaultMaxBytes int64 = 5 << 20

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("file too large")
)

// Handle is a reference to a user-selected file on disk. It carries only
// metadata; the content is read by Encode.
type Handle struct {
	Path string
	Name string
	Size int64
	MIME string
}

// Preview describes an encoded image for display.
type Preview struct {
	Name   string
	MIME   string
	Width  int
	Height int
	Size   int64
}

// String renders a one-line description, e.g. "run.jpg · image/jpeg · 640×480 · 1.2 MiB".
func (p Preview) String() string {
	parts := []string{p.Name, p.MIME}
	if p.Width > 0 && p.Height > 0 {
		parts = append(parts, fmt.Sprintf("%d×%d", p.Width, p.Height))
	}
	parts = append(parts, humanize.IBytes(uint64(p.Size)))
	return strings.Join(parts, " · ")
}

// Encoded is the transmissible form of an image.
type Encoded struct {
	DataURI string
	Preview Preview
}

// Limits are the hard constraints applied when an image is selected.
type Limits struct {
	MaxBytes int64
}

// DefaultLimits returns the limits used by the product.
func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBytes}
}

// Validate checks the handle against the limits. Errors wrap ErrNotImage or
// ErrTooLarge.
func (l Limits) Validate(h Handle) error {
	if !IsImage(h.MIME) {
		return fmt.Errorf("%w: %s is %s", ErrNotImage, h.Name, h.MIME)
	}

	maxBytes := l.maxBytes()
	if h.Size > maxBytes {
		return fmt.Errorf("%w: %s is %s, limit is %s",
			ErrTooLarge, h.Name, humanize.IBytes(uint64(h.Size)), humanize.IBytes(uint64(maxBytes)))
	}

	return nil
}

func (l Limits) maxBytes() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}

// IsImage reports whether a MIME type names an image.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// Inspect stats the file at path and sniffs its content type.
func Inspect(path string) (Handle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Handle{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return Handle{}, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Handle{}, fmt.Errorf("detect content type: %w", err)
	}

	return Handle{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
		MIME: mt.String(),
	}, nil
}

// Encode reads the file behind h and produces its data URI and preview.
// Type and size are checked again against what was read, since the file may
// have changed after it was inspected. Errors wrap ErrNotImage or ErrTooLarge.
func Encode(ctx context.Context, h Handle, l Limits) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}

	f, err := os.Open(h.Path)
	if err != nil {
		return Encoded{}, fmt.Errorf("read image: %w", err)
	}
	defer func() { _ = f.Close() }()

	maxBytes := l.maxBytes()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return Encoded{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Encoded{}, fmt.Errorf("%w: %s exceeds %s",
			ErrTooLarge, h.Name, humanize.IBytes(uint64(maxBytes)))
	}

	mime := mimetype.Detect(data).String()
	if !IsImage(mime) {
		return Encoded{}, fmt.Errorf("%w: %s is %s", ErrNotImage, h.Name, mime)
	}

	preview := Preview{
		Name: h.Name,
		MIME: mime,
		Size: int64(len(data)),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		preview.Width = cfg.Width
		preview.Height = cfg.Height
	}

	return Encoded{
		DataURI: DataURI(mime, data),
		Preview: preview,
	}, nil
}

// DataURI formats data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}

	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}

	return mime, data, nil
}
