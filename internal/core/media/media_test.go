package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestInspect_png(t *testing.T) {
	path := writePNG(t, t.TempDir(), 4, 3)

	h, err := Inspect(path)
	require.NoError(t, err)

	assert.Equal(t, "photo.png", h.Name)
	assert.Equal(t, "image/png", h.MIME)
	assert.Positive(t, h.Size)
}

func TestInspect_missing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}

func TestInspect_directory(t *testing.T) {
	_, err := Inspect(t.TempDir())
	require.Error(t, err)
}

func TestLimits_Validate(t *testing.T) {
	tests := []struct {
		name    string
		handle  Handle
		wantErr error
	}{
		{
			name:   "image within limit",
			handle: Handle{Name: "a.jpg", MIME: "image/jpeg", Size: DefaultMaxBytes},
		},
		{
			name:    "image over limit",
			handle:  Handle{Name: "big.png", MIME: "image/png", Size: 6 << 20},
			wantErr: ErrTooLarge,
		},
		{
			name:    "not an image",
			handle:  Handle{Name: "notes.txt", MIME: "text/plain; charset=utf-8", Size: 10},
			wantErr: ErrNotImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultLimits().Validate(tt.handle)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLimits_Validate_zero_uses_default(t *testing.T) {
	err := Limits{}.Validate(Handle{Name: "a.png", MIME: "image/png", Size: DefaultMaxBytes + 1})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestInspect_six_MiB_file_is_too_large(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.png")

	// PNG signature followed by padding so content sniffing still says PNG.
	data := make([]byte, 6<<20)
	copy(data, []byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", h.MIME)

	err = DefaultLimits().Validate(h)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "6.0 MiB")
}

func TestEncode(t *testing.T) {
	path := writePNG(t, t.TempDir(), 8, 5)
	h, err := Inspect(path)
	require.NoError(t, err)

	enc, err := Encode(context.Background(), h, DefaultLimits())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(enc.DataURI, "data:image/png;base64,"))
	assert.Equal(t, 8, enc.Preview.Width)
	assert.Equal(t, 5, enc.Preview.Height)
	assert.Contains(t, enc.Preview.String(), "8×5")

	mime, data, err := ParseDataURI(enc.DataURI)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, h.Size, int64(len(data)))
}

func TestEncode_rechecks_size_after_growth(t *testing.T) {
	path := writePNG(t, t.TempDir(), 2, 2)
	h, err := Inspect(path)
	require.NoError(t, err)
	require.NoError(t, Limits{MaxBytes: 1024}.Validate(h))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 2048))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Encode(context.Background(), h, Limits{MaxBytes: 1024})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "1.0 KiB")
}

func TestEncode_rejects_non_image_content(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.png")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	_, err := Encode(context.Background(), Handle{Path: path, Name: "fake.png", MIME: "image/png"}, DefaultLimits())
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestEncode_cancelled_context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Encode(ctx, Handle{Path: "irrelevant"}, DefaultLimits())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDataURI_errors(t *testing.T) {
	for _, uri := range []string{
		"http://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,abcd",
		"data:image/png;base64,!!!",
	} {
		_, _, err := ParseDataURI(uri)
		assert.Error(t, err, uri)
	}
}
