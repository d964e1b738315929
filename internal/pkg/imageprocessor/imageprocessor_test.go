package imageprocessor_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/PerkFox/internal/pkg/upload"
)

type recordingMirror struct {
	files []string
	err   error
}

func (m *recordingMirror) MirrorLogo(_ context.Context, _ uint, localFilePath string) error {
	m.files = append(m.files, filepath.Base(localFilePath))
	return m.err
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessResizesAndWritesVariants(t *testing.T) {
	dir := t.TempDir()
	mirror := &recordingMirror{}
	p := imageprocessor.NewLogoProcessor(dir, mirror)

	logo, err := p.Process(context.Background(), 7, "acme.png", encodePNG(t, 1024, 256))
	require.NoError(t, err)

	assert.Equal(t, 512, logo.Width)
	assert.Equal(t, 128, logo.Height)
	assert.Equal(t, "image/png", logo.MimeType)
	assert.True(t, strings.HasPrefix(logo.Path, "/uploads/logos/7/"))
	assert.True(t, strings.HasSuffix(logo.Path, ".png"))
	assert.True(t, strings.HasSuffix(logo.WebPPath, ".webp"))

	for _, p := range []string{logo.Path, logo.WebPPath} {
		local := filepath.Join(dir, strings.TrimPrefix(p, "/uploads/"))
		_, err := os.Stat(local)
		assert.NoError(t, err, p)
	}
	assert.Len(t, mirror.files, 2)
}

func TestProcessKeepsSmallLogos(t *testing.T) {
	p := imageprocessor.NewLogoProcessor(t.TempDir(), nil)

	logo, err := p.Process(context.Background(), 1, "small.png", encodePNG(t, 40, 20))
	require.NoError(t, err)
	assert.Equal(t, 40, logo.Width)
	assert.Equal(t, 20, logo.Height)
}

func TestProcessMirrorFailureIsNotFatal(t *testing.T) {
	p := imageprocessor.NewLogoProcessor(t.TempDir(), &recordingMirror{err: errors.New("bucket down")})

	_, err := p.Process(context.Background(), 1, "acme.png", encodePNG(t, 64, 64))
	assert.NoError(t, err)
}

func TestProcessRejectsInvalidUploads(t *testing.T) {
	p := imageprocessor.NewLogoProcessor(t.TempDir(), nil)

	_, err := p.Process(context.Background(), 1, "logo.svg", []byte("<svg></svg>"))
	assert.ErrorIs(t, err, upload.ErrUnsupportedExtension)

	_, err = p.Process(context.Background(), 1, "logo.png", []byte("<html><body>x</body></html>"))
	assert.ErrorIs(t, err, upload.ErrScriptableContent)

	_, err = p.Process(context.Background(), 1, "logo.png", nil)
	assert.ErrorIs(t, err, upload.ErrEmpty)

	// valid PNG signature with a truncated body
	broken := encodePNG(t, 8, 8)[:40]
	_, err = p.Process(context.Background(), 1, "logo.png", broken)
	assert.ErrorIs(t, err, imageprocessor.ErrInvalidImage)
}

func TestRemoveDeletesBothVariants(t *testing.T) {
	dir := t.TempDir()
	p := imageprocessor.NewLogoProcessor(dir, nil)

	logo, err := p.Process(context.Background(), 3, "acme.png", encodePNG(t, 32, 32))
	require.NoError(t, err)

	require.NoError(t, p.Remove(logo.Path))

	for _, path := range []string{logo.Path, logo.WebPPath} {
		_, err := os.Stat(filepath.Join(dir, strings.TrimPrefix(path, "/uploads/")))
		assert.True(t, os.IsNotExist(err), path)
	}

	assert.NoError(t, p.Remove("https://cdn.example.com/logo.png"))
	assert.NoError(t, p.Remove("/uploads/logos/../../etc/passwd"))
}
