package artifact

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webpilot/internal/browser"
)

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestDownscale(t *testing.T) {
	src := solidPNG(t, 200, 100, color.RGBA{255, 255, 255, 255})

	out, err := Downscale(src, 50)
	require.NoError(t, err)
	img := decode(t, out)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())

	same, err := Downscale(src, 400)
	require.NoError(t, err)
	assert.Equal(t, src, same)

	same, err = Downscale(src, 0)
	require.NoError(t, err)
	assert.Equal(t, src, same)

	_, err = Downscale([]byte("not a png"), 10)
	assert.Error(t, err)
}

func TestHighlightOutlinesBox(t *testing.T) {
	src := solidPNG(t, 100, 100, color.RGBA{255, 255, 255, 255})

	out, err := HighlightPNG(src, browser.Box{X: 20, Y: 20, Width: 40, Height: 30})
	require.NoError(t, err)
	img := decode(t, out)

	r, g, b, _ := img.At(20, 20).RGBA()
	assert.Equal(t, [3]uint32{220, 38, 38}, [3]uint32{r >> 8, g >> 8, b >> 8})
	r, g, b, _ = img.At(60, 50).RGBA()
	assert.Equal(t, [3]uint32{220, 38, 38}, [3]uint32{r >> 8, g >> 8, b >> 8})

	r, g, b, _ = img.At(5, 5).RGBA()
	assert.Equal(t, [3]uint32{255, 255, 255}, [3]uint32{r >> 8, g >> 8, b >> 8})
}

func TestHighlightClipsOutsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.NotPanics(t, func() {
		Highlight(img, browser.Box{X: -50, Y: 5, Width: 500, Height: 500})
	})
}

func TestStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s := NewStore(dir)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

	path, err := s.SavePNG("CAPTCHA recaptcha", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "captcha-recaptcha-20260301-123000-"), path)
	assert.True(t, strings.HasSuffix(path, ".png"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestDisabledStore(t *testing.T) {
	for _, s := range []*Store{nil, NewStore(""), {}} {
		assert.False(t, s.Enabled())
		path, err := s.SavePNG("x", []byte("y"))
		assert.NoError(t, err)
		assert.Empty(t, path)
	}
}

func TestRecordingWritesAnimatedGIF(t *testing.T) {
	rec := &Recording{MaxWidth: 40}
	require.NoError(t, rec.Add(solidPNG(t, 80, 40, color.RGBA{255, 0, 0, 255})))
	require.NoError(t, rec.Add(solidPNG(t, 80, 40, color.RGBA{0, 0, 255, 255})))
	assert.Equal(t, 2, rec.Len())

	var buf bytes.Buffer
	require.NoError(t, rec.WriteGIF(&buf))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, 40, g.Image[0].Bounds().Dx())
	assert.Equal(t, 20, g.Image[0].Bounds().Dy())
	assert.Equal(t, []int{150, 150}, g.Delay)

	assert.Error(t, (&Recording{}).WriteGIF(&buf))
}

func TestRecordingRejectsEmptyFirstFrame(t *testing.T) {
	rec := &Recording{}
	rec.frames = append(rec.frames, image.NewRGBA(image.Rect(0, 0, 0, 40)))
	require.NoError(t, rec.Add(solidPNG(t, 80, 40, color.RGBA{0, 255, 0, 255})))

	var buf bytes.Buffer
	err := rec.WriteGIF(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
	assert.Zero(t, buf.Len())
}
