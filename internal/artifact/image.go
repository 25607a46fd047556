package artifact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"sort"

	"github.com/nfnt/resize"
)

// Downscale shrinks a PNG to maxWidth keeping the aspect ratio. Images that
// already fit, and a zero maxWidth, are returned unchanged.
func Downscale(data []byte, maxWidth uint) ([]byte, error) {
	if maxWidth == 0 {
		return data, nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	resized := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Recording collects PNG frames, one per executed command, and renders them
// as an animated GIF.
type Recording struct {
	// MaxWidth is the output frame width. Zero means 800.
	MaxWidth uint
	// Delay is the per-frame delay in 100ths of a second. Zero means 150.
	Delay int

	frames []image.Image
}

// Add decodes and appends a PNG frame.
func (r *Recording) Add(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	r.frames = append(r.frames, img)
	return nil
}

// Len returns the number of frames.
func (r *Recording) Len() int { return len(r.frames) }

// WriteGIF encodes the frames to w. All frames are resized to the width of the
// output, using the first frame's aspect ratio.
func (r *Recording) WriteGIF(w io.Writer) error {
	if len(r.frames) == 0 {
		return fmt.Errorf("recording has no frames")
	}

	width := r.MaxWidth
	if width == 0 {
		width = 800
	}
	delay := r.Delay
	if delay == 0 {
		delay = 150
	}

	bounds := r.frames[0].Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return fmt.Errorf("first frame is empty (%dx%d)", bounds.Dx(), bounds.Dy())
	}
	height := uint(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))

	g := &gif.GIF{
		Image: make([]*image.Paletted, len(r.frames)),
		Delay: make([]int, len(r.frames)),
	}
	palette := generatePalette(r.frames[0])

	for i, frame := range r.frames {
		resized := resize.Resize(width, height, frame, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	return gif.EncodeAll(w, g)
}

// generatePalette builds a 256 color palette from the most frequent colors of
// img, sampling every 4th pixel.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return rgbaKey(colors[i]) < rgbaKey(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{})
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
