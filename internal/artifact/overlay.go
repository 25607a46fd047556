package artifact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/v0xg/webpilot/internal/browser"
)

var (
	outlineColor = color.RGBA{220, 38, 38, 255}
	markerColor  = color.RGBA{66, 133, 244, 200}
)

// outlineWidth is the thickness of the highlight rectangle in pixels.
const outlineWidth = 3

// Highlight returns a copy of img with box outlined and its center marked.
// Parts of the box outside the image are clipped.
func Highlight(img image.Image, box browser.Box) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	x1 := bounds.Min.X + int(math.Round(box.X))
	y1 := bounds.Min.Y + int(math.Round(box.Y))
	x2 := x1 + int(math.Round(box.Width))
	y2 := y1 + int(math.Round(box.Height))

	for i := 0; i < outlineWidth; i++ {
		drawLine(out, x1-i, y1-i, x2+i, y1-i, outlineColor)
		drawLine(out, x2+i, y1-i, x2+i, y2+i, outlineColor)
		drawLine(out, x2+i, y2+i, x1-i, y2+i, outlineColor)
		drawLine(out, x1-i, y2+i, x1-i, y1-i, outlineColor)
	}

	cx, cy := box.Center()
	drawMarker(out, bounds.Min.X+int(cx), bounds.Min.Y+int(cy))
	return out
}

// HighlightPNG decodes a PNG screenshot, outlines box and re-encodes it.
func HighlightPNG(data []byte, box browser.Box) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Highlight(img, box)); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawMarker draws a ring around the point an action targeted.
func drawMarker(img *image.RGBA, x, y int) {
	const radius = 12
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(radius*math.Cos(rad))
		py := y + int(radius*math.Sin(rad))
		setPixelSafe(img, px, py, markerColor)
		setPixelSafe(img, px+1, py, markerColor)
		setPixelSafe(img, px, py+1, markerColor)
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
