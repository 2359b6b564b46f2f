package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/nfnt/resize"
)

// previewWidth is the approximate width of rendered previews.
const previewWidth = 640

var outlineColor = color.RGBA{255, 255, 255, 255}

// frameImage copies f into an RGBA image.
func frameImage(f *Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i < f.Width*f.Height; i++ {
		off := f.offset(i)
		img.Pix[i*4] = f.Pix[off]
		img.Pix[i*4+1] = f.Pix[off+1]
		img.Pix[i*4+2] = f.Pix[off+2]
		img.Pix[i*4+3] = 255
	}
	return img
}

// RenderPreview shows f at the analyzer's resolution, scaled up, with each
// region outlined and its LED color drawn in the middle. colors may be nil.
func RenderPreview(f *Frame, a *Analyzer, regions []Region, colors []RGB) *image.RGBA {
	rw, rh := a.resolution(f)
	small := resize.Resize(uint(rw), uint(rh), frameImage(f), resize.NearestNeighbor)
	scale := max(1, previewWidth/rw)
	big := resize.Resize(uint(rw*scale), uint(rh*scale), small, resize.NearestNeighbor)

	out := image.NewRGBA(big.Bounds())
	draw.Draw(out, out.Bounds(), big, big.Bounds().Min, draw.Src)

	for i, r := range regions {
		y1, y2, x1, x2 := bounds(r, rw, rh)
		rect := image.Rect(x1*scale, y1*scale, x2*scale, y2*scale)
		if rect.Empty() {
			continue
		}
		strokeRect(out, rect, outlineColor)
		if i < len(colors) {
			c := colors[i]
			center := image.Pt((rect.Min.X+rect.Max.X)/2, (rect.Min.Y+rect.Max.Y)/2)
			dot := image.Rect(center.X-scale/2, center.Y-scale/2, center.X+scale/2+1, center.Y+scale/2+1).Intersect(rect)
			draw.Draw(out, dot, image.NewUniform(color.RGBA{c.R, c.G, c.B, 255}), image.Point{}, draw.Src)
		}
	}
	return out
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// WritePreview encodes img as PNG to path.
func WritePreview(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding preview: %w", err)
	}
	return f.Close()
}
