package main

import (
	"image"
	"sync"
)

// Frame is one captured image. Pixels are row-major; the first three bytes
// of every pixel are red, green and blue. A published Frame is never mutated,
// so it can be read from many goroutines at once.
type Frame struct {
	Width, Height int
	// Stride is the distance in bytes between the starts of two rows.
	Stride int
	// BytesPerPixel is 3 for RGB24 and 4 for RGBA.
	BytesPerPixel int
	Pix           []byte
}

// NewRGB24Frame wraps a tightly packed RGB24 buffer.
func NewRGB24Frame(pix []byte, width, height int) *Frame {
	return &Frame{Width: width, Height: height, Stride: width * 3, BytesPerPixel: 3, Pix: pix}
}

// FrameFromRGBA wraps img without copying.
func FrameFromRGBA(img *image.RGBA) *Frame {
	return &Frame{
		Width:         img.Rect.Dx(),
		Height:        img.Rect.Dy(),
		Stride:        img.Stride,
		BytesPerPixel: 4,
		Pix:           img.Pix,
	}
}

// Empty reports whether f holds no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Pix) < max(f.BytesPerPixel, 3)
}

// offset returns the byte offset of the i-th pixel in row-major order.
// Out of range indices are clamped to the last pixel.
func (f *Frame) offset(i int) int {
	if n := f.Width * f.Height; i >= n {
		i = n - 1
	}
	off := (i/f.Width)*f.Stride + (i%f.Width)*f.BytesPerPixel
	if off+2 >= len(f.Pix) {
		off = len(f.Pix) - f.BytesPerPixel
	}
	return off
}

// AxisRange is the fractional part of the image along one axis, both ends
// inclusive.
type AxisRange struct {
	Minimum float32 `json:"minimum" yaml:"minimum"`
	Maximum float32 `json:"maximum" yaml:"maximum"`
}

// Region is the part of the screen averaged for one LED.
type Region struct {
	HScan AxisRange `json:"hscan" yaml:"hscan"`
	VScan AxisRange `json:"vscan" yaml:"vscan"`
}

// Analyzer averages regions of a frame at an analysis resolution, which is
// usually coarser than the captured one.
type Analyzer struct {
	// ResizeWidth and ResizeHeight of zero mean the source dimension.
	ResizeWidth, ResizeHeight int

	mu    sync.Mutex
	cache indexCache
}

type indexCache struct {
	width, height int
	maps          [][]int
}

// NewAnalyzer returns an Analyzer for the given analysis resolution.
func NewAnalyzer(resizeWidth, resizeHeight int) *Analyzer {
	return &Analyzer{ResizeWidth: resizeWidth, ResizeHeight: resizeHeight}
}

func (a *Analyzer) resolution(f *Frame) (int, int) {
	w, h := a.ResizeWidth, a.ResizeHeight
	if w <= 0 {
		w = f.Width
	}
	if h <= 0 {
		h = f.Height
	}
	return w, h
}

// bounds returns the sampled rows [y1,y2) and columns [x1,x2) in analysis
// space.
func bounds(r Region, rw, rh int) (y1, y2, x1, x2 int) {
	y1 = int(r.VScan.Minimum * float32(rh))
	y2 = int(r.VScan.Maximum * float32(rh))
	x1 = int(r.HScan.Minimum * float32(rw))
	x2 = int(r.HScan.Maximum * float32(rw))
	return
}

// regionIndices maps every sampled analysis pixel of r back to a pixel index
// in f. The index is computed as one float32 expression and truncated.
func (a *Analyzer) regionIndices(f *Frame, r Region) []int {
	rw, rh := a.resolution(f)
	rx := float32(f.Width) / float32(rw)
	ry := float32(f.Height) / float32(rh)
	y1, y2, x1, x2 := bounds(r, rw, rh)
	if y2 <= y1 || x2 <= x1 {
		return nil
	}

	indices := make([]int, 0, (y2-y1)*(x2-x1))
	w := float32(f.Width)
	for row := y1; row < y2; row++ {
		for col := x1; col < x2; col++ {
			indices = append(indices, int(float32(row)*ry*w+float32(col)*rx))
		}
	}
	return indices
}

// AverageColor returns the mean color of region r in f. An empty frame or a
// region without sampled pixels yields black.
func (a *Analyzer) AverageColor(f *Frame, r Region) RGB {
	if f.Empty() {
		return RGB{}
	}
	return averageIndices(f, a.regionIndices(f, r))
}

func averageIndices(f *Frame, indices []int) RGB {
	if len(indices) == 0 {
		return RGB{}
	}
	var rSum, gSum, bSum uint64
	pix := f.Pix
	for _, i := range indices {
		off := f.offset(i)
		rSum += uint64(pix[off])
		gSum += uint64(pix[off+1])
		bSum += uint64(pix[off+2])
	}
	n := uint64(len(indices))
	return RGB{
		R: uint8(rSum / n),
		G: uint8(gSum / n),
		B: uint8(bSum / n),
	}
}

// IndexMaps returns the sampled pixel indices for every region. The maps
// depend only on the source geometry, so they are computed once and reused
// until a frame of a different size shows up.
func (a *Analyzer) IndexMaps(f *Frame, regions []Region) [][]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cache.maps != nil && a.cache.width == f.Width && a.cache.height == f.Height &&
		len(a.cache.maps) == len(regions) {
		return a.cache.maps
	}

	maps := make([][]int, len(regions))
	for i, r := range regions {
		maps[i] = a.regionIndices(f, r)
	}
	a.cache = indexCache{width: f.Width, height: f.Height, maps: maps}
	return maps
}
