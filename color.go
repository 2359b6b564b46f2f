package main

import (
	"fmt"
	"math"
)

// rgbSize is the number of bytes one color occupies on the wire.
const rgbSize = 3

// RGB holds an 8-bit color value.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSV is a color in hue/saturation/value space. All three components are
// normalized to [0,1]; hue is a fraction of a full turn, not degrees.
type HSV struct {
	Hue, Saturation, Value float32
}

// modulo is the floor-based modulo, so negative l wraps into [0, r).
func modulo(l, r float32) float32 {
	m := float32(math.Mod(float64(l), float64(r)))
	if m < 0 {
		m += r
	}
	return m
}

// HSV converts c using the six-sector hexagonal projection.
func (c RGB) HSV() HSV {
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	chroma := float32(hi - lo)

	var sector float32
	switch {
	case chroma == 0:
		sector = 0
	case hi == c.R:
		sector = modulo((float32(c.G)-float32(c.B))/chroma, 6)
	case hi == c.G:
		sector = (float32(c.B)-float32(c.R))/chroma + 2
	default:
		sector = (float32(c.R)-float32(c.G))/chroma + 4
	}

	var saturation float32
	if hi != 0 {
		saturation = chroma / float32(hi)
	}

	return HSV{
		Hue:        sector / 6,
		Saturation: saturation,
		Value:      float32(hi) / 255,
	}
}

// RGB converts h back to 8-bit RGB. Channels are truncated, so a round trip
// through HSV may come back one lower than it started.
func (h HSV) RGB() RGB {
	if h.Saturation == 0 {
		v := uint8(h.Value * 255)
		return RGB{R: v, G: v, B: v}
	}

	sectorF := h.Hue * 6
	sector := int(sectorF)
	f := sectorF - float32(sector)
	val := h.Value * 255

	p := uint8(val * (1 - h.Saturation))
	q := uint8(val * (1 - h.Saturation*f))
	t := uint8(val * (1 - h.Saturation*(1-f)))
	v := uint8(val)

	switch sector {
	case 0:
		return RGB{R: v, G: t, B: p}
	case 1:
		return RGB{R: q, G: v, B: p}
	case 2:
		return RGB{R: p, G: v, B: t}
	case 3:
		return RGB{R: p, G: q, B: v}
	case 4:
		return RGB{R: t, G: p, B: v}
	default:
		return RGB{R: v, G: p, B: q}
	}
}

// RGBsToBytes appends colors to dst as r,g,b triples and returns the
// extended slice.
func RGBsToBytes(dst []byte, colors []RGB) []byte {
	for _, c := range colors {
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}

// BytesToRGBs decodes r,g,b triples. A trailing partial triple is ignored.
func BytesToRGBs(b []byte) []RGB {
	colors := make([]RGB, len(b)/rgbSize)
	for i := range colors {
		off := i * rgbSize
		colors[i] = RGB{R: b[off], G: b[off+1], B: b[off+2]}
	}
	return colors
}
