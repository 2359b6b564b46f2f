package main

import (
	"math"
	"strconv"
	"strings"
)

// ChannelCorrection transforms one additive color channel.
type ChannelCorrection struct {
	// Threshold is the minimum corrected value for the channel to be lit.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// Gamma is the gamma-curve correction factor.
	Gamma float32 `json:"gamma" yaml:"gamma"`
	// Blacklevel is the lowest output value, produced for black input.
	Blacklevel float32 `json:"blacklevel" yaml:"blacklevel"`
	// Whitelevel scales the output for white input.
	Whitelevel float32 `json:"whitelevel" yaml:"whitelevel"`
}

// DefaultChannelCorrection is the identity correction.
var DefaultChannelCorrection = ChannelCorrection{Threshold: 0, Gamma: 1, Blacklevel: 0, Whitelevel: 1}

// IsDefault reports whether c leaves every input unchanged.
func (c ChannelCorrection) IsDefault() bool {
	return c == DefaultChannelCorrection
}

func (c ChannelCorrection) apply(v uint8) uint8 {
	x := float32(math.Pow(float64(v)/255, float64(c.Gamma)))*c.Whitelevel*(1-c.Blacklevel) + c.Blacklevel
	if x < c.Threshold {
		x = 0
	}
	return uint8(max(0, min(x*255, 255)))
}

// RGBCorrection holds one independent correction per channel.
type RGBCorrection struct {
	Red   ChannelCorrection `json:"red" yaml:"red"`
	Green ChannelCorrection `json:"green" yaml:"green"`
	Blue  ChannelCorrection `json:"blue" yaml:"blue"`
}

// IsDefault reports whether all three channels are identity corrections.
func (c RGBCorrection) IsDefault() bool {
	return c.Red.IsDefault() && c.Green.IsDefault() && c.Blue.IsDefault()
}

// Apply corrects each channel of in.
func (c RGBCorrection) Apply(in RGB) RGB {
	return RGB{R: c.Red.apply(in.R), G: c.Green.apply(in.G), B: c.Blue.apply(in.B)}
}

// HSVCorrection scales saturation and value.
type HSVCorrection struct {
	SaturationGain float32 `json:"saturationGain" yaml:"saturationGain"`
	ValueGain      float32 `json:"valueGain" yaml:"valueGain"`
}

// IsDefault reports whether both gains are 1.
func (c HSVCorrection) IsDefault() bool {
	return c.SaturationGain == 1 && c.ValueGain == 1
}

// Apply scales in, keeping saturation and value within [0,1].
func (c HSVCorrection) Apply(in HSV) HSV {
	return HSV{
		Hue:        in.Hue,
		Saturation: min(1, in.Saturation*c.SaturationGain),
		Value:      min(1, in.Value*c.ValueGain),
	}
}

// Transform is one color transform entry of the configuration. Either stage
// may be absent.
type Transform struct {
	// LEDs lists the LED indices the entry applies to, e.g. "0-5, 9" or "*".
	LEDs string
	RGB  *RGBCorrection
	HSV  *HSVCorrection
}

// stage is the part of a Transform that changes colors. Identity stages are
// left nil.
type stage struct {
	rgb *RGBCorrection
	hsv *HSVCorrection
}

func (t Transform) stage() (stage, bool) {
	var s stage
	if t.RGB != nil && !t.RGB.IsDefault() {
		s.rgb = t.RGB
	}
	if t.HSV != nil && !t.HSV.IsDefault() {
		s.hsv = t.HSV
	}
	return s, s.rgb != nil || s.hsv != nil
}

// workingColor carries a color through a chain in whichever representation
// the last stage produced.
type workingColor struct {
	isHSV bool
	rgb   RGB
	hsv   HSV
}

func (w workingColor) toRGB() RGB {
	if w.isHSV {
		return w.hsv.RGB()
	}
	return w.rgb
}

func (w workingColor) toHSV() HSV {
	if w.isHSV {
		return w.hsv
	}
	return w.rgb.HSV()
}

// Chain is the ordered list of corrections bound to one LED.
type Chain []stage

// Apply runs every stage of the chain over in, in configuration order.
func (c Chain) Apply(in RGB) RGB {
	w := workingColor{rgb: in}
	for _, s := range c {
		if s.rgb != nil {
			w = workingColor{rgb: s.rgb.Apply(w.toRGB())}
		}
		if s.hsv != nil {
			w = workingColor{isHSV: true, hsv: s.hsv.Apply(w.toHSV())}
		}
	}
	return w.toRGB()
}

// IndexRange is a half-open range of LED indices.
type IndexRange struct {
	Start, End int
}

// ParseLEDIndices parses a comma separated list of indices and inclusive
// index ranges, such as "3, 4-8, 0, 20-24", or "*" for all n LEDs.
// Malformed entries are skipped.
func ParseLEDIndices(s string, n int) []IndexRange {
	if strings.TrimSpace(s) == "*" {
		return []IndexRange{{Start: 0, End: n}}
	}

	var ranges []IndexRange
	for _, entry := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(entry), "-")
		i, err := strconv.Atoi(lo)
		if err != nil || i < 0 {
			continue
		}
		if !isRange {
			ranges = append(ranges, IndexRange{Start: i, End: i + 1})
			continue
		}
		j, err := strconv.Atoi(hi)
		if err != nil || j < i {
			continue
		}
		ranges = append(ranges, IndexRange{Start: i, End: j + 1})
	}
	return ranges
}

// BindTransforms builds the chain of every LED from the configured
// transform entries. Indices beyond n are ignored.
func BindTransforms(transforms []Transform, n int) []Chain {
	chains := make([]Chain, n)
	for _, t := range transforms {
		s, ok := t.stage()
		if !ok {
			continue
		}
		for _, r := range ParseLEDIndices(t.LEDs, n) {
			for i := r.Start; i < min(r.End, n); i++ {
				chains[i] = append(chains[i], s)
			}
		}
	}
	return chains
}
