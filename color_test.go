package main

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestHSVRoundTrip_AllColors(t *testing.T) {
	for r := 0; r < 256; r++ {
		for g := 0; g < 256; g++ {
			for b := 0; b < 256; b++ {
				in := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
				out := in.HSV().RGB()
				if absDiff(in.R, out.R) > 1 || absDiff(in.G, out.G) > 1 || absDiff(in.B, out.B) > 1 {
					t.Fatalf("round trip of %v gave %v", in, out)
				}
			}
		}
	}
}

func TestRGBToHSV_Primaries(t *testing.T) {
	cases := []struct {
		in   RGB
		want HSV
	}{
		{RGB{255, 0, 0}, HSV{Hue: 0, Saturation: 1, Value: 1}},
		{RGB{0, 255, 0}, HSV{Hue: 2.0 / 6, Saturation: 1, Value: 1}},
		{RGB{0, 0, 255}, HSV{Hue: 4.0 / 6, Saturation: 1, Value: 1}},
		{RGB{0, 0, 0}, HSV{}},
		{RGB{255, 255, 255}, HSV{Hue: 0, Saturation: 0, Value: 1}},
	}
	for _, tc := range cases {
		got := tc.in.HSV()
		assert.InDelta(t, tc.want.Hue, got.Hue, 1e-6, "hue of %v", tc.in)
		assert.InDelta(t, tc.want.Saturation, got.Saturation, 1e-6, "saturation of %v", tc.in)
		assert.InDelta(t, tc.want.Value, got.Value, 1e-6, "value of %v", tc.in)
	}
}

func TestRGBToHSV_NegativeHueWraps(t *testing.T) {
	// Red is max and blue exceeds green, so the raw sector is negative.
	got := RGB{R: 255, G: 0, B: 128}.HSV()
	assert.Greater(t, got.Hue, float32(5.0/6))
	assert.Less(t, got.Hue, float32(1))
}

func TestRGBToHSV_MatchesColorful(t *testing.T) {
	for r := 0; r < 256; r += 17 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 13 {
				in := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
				got := in.HSV()
				h, s, v := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hsv()
				assert.InDelta(t, h, float64(got.Hue)*360, 1e-3, "hue of %v", in)
				assert.InDelta(t, s, float64(got.Saturation), 1e-5, "saturation of %v", in)
				assert.InDelta(t, v, float64(got.Value), 1e-5, "value of %v", in)
			}
		}
	}
}

func TestHSVToRGB_Gray(t *testing.T) {
	got := HSV{Hue: 0.4, Saturation: 0, Value: 0.5}.RGB()
	assert.Equal(t, RGB{127, 127, 127}, got)
}

func TestHSVToRGB_SectorSixFallsBack(t *testing.T) {
	got := HSV{Hue: 1, Saturation: 1, Value: 1}.RGB()
	assert.Equal(t, uint8(255), got.R)
}

func TestRGBsToBytes_RoundTrip(t *testing.T) {
	colors := []RGB{{1, 2, 3}, {255, 0, 128}, {0, 0, 0}, {9, 8, 7}}
	b := RGBsToBytes(nil, colors)
	require.Len(t, b, 3*len(colors))
	assert.Equal(t, []byte{1, 2, 3, 255, 0, 128, 0, 0, 0, 9, 8, 7}, b)
	assert.Equal(t, colors, BytesToRGBs(b))
}

func TestRGBsToBytes_AppendsToPrefix(t *testing.T) {
	b := RGBsToBytes([]byte{'x'}, []RGB{{10, 20, 30}})
	assert.Equal(t, []byte{'x', 10, 20, 30}, b)
}

func TestBytesToRGBs_PartialTriple(t *testing.T) {
	assert.Equal(t, []RGB{{1, 2, 3}}, BytesToRGBs([]byte{1, 2, 3, 4, 5}))
	assert.Empty(t, BytesToRGBs(nil))
}

func TestRGBString(t *testing.T) {
	if got := (RGB{R: 255, G: 128, B: 0}).String(); got != "#ff8000" {
		t.Errorf("expected #ff8000, got %s", got)
	}
}
