package main

import (
	"fmt"
	"time"
)

// SmoothingKind selects how output colors follow their targets over time.
type SmoothingKind int

const (
	SmoothingNone SmoothingKind = iota
	SmoothingLinear
)

// minTimeConstant keeps the smoothing factor finite.
const minTimeConstant = time.Millisecond

func (k SmoothingKind) String() string {
	switch k {
	case SmoothingNone:
		return "none"
	case SmoothingLinear:
		return "linear"
	default:
		return fmt.Sprintf("SmoothingKind(%d)", int(k))
	}
}

// ParseSmoothingKind parses the configuration name of a smoothing kind.
func ParseSmoothingKind(s string) (SmoothingKind, error) {
	switch s {
	case "none", "":
		return SmoothingNone, nil
	case "linear":
		return SmoothingLinear, nil
	default:
		return 0, fmt.Errorf("unknown smoothing type %q", s)
	}
}

// SmoothingFactor is the fraction of the way to the target covered after
// elapsed time.
func SmoothingFactor(elapsed, timeConstant time.Duration) float32 {
	timeConstant = max(timeConstant, minTimeConstant)
	return float32(elapsed.Seconds() / timeConstant.Seconds())
}

// Smooth moves prev toward target by factor. Factors above 1 land exactly
// on target.
func Smooth(kind SmoothingKind, prev, target RGB, factor float32) RGB {
	if kind != SmoothingLinear || factor > 1 {
		return target
	}
	return RGB{
		R: lerp(prev.R, target.R, factor),
		G: lerp(prev.G, target.G, factor),
		B: lerp(prev.B, target.B, factor),
	}
}

func lerp(from, to uint8, factor float32) uint8 {
	f := float32(from)
	return uint8(f + (float32(to)-f)*factor)
}
