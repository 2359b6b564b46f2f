package main

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// screenshotCapturer grabs display 0 on every Capture call. It is the
// fallback when no streaming backend is available and works on X11,
// macOS and Windows.
type screenshotCapturer struct {
	bounds image.Rectangle
	grab   func(image.Rectangle) (*image.RGBA, error)
}

func newScreenshotCapturer() (Capturer, string, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, "", fmt.Errorf("no active displays found")
	}
	return &screenshotCapturer{
		bounds: screenshot.GetDisplayBounds(0),
		grab:   screenshot.CaptureRect,
	}, "Screenshot", nil
}

// Capture returns the full display as a 4-byte-per-pixel frame. The
// analyzer downsamples it, so no scaling happens here.
func (c *screenshotCapturer) Capture() (*Frame, error) {
	img, err := c.grab(c.bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: capturing screen: %v", ErrCaptureFailed, err)
	}
	if img.Rect.Dx() != c.bounds.Dx() || img.Rect.Dy() != c.bounds.Dy() {
		return nil, fmt.Errorf("%w: display changed from %dx%d to %dx%d", ErrAccessLost,
			c.bounds.Dx(), c.bounds.Dy(), img.Rect.Dx(), img.Rect.Dy())
	}
	return FrameFromRGBA(img), nil
}

func (c *screenshotCapturer) Geometry() (int, int) {
	return c.bounds.Dx(), c.bounds.Dy()
}

func (c *screenshotCapturer) Close() error { return nil }
