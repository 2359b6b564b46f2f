package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/rs/zerolog/log"
)

// Default streaming resolution when the framegrabber size is not configured.
const (
	defaultCaptureWidth  = 64
	defaultCaptureHeight = 36
)

// firstFrameTimeout bounds how long a streaming backend may take to deliver
// its first frame.
const firstFrameTimeout = 5 * time.Second

var (
	// ErrAccessDenied means the display cannot be captured right now, e.g.
	// a protected fullscreen application.
	ErrAccessDenied = errors.New("capture access denied")
	// ErrAccessLost means the capture session went away, e.g. a mode change.
	ErrAccessLost = errors.New("capture access lost")
	// ErrTimeout means no new frame is available yet.
	ErrTimeout = errors.New("capture timed out")
	// ErrRefreshFailure means the capture source could not be refreshed
	// after a geometry change.
	ErrRefreshFailure = errors.New("capture refresh failed")
	// ErrCaptureFailed is any other capture failure.
	ErrCaptureFailed = errors.New("capture failed")
)

// Capturer grabs frames of the primary display.
type Capturer interface {
	// Capture returns the most recent frame. The frame must not be modified
	// and stays valid after the next call.
	Capture() (*Frame, error)
	// Geometry returns the size of the frames Capture produces.
	Geometry() (int, int)
	Close() error
}

// Capture methods accepted by NewCapturer.
const (
	MethodAuto       = "auto"
	MethodPipeWire   = "pipewire"
	MethodFFmpeg     = "ffmpeg"
	MethodScreenshot = "screenshot"
)

// NewCapturer returns a capturer for the given method. MethodAuto tries
// PipeWire → FFmpeg → screenshot and returns the first that works. The
// streaming backends scale to width x height.
func NewCapturer(method string, width, height int) (Capturer, string, error) {
	if width <= 0 || height <= 0 {
		width, height = defaultCaptureWidth, defaultCaptureHeight
	}

	switch method {
	case MethodPipeWire:
		return newPipeWireCapturer(width, height)
	case MethodFFmpeg:
		return newFFmpegCapturer(width, height)
	case MethodScreenshot:
		return newScreenshotCapturer()
	case MethodAuto, "":
	default:
		return nil, "", fmt.Errorf("unknown capture method %q", method)
	}

	c, name, err := newPipeWireCapturer(width, height)
	if err == nil {
		return c, name, nil
	}
	log.Debug().Err(err).Msg("pipewire capture unavailable")

	c, name, err = newFFmpegCapturer(width, height)
	if err == nil {
		return c, name, nil
	}
	log.Debug().Err(err).Msg("ffmpeg capture unavailable")

	return newScreenshotCapturer()
}

// streamCapturer reads fixed-size RGB24 frames from a child process.
type streamCapturer struct {
	width, height int
	done          chan struct{}
	ready         chan struct{} // closed when the first frame is available

	mu    sync.Mutex
	frame *Frame
	fresh bool
	err   error
}

func newStreamCapturer(width, height int) *streamCapturer {
	return &streamCapturer{
		width:  width,
		height: height,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
}

// readFrames publishes a new Frame per complete read. Published buffers are
// never written again.
func (c *streamCapturer) readFrames(r io.Reader) {
	defer close(c.done)
	size := c.width * c.height * 3
	first := true
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: stream ended: %v", ErrAccessLost, err)
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		c.frame = NewRGB24Frame(buf, c.width, c.height)
		c.fresh = true
		c.mu.Unlock()
		if first {
			close(c.ready)
			first = false
		}
	}
}

// waitFirstFrame blocks until the reader delivered a frame or gave up.
func (c *streamCapturer) waitFirstFrame() error {
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return fmt.Errorf("stream ended before the first frame")
	case <-time.After(firstFrameTimeout):
		return fmt.Errorf("timed out waiting for first frame")
	}
}

func (c *streamCapturer) Capture() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.frame == nil || !c.fresh {
		return nil, ErrTimeout
	}
	c.fresh = false
	return c.frame, nil
}

func (c *streamCapturer) Geometry() (int, int) {
	return c.width, c.height
}

// hasExecutable reports whether the named program is on PATH.
func hasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// screenSize returns the dimensions of display 0 using kbinani/screenshot.
func screenSize() (int, int, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return 0, 0, fmt.Errorf("no active displays")
	}
	b := screenshot.GetDisplayBounds(0)
	return b.Dx(), b.Dy(), nil
}
