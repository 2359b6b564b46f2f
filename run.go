package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
)

// diagInterval is the number of refresh ticks between diagnostics.
const diagInterval = 60

// Capture retry delays.
const (
	accessDeniedInterval = 2 * time.Second
	captureRetryMax      = 30 * time.Second
)

// CaptureOpener opens a capturer and names its method.
type CaptureOpener func() (Capturer, string, error)

// Status is a snapshot of the runner after a refresh tick.
type Status struct {
	Method     string
	Colors     []RGB
	FPS        float64
	Compute    time.Duration
	CaptureErr error
	Writer     WriterStats
}

// Runner drives capture, the pipeline and the writer. Capture and refresh
// run on separate goroutines at their own rates and meet at an atomically
// published frame, so neither waits for the other.
type Runner struct {
	openCapture     CaptureOpener
	pipeline        *Pipeline
	writer          *Writer
	header          [adalightHeaderSize]byte
	captureInterval time.Duration
	refreshInterval time.Duration

	// owned by the capture loop
	capturer Capturer
	denied   backoff.BackOff
	failed   backoff.BackOff

	frame atomic.Pointer[Frame]

	mu         sync.Mutex // guards method and captureErr
	method     string
	captureErr error

	onStatus func(Status)
	diag     diagnostics
}

type diagnostics struct {
	ticks   int
	since   time.Time
	compute time.Duration
	dropped uint64
	fps     float64
}

// NewRunner returns a runner for p writing through w. The capturer is opened
// when Run starts.
func NewRunner(open CaptureOpener, p *Pipeline, w *Writer, captureInterval, refreshInterval time.Duration) *Runner {
	return &Runner{
		openCapture:     open,
		pipeline:        p,
		writer:          w,
		header:          AdalightHeader(p.Len()),
		captureInterval: captureInterval,
		refreshInterval: refreshInterval,
		denied:          newCaptureBackOff(accessDeniedInterval),
		failed:          newCaptureBackOff(captureInterval),
	}
}

func newCaptureBackOff(initial time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = captureRetryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// OnStatus registers fn to be called after every refresh tick. It must be
// set before Run and must not block.
func (r *Runner) OnStatus(fn func(Status)) {
	r.onStatus = fn
}

// Run captures and drives the LEDs until ctx is cancelled, then blanks the
// LEDs and closes the output.
func (r *Runner) Run(ctx context.Context) error {
	c, method, err := r.openCapture()
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	r.capturer = c
	r.setMethod(method)
	w, h := c.Geometry()
	log.Info().
		Str("method", method).
		Int("width", w).
		Int("height", h).
		Int("leds", r.pipeline.Len()).
		Dur("capture_interval", r.captureInterval).
		Dur("refresh_interval", r.refreshInterval).
		Msg("capture started")

	var wg sync.WaitGroup
	wg.Go(func() { r.writer.Run(ctx) })
	wg.Go(func() { r.captureLoop(ctx) })
	r.refreshLoop(ctx)
	wg.Wait()

	if r.capturer != nil {
		if err := r.capturer.Close(); err != nil {
			log.Debug().Err(err).Msg("closing capture")
		}
	}
	black := BuildAdalightMessage(nil, r.header, make([]RGB, r.pipeline.Len()))
	if err := r.writer.Shutdown(black); err != nil {
		return fmt.Errorf("blanking LEDs: %w", err)
	}
	return nil
}

func (r *Runner) captureLoop(ctx context.Context) {
	ticker := time.NewTicker(r.captureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		delay := r.captureOnce()
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// captureOnce grabs a frame and publishes it. On failure the previous frame
// stays published and the returned delay, if any, is waited out before the
// next attempt.
func (r *Runner) captureOnce() time.Duration {
	if r.capturer == nil {
		if err := r.reopenCapture(); err != nil {
			r.setCaptureErr(err)
			log.Warn().Err(err).Msg("capture unavailable")
			return r.failed.NextBackOff()
		}
	}

	f, err := r.capturer.Capture()
	switch {
	case err == nil:
		r.frame.Store(f)
		r.denied.Reset()
		r.failed.Reset()
		r.setCaptureErr(nil)
		return 0
	case errors.Is(err, ErrTimeout):
		return 0
	case errors.Is(err, ErrAccessLost):
		log.Debug().Err(err).Msg("capture access lost, reopening")
		_ = r.capturer.Close()
		r.capturer = nil
		if err := r.reopenCapture(); err != nil {
			r.setCaptureErr(err)
			log.Warn().Err(err).Msg("capture unavailable")
			return r.failed.NextBackOff()
		}
		return 0
	case errors.Is(err, ErrAccessDenied):
		r.setCaptureErr(err)
		log.Warn().Err(err).Msg("capture access denied")
		return r.denied.NextBackOff()
	default:
		r.setCaptureErr(err)
		log.Warn().Err(err).Msg("capture failed")
		return r.failed.NextBackOff()
	}
}

func (r *Runner) reopenCapture() error {
	c, method, err := r.openCapture()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailure, err)
	}
	r.capturer = c
	r.setMethod(method)
	log.Info().Str("method", method).Msg("capture reopened")
	return nil
}

func (r *Runner) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	last := time.Now()
	r.diag.since = last
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			r.tick(now, elapsed)
		}
	}
}

// tick runs the pipeline on the latest frame and hands the result to the
// writer.
func (r *Runner) tick(now time.Time, elapsed time.Duration) {
	start := time.Now()
	colors := r.pipeline.Tick(r.frame.Load(), elapsed)
	msg := BuildAdalightMessage(r.writer.Buffer(), r.header, colors)
	r.writer.Submit(msg)
	compute := time.Since(start)

	r.diagnose(now, compute)

	if r.onStatus != nil {
		r.mu.Lock()
		st := Status{
			Method:     r.method,
			Colors:     append([]RGB(nil), colors...),
			FPS:        r.diag.fps,
			Compute:    compute,
			CaptureErr: r.captureErr,
			Writer:     r.writer.Stats(),
		}
		r.mu.Unlock()
		r.onStatus(st)
	}
}

func (r *Runner) diagnose(now time.Time, compute time.Duration) {
	d := &r.diag
	d.ticks++
	d.compute += compute
	if d.ticks < diagInterval {
		return
	}

	if span := now.Sub(d.since); span > 0 {
		d.fps = float64(d.ticks) / span.Seconds()
	}
	stats := r.writer.Stats()
	log.Debug().
		Float64("fps", d.fps).
		Dur("avg_compute", d.compute/time.Duration(d.ticks)).
		Uint64("dropped", stats.Dropped-d.dropped).
		Uint64("write_errors", stats.Failed).
		Msg("diagnostics")

	d.ticks = 0
	d.compute = 0
	d.since = now
	d.dropped = stats.Dropped
}

func (r *Runner) setMethod(method string) {
	r.mu.Lock()
	r.method = method
	r.mu.Unlock()
}

func (r *Runner) setCaptureErr(err error) {
	r.mu.Lock()
	r.captureErr = err
	r.mu.Unlock()
}
