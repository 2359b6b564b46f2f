package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
)

// Sink receives complete Adalight messages.
type Sink interface {
	Write(msg []byte) error
	Close() error
}

// SinkOpener opens the configured output device.
type SinkOpener func() (Sink, error)

// Reopen delays after a failed write or open.
const (
	reopenInitialInterval = 500 * time.Millisecond
	reopenMaxInterval     = 10 * time.Second
)

// Writer hands messages from the refresh loop to a sink on its own
// goroutine. Submit never blocks: while a write is in flight the next
// message waits in a single slot, and a message arriving while that slot is
// taken is dropped.
type Writer struct {
	open SinkOpener

	pending chan []byte
	free    chan []byte

	mu      sync.Mutex // guards sink, retryAt and retry
	sink    Sink
	retryAt time.Time
	retry   backoff.BackOff
	now     func() time.Time

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewWriter(open SinkOpener) *Writer {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reopenInitialInterval
	b.MaxInterval = reopenMaxInterval
	b.MaxElapsedTime = 0 // keep trying while running
	b.Reset()

	return &Writer{
		open:    open,
		pending: make(chan []byte, 1),
		free:    make(chan []byte, 2),
		retry:   b,
		now:     time.Now,
	}
}

// Buffer returns a buffer for the next message, recycled from earlier
// writes when one is available.
func (w *Writer) Buffer() []byte {
	select {
	case buf := <-w.free:
		return buf[:0]
	default:
		return nil
	}
}

// Submit queues msg for writing and reports whether it was accepted. The
// caller must not touch msg afterwards either way.
func (w *Writer) Submit(msg []byte) bool {
	select {
	case w.pending <- msg:
		return true
	default:
		w.dropped.Add(1)
		w.recycle(msg)
		return false
	}
}

func (w *Writer) recycle(buf []byte) {
	select {
	case w.free <- buf:
	default:
	}
}

// Run writes queued messages until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.pending:
			if err := w.write(msg); err != nil {
				w.failed.Add(1)
				log.Warn().Err(err).Msg("LED write failed")
			}
			w.recycle(msg)
		}
	}
}

// write sends msg to the sink, opening it first if needed. While a reopen
// is backing off messages are discarded.
func (w *Writer) write(msg []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sink == nil {
		if w.now().Before(w.retryAt) {
			return nil
		}
		s, err := w.open()
		if err != nil {
			w.scheduleRetry()
			return fmt.Errorf("opening output: %w", err)
		}
		log.Info().Msg("LED output opened")
		w.sink = s
	}

	if err := w.sink.Write(msg); err != nil {
		_ = w.sink.Close()
		w.sink = nil
		w.scheduleRetry()
		return err
	}
	w.retry.Reset()
	w.written.Add(1)
	return nil
}

func (w *Writer) scheduleRetry() {
	w.retryAt = w.now().Add(w.retry.NextBackOff())
}

// Shutdown writes msg synchronously, ignoring any pending backoff, and
// closes the sink. Call it after Run returned.
func (w *Writer) Shutdown(msg []byte) error {
	w.mu.Lock()
	w.retryAt = time.Time{}
	w.mu.Unlock()

	err := w.write(msg)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink != nil {
		if cerr := w.sink.Close(); err == nil {
			err = cerr
		}
		w.sink = nil
	}
	return err
}

// WriterStats counts messages since the writer was created.
type WriterStats struct {
	Written, Dropped, Failed uint64
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
	}
}

// consoleSink logs messages instead of driving hardware.
type consoleSink struct{}

func (consoleSink) Write(msg []byte) error {
	if len(msg) < adalightHeaderSize {
		return fmt.Errorf("short message: %d bytes", len(msg))
	}
	colors := BytesToRGBs(msg[adalightHeaderSize:])
	ev := log.Debug().Int("leds", len(colors))
	if len(colors) > 0 {
		ev = ev.Stringer("first", colors[0]).Stringer("last", colors[len(colors)-1])
	}
	ev.Msg("frame")
	return nil
}

func (consoleSink) Close() error { return nil }
