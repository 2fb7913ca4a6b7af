// Package stream implements the tee fan-out at the heart of the streaming
// cache pipeline: upstream response bytes are simultaneously delivered to
// the client and to a background persister, without buffering the whole
// object and without making either consumer wait for the other.
package stream

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/re-cinq/registry-cache/internal/bus"
)

// Fanout reads src exactly once in a background goroutine, and for every
// chunk read: (a) pushes a copy onto Chunks for a persister command to
// consume, and (b) writes it into a bounded in-memory pipe whose read half
// CopyTo drains to the client. Both sinks observe upstream bytes in
// receive order.
//
// A broken client connection (CopyTo's destination write fails) must not
// orphan the persister: failures there are absorbed by safeWriter so the
// background read loop keeps draining upstream into Chunks. A stalled or
// failed persister must not break the client stream either — Chunks is
// unbounded (see unboundedChunks) so pushes never block on the persister's
// pace; only the pipe, which CopyTo reads from, can make the background
// loop wait, and that wait is exactly the backpressure a real network
// client write would also impose.
type Fanout struct {
	Chunks <-chan bus.Chunk

	pr       *io.PipeReader
	readDone chan struct{}
	readErr  *atomic.Value
}

// NewFanout starts reading src immediately in a background goroutine.
func NewFanout(src io.Reader) *Fanout {
	pr, pw := io.Pipe()
	sw := &safeWriter{w: pw}
	q := newUnboundedChunks()

	f := &Fanout{
		Chunks:   q.out,
		pr:       pr,
		readDone: make(chan struct{}),
		readErr:  &atomic.Value{},
	}

	go func() {
		defer close(f.readDone)
		defer q.closeInput()
		defer pw.Close()

		buf := make([]byte, 32*1024)
		for {
			n, rerr := src.Read(buf)
			if n > 0 {
				chunk := make(bus.Chunk, n)
				copy(chunk, buf[:n])
				q.push(chunk)
				_, _ = sw.Write(chunk)
			}
			if rerr != nil {
				if rerr != io.EOF {
					slog.Debug("tee: upstream read error", "error", rerr)
					f.readErr.Store(rerr)
				}
				return
			}
		}
	}()

	return f
}

// CopyTo streams the tee's client-facing half to dst and blocks until the
// upstream body is fully drained on both sides. It returns the upstream
// read error, if any, in preference to a client write error — a broken
// client connection is expected and not itself a cache-pipeline failure.
func (f *Fanout) CopyTo(dst io.Writer) error {
	_, copyErr := io.Copy(dst, f.pr)
	<-f.readDone
	if err, ok := f.readErr.Load().(error); ok {
		return err
	}
	return copyErr
}

// safeWriter wraps an io.Writer and silently discards writes after any
// error, so the upstream read loop never sees a write failure and keeps
// feeding the persist channel even if the client pipe has broken.
type safeWriter struct {
	w      io.Writer
	failed atomic.Bool
}

func (s *safeWriter) Write(p []byte) (int, error) {
	if s.failed.Load() {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		s.failed.Store(true)
		return len(p), nil
	}
	return len(p), nil
}
