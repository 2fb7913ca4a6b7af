package stream

import "github.com/re-cinq/registry-cache/internal/bus"

// unboundedChunks is a growable FIFO exposed as a channel: pushes never
// block on the pace of the receiver. This is how the design's "unbounded
// persist channel" (see SPEC_FULL.md §5 / §9) is expressed with Go
// channels, which are otherwise always fixed-capacity — a plain buffered
// channel would still exert backpressure once its buffer fills, which is
// exactly the behavior the design calls out as intentionally absent here.
type unboundedChunks struct {
	in  chan bus.Chunk
	out chan bus.Chunk
}

func newUnboundedChunks() *unboundedChunks {
	u := &unboundedChunks{
		in:  make(chan bus.Chunk),
		out: make(chan bus.Chunk),
	}
	go u.pump()
	return u
}

func (u *unboundedChunks) pump() {
	defer close(u.out)
	var queue []bus.Chunk
	for {
		if len(queue) == 0 {
			chunk, ok := <-u.in
			if !ok {
				return
			}
			queue = append(queue, chunk)
			continue
		}
		select {
		case chunk, ok := <-u.in:
			if !ok {
				for _, c := range queue {
					u.out <- c
				}
				return
			}
			queue = append(queue, chunk)
		case u.out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// push enqueues a chunk. It returns as soon as pump's goroutine has
// accepted it into the queue, independent of how fast (or slowly) the
// receiving side drains u.out.
func (u *unboundedChunks) push(c bus.Chunk) { u.in <- c }

// closeInput signals no more chunks are coming; pump drains any queued
// chunks to out and then closes out.
func (u *unboundedChunks) closeInput() { close(u.in) }
