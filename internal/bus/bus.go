package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultFrontCapacity is the bounded front queue's default size.
const DefaultFrontCapacity = 4096

// DefaultInboxCapacity is each worker's default bounded inbox size.
const DefaultInboxCapacity = 4096

// Bus is the single front queue plus topic demux described in the design:
// Publish enqueues onto one bounded front channel; an internal goroutine
// reads the front channel and routes each command to the worker pool
// registered for its topic. Per-topic pools and their workers are
// independent once a command leaves the front queue.
type Bus struct {
	log   *slog.Logger
	front chan Command

	mu    sync.RWMutex
	pools map[string]*pool

	shuttingDown atomic.Bool
	demuxDone    chan struct{}
}

// New creates a Bus with the given front-queue capacity and starts its
// demux goroutine. Subscribe must be called for every topic before any
// matching command is published — an unsubscribed topic's commands are
// logged and dropped, never blocked on.
func New(log *slog.Logger, frontCapacity int) *Bus {
	if frontCapacity < 1 {
		frontCapacity = DefaultFrontCapacity
	}
	b := &Bus{
		log:       log.With("component", "bus"),
		front:     make(chan Command, frontCapacity),
		pools:     make(map[string]*pool),
		demuxDone: make(chan struct{}),
	}
	go b.demux()
	return b
}

func (b *Bus) demux() {
	defer close(b.demuxDone)
	for cmd := range b.front {
		b.mu.RLock()
		p, ok := b.pools[cmd.Topic()]
		b.mu.RUnlock()
		if !ok {
			b.log.Warn("dropping command for unsubscribed topic", "topic", cmd.Topic())
			continue
		}
		p.dispatch(cmd)
	}
}

// Subscribe registers sub as the handler for topic, backed by a pool of n
// workers (the caller passes runtime.NumCPU(); an n below 1 is raised to
// 1 by the pool). Subscribe must be called before Shutdown.
func (b *Bus) Subscribe(topic string, sub Subscriber, n, inboxCapacity int) {
	if inboxCapacity < 1 {
		inboxCapacity = DefaultInboxCapacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pools[topic] = newPool(topic, sub, b.log, n, inboxCapacity)
}

// Publish enqueues cmd onto the front queue, suspending the caller if the
// queue is full (backpressure). If the bus is shutting down, Publish drops
// the command, logs a warning, and returns immediately without blocking.
//
// The shuttingDown check and the send on b.front must not straddle
// Shutdown's CAS-then-close: holding b.mu for read across both keeps this
// goroutine from observing shuttingDown as false and then sending into a
// channel Shutdown has since closed. Shutdown takes the write lock around
// its own CAS-and-close, so it can't run between the check and the send.
func (b *Bus) Publish(cmd Command) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.shuttingDown.Load() {
		b.log.Warn("dropping command published during shutdown", "topic", cmd.Topic())
		return
	}
	b.front <- cmd
}

// Shutdown is idempotent. It (1) marks the bus shutting down so further
// Publish calls drop, (2) closes the front queue so the demux goroutine
// drains whatever was already queued and exits, then (3) drains every
// worker pool's inboxes and waits for their workers to terminate.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	swapped := b.shuttingDown.CompareAndSwap(false, true)
	if swapped {
		close(b.front)
	}
	b.mu.Unlock()
	if !swapped {
		<-b.demuxDone // already shutting down elsewhere; just wait
		return
	}
	<-b.demuxDone

	b.mu.RLock()
	pools := make([]*pool, 0, len(b.pools))
	for _, p := range b.pools {
		pools = append(pools, p)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range pools {
		wg.Add(1)
		go func(p *pool) {
			defer wg.Done()
			p.shutdown()
		}(p)
	}
	wg.Wait()
}
