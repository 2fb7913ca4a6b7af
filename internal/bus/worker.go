package bus

import (
	"context"
	"log/slog"
	"sync"
)

// Subscriber is the capability set a persister handler implements: Run
// processes one command, and SupportsConcurrency reports whether the
// worker may spawn an independent goroutine per command (true) or must
// process its inbox strictly sequentially (false).
type Subscriber interface {
	Run(ctx context.Context, cmd Command) error
	SupportsConcurrency() bool
}

// workerState mirrors the state machine from the design notes:
// Idle -> Running(cmd) -> Idle on completion; Idle|Running -> Draining on
// Shutdown; Draining -> Terminated once the inbox closes. It is recorded
// for observability only and does not drive control flow.
type workerState int32

const (
	stateIdle workerState = iota
	stateRunning
	stateDraining
	stateTerminated
)

// worker owns one bounded inbox and runs commands dequeued from it,
// serially or concurrently per the subscriber's SupportsConcurrency.
type worker struct {
	topic string
	sub   Subscriber
	log   *slog.Logger
	inbox chan Command
	done  chan struct{}

	mu    sync.Mutex
	state workerState
}

func newWorker(topic string, sub Subscriber, log *slog.Logger, inboxCap int) *worker {
	w := &worker{
		topic: topic,
		sub:   sub,
		log:   log.With("component", "bus.worker", "topic", topic),
		inbox: make(chan Command, inboxCap),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) setState(s workerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *worker) run() {
	defer close(w.done)
	var inflight sync.WaitGroup
	for cmd := range w.inbox {
		if _, ok := cmd.(shutdownCommand); ok {
			w.setState(stateDraining)
			break
		}
		if w.sub.SupportsConcurrency() {
			inflight.Add(1)
			go func(c Command) {
				defer inflight.Done()
				w.setState(stateRunning)
				if err := w.sub.Run(context.Background(), c); err != nil {
					w.log.Warn("command failed", "error", err)
				}
			}(cmd)
		} else {
			w.setState(stateRunning)
			if err := w.sub.Run(context.Background(), cmd); err != nil {
				w.log.Warn("command failed", "error", err)
			}
			w.setState(stateIdle)
		}
	}
	inflight.Wait()
	w.setState(stateTerminated)
}

// dispatch enqueues cmd on this worker's inbox, suspending if the inbox is
// full — this is the per-shard backpressure point.
func (w *worker) dispatch(cmd Command) {
	w.inbox <- cmd
}

// shutdown enqueues the drain sentinel and closes the inbox so the worker
// goroutine exits once in-flight and already-queued-before-sentinel work
// completes; anything queued behind the sentinel is discarded because the
// range loop in run() breaks before reaching it.
func (w *worker) shutdown() {
	w.inbox <- shutdownCommand{}
	close(w.inbox)
	<-w.done
}
