package bus

import (
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// pool owns N workers for a single topic. N equals the host's logical CPU
// count by default.
type pool struct {
	workers []*worker
}

func newPool(topic string, sub Subscriber, log *slog.Logger, n, inboxCap int) *pool {
	if n < 1 {
		n = 1
	}
	p := &pool{workers: make([]*worker, n)}
	for i := range p.workers {
		p.workers[i] = newWorker(topic, sub, log, inboxCap)
	}
	return p
}

// dispatch routes cmd to the worker selected by QueueID % N, guaranteeing
// that all commands sharing an identity land on the same worker.
func (p *pool) dispatch(cmd Command) {
	shard := cmd.QueueID() % uint64(len(p.workers))
	p.workers[shard].dispatch(cmd)
}

// shutdown drains every worker in the pool concurrently and waits for all
// of them to terminate.
func (p *pool) shutdown() {
	var g errgroup.Group
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			w.shutdown()
			return nil
		})
	}
	_ = g.Wait()
}
