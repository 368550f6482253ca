package output

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// RoundRobin hands out shard indexes in fixed cyclic order.
type RoundRobin struct {
	n       uint64
	counter atomic.Uint64
}

// NewRoundRobin returns a selector over n shards. n must be positive.
func NewRoundRobin(n int) *RoundRobin {
	if n < 1 {
		n = 1
	}
	return &RoundRobin{n: uint64(n)}
}

// Next returns the next shard index. Safe for concurrent use.
func (r *RoundRobin) Next() int {
	return int((r.counter.Add(1) - 1) % r.n)
}

type distributor struct {
	in     <-chan string
	queues []chan string
	dead   []chan struct{}
	rr     *RoundRobin
	log    *zap.Logger
}

// run forwards every inbound line to one shard queue and closes all shard
// queues when it returns.
func (d *distributor) run() {
	defer func() {
		for _, q := range d.queues {
			close(q)
		}
	}()

	alive := make([]bool, len(d.queues))
	for i := range alive {
		alive[i] = true
	}
	remaining := len(d.queues)

	for line := range d.in {
		if !d.deliver(line, alive, &remaining) {
			d.log.Warn("all shard writers terminated, stopping distribution")
			return
		}
	}
	d.log.Debug("inbound queue drained")
}

// deliver offers line to the shard chosen by the round-robin counter. When
// that shard's writer is gone the line moves on to the next index. It
// reports false once no shard is left.
func (d *distributor) deliver(line string, alive []bool, remaining *int) bool {
	for *remaining > 0 {
		idx := d.rr.Next()
		if !alive[idx] {
			continue
		}
		select {
		case <-d.dead[idx]:
			d.retire(idx, alive, remaining)
			continue
		default:
		}
		select {
		case d.queues[idx] <- line:
			return true
		case <-d.dead[idx]:
			d.retire(idx, alive, remaining)
		}
	}
	return false
}

// retire marks shard idx as dead and hands the lines still sitting in its
// queue to the remaining shards. Nothing else reads a dead shard's queue.
func (d *distributor) retire(idx int, alive []bool, remaining *int) {
	alive[idx] = false
	*remaining--
	d.log.Warn("shard writer terminated, skipping shard", zap.Int("shard", idx))

	var orphaned []string
	for drained := false; !drained; {
		select {
		case l := <-d.queues[idx]:
			orphaned = append(orphaned, l)
		default:
			drained = true
		}
	}
	for _, l := range orphaned {
		if !d.deliver(l, alive, remaining) {
			return
		}
	}
}
