// Package output fans generated subdomains out to a fixed set of shard
// writers. A single distributor assigns lines round-robin in arrival order,
// and each shard owns its destination exclusively.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/omerimzali/mksub/pkg/formatter"
)

// ErrClosed is returned by Send once the pipeline no longer accepts lines,
// either because Close was called or because every shard has terminated.
var ErrClosed = errors.New("output pipeline closed")

// Config describes the shard layout of a pipeline.
type Config struct {
	// Path is the base output path. Empty means lines are discarded by the
	// writers (useful together with Echo).
	Path string
	// Shards is the number of writers; values below one are treated as one.
	Shards int
	// BufferBytes is the per-shard flush threshold.
	BufferBytes int
	// QueueSize bounds the inbound queue and every shard queue.
	QueueSize int

	// Echo copies every line to Console.
	Echo      bool
	Console   io.Writer
	Formatter *formatter.Formatter

	// Create opens a shard destination. Defaults to os.Create.
	Create func(path string) (io.WriteCloser, error)
}

// ShardResult summarizes what one writer did before it returned.
type ShardResult struct {
	Index int
	Path  string
	Lines int64
	Bytes int64
	Err   error
}

// Pipeline is a running distributor plus its shard writers.
type Pipeline struct {
	in      chan string
	closeIn sync.Once

	// stopped is closed when the distributor returns.
	stopped chan struct{}
	done    chan struct{}

	running atomic.Int32
	results []ShardResult
	mu      sync.Mutex

	log *zap.Logger
}

// Start launches the writers and the distributor. Writers stop when ctx is
// cancelled; the distributor stops once the inbound queue is closed and
// drained or when no shard is left alive.
func Start(ctx context.Context, cfg Config, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.BufferBytes < 1 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", cfg.BufferBytes)
	}
	if cfg.Echo && cfg.Console == nil {
		cfg.Console = os.Stdout
	}
	if cfg.Formatter == nil {
		cfg.Formatter = formatter.New(formatter.FormatPlain)
	}
	if cfg.Create == nil {
		cfg.Create = createFile
	}

	p := &Pipeline{
		in:      make(chan string, cfg.QueueSize),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		results: make([]ShardResult, cfg.Shards),
		log:     log,
	}

	console := &lockedWriter{w: cfg.Console}
	queues := make([]chan string, cfg.Shards)
	dead := make([]chan struct{}, cfg.Shards)

	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan string, cfg.QueueSize)
		dead[i] = make(chan struct{})

		w := &shardWriter{
			index:     i,
			queue:     queues[i],
			dead:      dead[i],
			bufBytes:  cfg.BufferBytes,
			echo:      cfg.Echo,
			console:   console,
			formatter: cfg.Formatter,
			create:    cfg.Create,
			log:       log.With(zap.Int("shard", i)),
		}
		if cfg.Path != "" {
			w.path = ShardFilename(cfg.Path, i, cfg.Shards)
		}

		p.running.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.running.Add(-1)
			res := w.run(ctx)
			p.mu.Lock()
			p.results[res.Index] = res
			p.mu.Unlock()
		}()
	}

	d := &distributor{
		in:     p.in,
		queues: queues,
		dead:   dead,
		rr:     NewRoundRobin(cfg.Shards),
		log:    log,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(p.stopped)
		d.run()
	}()

	go func() {
		wg.Wait()
		close(p.done)
	}()

	log.Debug("pipeline started",
		zap.Int("shards", cfg.Shards),
		zap.Int("queue", cfg.QueueSize),
		zap.Int("buffer_bytes", cfg.BufferBytes),
		zap.String("path", cfg.Path),
		zap.Bool("echo", cfg.Echo),
	)
	return p, nil
}

// Send queues line for distribution, blocking while the inbound queue is
// full. It must not be called after Close.
func (p *Pipeline) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.stopped:
		return ErrClosed
	default:
	}
	select {
	case p.in <- line:
		return nil
	case <-p.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Emit makes the pipeline usable as a generator sink.
func (p *Pipeline) Emit(ctx context.Context, subdomain string) error {
	return p.Send(ctx, subdomain)
}

// Close marks the end of input. Safe to call more than once.
func (p *Pipeline) Close() {
	p.closeIn.Do(func() { close(p.in) })
}

// Done is closed once the distributor and every writer have returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Running reports how many shard writers have not returned yet.
func (p *Pipeline) Running() int {
	return int(p.running.Load())
}

// Results returns a snapshot of the per-shard results. Entries for writers
// that are still running are zero apart from the index.
func (p *Pipeline) Results() []ShardResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ShardResult, len(p.results))
	copy(out, p.results)
	for i := range out {
		out[i].Index = i
	}
	return out
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// lockedWriter serializes whole-line writes from several shards.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) WriteLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, s+"\n")
	return err
}
