package generator

import (
	"context"
	"errors"
	"math"
	"math/bits"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omerimzali/mksub/pkg/output"
)

// Generator enumerates subdomain chains for a base domain.
type Generator struct {
	// Threads controls partition granularity: the first-token partition is
	// split into chunks of max(1, len(words)/Threads) tokens. Zero means one
	// token per chunk.
	Threads int
	// Workers caps the number of chunks processed at once. Zero or negative
	// uses GOMAXPROCS.
	Workers int

	Logger *zap.Logger
}

// New returns a Generator with the given granularity hint and worker budget.
func New(threads, workers int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{Threads: threads, Workers: workers, Logger: logger}
}

// Generate emits every subdomain of base for depths 1..level into sink.
// Cancellation of ctx and a closed downstream both end generation early
// without an error.
func (g *Generator) Generate(ctx context.Context, base string, words []string, level int, sink Sink) error {
	if level <= 0 || len(words) == 0 {
		return nil
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	chunks := partition(words, g.Threads)
	g.Logger.Debug("generating",
		zap.String("base", base),
		zap.Int("words", len(words)),
		zap.Int("level", level),
		zap.Int("chunks", len(chunks)),
		zap.Int("workers", workers),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, chunk := range chunks {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			for _, w := range chunk {
				if egCtx.Err() != nil {
					return nil
				}
				if err := expand(egCtx, w+"."+base, words, 1, level, sink); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil || errors.Is(err, output.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// expand emits name, the rendering of the current chain, and then prepends
// each word to it until depth reaches level.
func expand(ctx context.Context, name string, words []string, depth, level int, sink Sink) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sink.Emit(ctx, name); err != nil {
		return err
	}
	if depth >= level {
		return nil
	}
	for _, w := range words {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := expand(ctx, w+"."+name, words, depth+1, level, sink); err != nil {
			return err
		}
	}
	return nil
}

// partition groups words into chunks of max(1, len(words)/threads).
func partition(words []string, threads int) [][]string {
	size := 1
	if threads > 0 {
		size = max(1, len(words)/threads)
	}
	chunks := make([][]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := min(i+size, len(words))
		chunks = append(chunks, words[i:end])
	}
	return chunks
}

// Count returns the number of subdomains Generate emits for n words up to
// level, i.e. the sum of n^d for d in 1..level. It saturates at MaxUint64.
func Count(n, level int) uint64 {
	if n <= 0 || level <= 0 {
		return 0
	}
	var total, pow uint64 = 0, 1
	for d := 1; d <= level; d++ {
		hi, lo := bits.Mul64(pow, uint64(n))
		if hi != 0 {
			return math.MaxUint64
		}
		pow = lo
		sum, carry := bits.Add64(total, pow, 0)
		if carry != 0 {
			return math.MaxUint64
		}
		total = sum
	}
	return total
}

// Total is Count for every one of bases base domains, saturating like Count.
func Total(bases, n, level int) uint64 {
	if bases <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(Count(n, level), uint64(bases))
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
