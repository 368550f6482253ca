package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/omerimzali/mksub/pkg/config"
	"github.com/omerimzali/mksub/pkg/formatter"
	"github.com/omerimzali/mksub/pkg/generator"
	"github.com/omerimzali/mksub/pkg/input"
	"github.com/omerimzali/mksub/pkg/output"
	"github.com/omerimzali/mksub/pkg/progress"
	"github.com/omerimzali/mksub/pkg/shutdown"
)

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// summary is what a run reports once the writers are done or abandoned.
type summary struct {
	outcome   shutdown.Outcome
	stopped   bool
	abandoned int
	failed    []output.ShardResult
	lines     int64
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, s streams) error {
	if cfg.NoColor {
		color.NoColor = true
	} else if f, ok := s.err.(*os.File); !ok || !input.IsTerminal(f) {
		color.NoColor = true
	}

	status := newStatus(s.err)

	bases, err := input.ReadDomains(cfg.Domain, cfg.DomainFile, s.in)
	if err != nil {
		return err
	}
	words, err := input.ReadWordlist(cfg.Wordlist, input.Filter{
		Pattern:         cfg.Regex,
		CaseInsensitive: cfg.CIRegex,
	})
	if err != nil {
		return err
	}

	status.loaded(len(bases), len(words), cfg.Level)

	coord := shutdown.New(ctx, logger.Named("shutdown"))
	defer coord.Close()
	coord.OnGraceful = status.interrupted
	stop := coord.Listen(os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := output.Start(coord.Context(), output.Config{
		Path:        cfg.Output,
		Shards:      cfg.Shards,
		BufferBytes: cfg.BufferBytes(),
		QueueSize:   cfg.Queue,
		Echo:        cfg.Echo(),
		Console:     s.out,
		Formatter:   formatter.New(cfg.Format),
	}, logger.Named("output"))
	if err != nil {
		return err
	}

	var sink generator.Sink = pipeline
	sink = generator.Throttle(cfg.Rate, sink)

	var bar *progress.Bar
	if cfg.Progress {
		bar = progress.New(s.err, generator.Total(len(bases), len(words), cfg.Level))
		sink = bar.Wrap(sink)
	}

	workers := min(cfg.MaxThreads, runtime.GOMAXPROCS(0))
	gen := generator.New(cfg.Threads, workers, logger.Named("generator"))

	var genErr error
	for _, base := range bases {
		if coord.Requested() {
			break
		}
		if err := gen.Generate(coord.Context(), base, words, cfg.Level, sink); err != nil {
			genErr = fmt.Errorf("generate %s: %w", base, err)
			break
		}
	}
	if bar != nil {
		bar.Finish()
	}

	pipeline.Close()
	if cfg.Output != "" {
		status.waiting()
	}
	outcome := coord.Wait(pipeline.Done(), cfg.Grace, cfg.Timeout)

	sum := summarize(pipeline, outcome, coord.Requested())
	status.finished(sum, cfg.Output != "")
	for _, r := range sum.failed {
		logger.Error("shard failed", zap.Int("shard", r.Index), zap.String("path", r.Path), zap.Error(r.Err))
	}

	if genErr != nil {
		return genErr
	}
	if len(sum.failed) > 0 && len(sum.failed) == cfg.Shards {
		return fmt.Errorf("all %d output shards failed: %w", cfg.Shards, errors.Join(shardErrors(sum.failed)...))
	}
	return nil
}

func summarize(p *output.Pipeline, outcome shutdown.Outcome, stopped bool) summary {
	sum := summary{outcome: outcome, stopped: stopped}
	if outcome != shutdown.Completed {
		sum.abandoned = p.Running()
	}
	for _, r := range p.Results() {
		sum.lines += r.Lines
		if r.Err != nil {
			sum.failed = append(sum.failed, r)
		}
	}
	return sum
}

func shardErrors(rs []output.ShardResult) []error {
	errs := make([]error, 0, len(rs))
	for _, r := range rs {
		errs = append(errs, r.Err)
	}
	return errs
}
