package output

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/omerimzali/mksub/pkg/formatter"
)

type shardWriter struct {
	index int
	path  string
	queue <-chan string
	// dead is closed when the writer returns so the distributor stops
	// sending to it.
	dead chan struct{}

	bufBytes  int
	echo      bool
	console   *lockedWriter
	formatter *formatter.Formatter
	create    func(string) (io.WriteCloser, error)

	log *zap.Logger
}

// run drains the shard queue until it is closed or ctx is done. A final
// flush is attempted whatever the reason for stopping.
func (w *shardWriter) run(ctx context.Context) (res ShardResult) {
	defer close(w.dead)
	res = ShardResult{Index: w.index, Path: w.path}

	var dst io.Writer = io.Discard
	if w.path != "" {
		f, err := w.create(w.path)
		if err != nil {
			res.Err = fmt.Errorf("create %s: %w", w.path, err)
			w.log.Error("failed to create output file", zap.String("path", w.path), zap.Error(err))
			return res
		}
		defer func() {
			if err := f.Close(); err != nil && res.Err == nil {
				res.Err = fmt.Errorf("close %s: %w", w.path, err)
				w.log.Error("close error", zap.Error(err))
			}
		}()
		dst = f
	}

	buf := bufio.NewWriterSize(dst, w.bufBytes)
	defer func() {
		if err := buf.Flush(); err != nil {
			w.log.Error("final flush error", zap.Error(err))
			if res.Err == nil {
				res.Err = fmt.Errorf("final flush: %w", err)
			}
			return
		}
		if w.path != "" {
			w.log.Debug("shard writer finished", zap.Int64("lines", res.Lines), zap.Int64("bytes", res.Bytes))
		}
	}()

	pending := 0
	for {
		if ctx.Err() != nil {
			w.log.Debug("shutdown requested, stopping shard writer")
			return res
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			w.log.Debug("shutdown requested, stopping shard writer")
			return res
		case line, ok = <-w.queue:
			if !ok {
				return res
			}
		}

		if w.path != "" {
			n, err := buf.WriteString(line + "\n")
			if err != nil {
				res.Err = fmt.Errorf("write: %w", err)
				w.log.Error("write error", zap.Error(err))
				return res
			}
			res.Bytes += int64(n)
			pending += n
		}
		res.Lines++

		if w.echo {
			if err := w.console.WriteLine(w.formatter.Line(line)); err != nil {
				w.log.Warn("console write error", zap.Error(err))
			}
		}

		if pending >= w.bufBytes {
			if err := buf.Flush(); err != nil {
				res.Err = fmt.Errorf("flush: %w", err)
				w.log.Error("flush error", zap.Error(err))
				return res
			}
			pending = 0
		}
	}
}
