// Package progress reports generation progress on stderr.
package progress

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/omerimzali/mksub/pkg/generator"
)

// Bar counts emissions against a known total.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a Bar expecting total emissions. A saturated total (see
// generator.Count) renders as an open-ended spinner.
func New(w io.Writer, total uint64) *Bar {
	limit := int64(-1)
	if total < math.MaxInt64 {
		limit = int64(total)
	}
	bar := progressbar.NewOptions64(limit,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("names"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &Bar{bar: bar}
}

// Wrap returns a sink that counts every successful emission into next.
func (b *Bar) Wrap(next generator.Sink) generator.Sink {
	return generator.SinkFunc(func(ctx context.Context, subdomain string) error {
		if err := next.Emit(ctx, subdomain); err != nil {
			return err
		}
		_ = b.bar.Add64(1)
		return nil
	})
}

// Finish completes the bar.
func (b *Bar) Finish() {
	_ = b.bar.Finish()
}
