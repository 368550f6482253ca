package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/omerimzali/mksub/pkg/shutdown"
)

// status prints user-facing progress lines to the diagnostic stream.
type status struct {
	mu sync.Mutex
	w  io.Writer

	good   *color.Color
	warn   *color.Color
	bad    *color.Color
	number *color.Color
	level  *color.Color
}

func newStatus(w io.Writer) *status {
	return &status{
		w:      w,
		good:   color.New(color.FgHiGreen, color.Bold),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
		number: color.New(color.FgHiCyan, color.Bold),
		level:  color.New(color.FgHiMagenta, color.Bold),
	}
}

func (s *status) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func (s *status) loaded(domains, words, level int) {
	s.printf("%s %s domains and %s unique words, generating up to level %s\n",
		s.good.Sprint("Loaded"),
		s.number.Sprint(domains),
		s.number.Sprint(words),
		s.level.Sprint(level))
}

func (s *status) interrupted() {
	s.printf("\n%s\n", s.warn.Sprint("Received interrupt signal, shutting down gracefully... (interrupt again to force)"))
}

func (s *status) waiting() {
	s.printf("%s\n", s.warn.Sprint("Waiting for writers to finish..."))
}

func (s *status) finished(sum summary, toFile bool) {
	switch {
	case sum.outcome != shutdown.Completed:
		s.printf("%s %s, abandoned %s shard writer(s)\n",
			s.bad.Sprint("Stopped:"), sum.outcome, s.number.Sprint(sum.abandoned))
	case sum.stopped:
		s.printf("%s by user request after %s names\n",
			s.warn.Sprint("Stopped"), s.number.Sprint(sum.lines))
	case len(sum.failed) > 0:
		s.printf("%s with %s failed shard(s), %s names written\n",
			s.bad.Sprint("Finished"), s.number.Sprint(len(sum.failed)), s.number.Sprint(sum.lines))
	case toFile:
		s.printf("%s %s names\n", s.good.Sprint("Generation complete:"), s.number.Sprint(sum.lines))
	}
}
