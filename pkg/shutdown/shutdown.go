// Package shutdown turns repeated interrupts into an escalating stop
// request: the first one cancels a context that every generation and writer
// loop watches, the second one exits the process immediately.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Level is the current shutdown state. It only ever increases.
type Level int32

const (
	None Level = iota
	Graceful
	Forced
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Graceful:
		return "graceful"
	case Forced:
		return "forced"
	default:
		return "unknown"
	}
}

// ExitCode is the status used for a forced exit (128 + SIGINT).
const ExitCode = 130

// PollInterval is how often Wait checks for completion.
const PollInterval = 100 * time.Millisecond

// Coordinator owns the process-wide shutdown state.
type Coordinator struct {
	level  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc

	// Exit is called on forced shutdown. Defaults to os.Exit.
	Exit func(code int)
	// OnGraceful and OnForced, when set, run on the matching transition;
	// the driver uses them for user-facing notices.
	OnGraceful func()
	OnForced   func()

	log *zap.Logger
}

// New returns a Coordinator whose Context is derived from parent.
func New(parent context.Context, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		Exit:   os.Exit,
		log:    log,
	}
}

// Context is cancelled as soon as a graceful shutdown is requested.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Level reports the current state.
func (c *Coordinator) Level() Level {
	return Level(c.level.Load())
}

// Requested reports whether any shutdown has been requested.
func (c *Coordinator) Requested() bool {
	return c.Level() >= Graceful
}

// Interrupt advances the state by one step and returns the new level.
// Interrupts after Forced are ignored.
func (c *Coordinator) Interrupt() Level {
	if c.level.CompareAndSwap(int32(None), int32(Graceful)) {
		c.log.Info("interrupt received, shutting down gracefully (interrupt again to force)")
		if c.OnGraceful != nil {
			c.OnGraceful()
		}
		c.cancel()
		return Graceful
	}
	if c.level.CompareAndSwap(int32(Graceful), int32(Forced)) {
		c.log.Warn("second interrupt received, forcing exit")
		if c.OnForced != nil {
			c.OnForced()
		}
		_ = c.log.Sync()
		c.Exit(ExitCode)
		return Forced
	}
	return c.Level()
}

// Listen feeds the given signals into Interrupt until the returned stop
// function is called.
func (c *Coordinator) Listen(signals ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, signals...)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				c.log.Debug("signal received", zap.String("signal", sig.String()))
				c.Interrupt()
			case <-quit:
				return
			}
		}
	}()

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			signal.Stop(ch)
			close(quit)
		}
	}
}

// Close releases the context resources without changing the level.
func (c *Coordinator) Close() {
	c.cancel()
}

// Outcome describes how Wait ended.
type Outcome int

const (
	Completed Outcome = iota
	GraceExpired
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case GraceExpired:
		return "grace period expired"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Wait polls done until it is closed. It gives up early once a graceful
// shutdown has been pending for grace, and in any case after timeout. A
// zero duration disables the corresponding limit.
func (c *Coordinator) Wait(done <-chan struct{}, grace, timeout time.Duration) Outcome {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	start := time.Now()
	var requestedAt time.Time

	for {
		select {
		case <-done:
			return Completed
		case <-ticker.C:
		}

		now := time.Now()
		if c.Requested() {
			if requestedAt.IsZero() {
				requestedAt = now
			}
			if grace > 0 && now.Sub(requestedAt) >= grace {
				c.log.Warn("writers did not finish within grace period", zap.Duration("grace", grace))
				return GraceExpired
			}
		}
		if timeout > 0 && now.Sub(start) >= timeout {
			c.log.Warn("writers did not finish before timeout", zap.Duration("timeout", timeout))
			return TimedOut
		}
	}
}
