package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mcoot/chathub/internal/dependencies/clock"
)

// reportBufferSize bounds undelivered reports; older reports are kept and new ones
// dropped when no one is reading.
const reportBufferSize = 16

// Func performs one sweep pass and returns the number of reclaimed entries
type Func func(ctx context.Context, now time.Time) (int, error)

// Report describes the outcome of one sweep pass
type Report struct {
	Sweeper string
	Removed int
	Err     error
	At      time.Time
	Elapsed time.Duration
}

// Sweeper runs a Func on a fixed interval until its context is cancelled.
// Errors and panics in a pass are logged and published as Reports; they never stop the loop.
type Sweeper struct {
	name     string
	interval time.Duration
	fn       Func
	clock    clock.Clock
	logger   *slog.Logger
	reports  chan Report
}

// New creates a Sweeper
func New(name string, interval time.Duration, fn Func, clk clock.Clock, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		name:     name,
		interval: interval,
		fn:       fn,
		clock:    clk,
		logger:   logger.With(slog.String("component", "sweep"), slog.String("sweeper", name)),
		reports:  make(chan Report, reportBufferSize),
	}
}

// Name returns the sweeper name
func (s *Sweeper) Name() string {
	return s.name
}

// Reports returns the channel on which pass outcomes are published
func (s *Sweeper) Reports() <-chan Report {
	return s.reports
}

// Run ticks until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs a single pass and returns its report
func (s *Sweeper) Tick(ctx context.Context) Report {
	now := s.clock.Now()
	start := time.Now()

	removed, err := s.pass(ctx, now)
	report := Report{
		Sweeper: s.name,
		Removed: removed,
		Err:     err,
		At:      now,
		Elapsed: time.Since(start),
	}

	if err != nil {
		s.logger.Error("sweep failed", slog.Any("error", err))
	} else if removed > 0 {
		s.logger.Info("sweep reclaimed entries", slog.Int("removed", removed))
	}

	select {
	case s.reports <- report:
	default:
	}
	return report
}

func (s *Sweeper) pass(ctx context.Context, now time.Time) (removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
			s.logger.Error("sweep panic recovered", slog.String("stack", string(debug.Stack())))
		}
	}()
	return s.fn(ctx, now)
}
