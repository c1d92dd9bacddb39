package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/chathub/internal/model"
)

// Command is a unit of work executed by a Scheduler worker
type Command interface {
	Name() string
	Execute(ctx context.Context) error
}

// Owned is implemented by commands that act on behalf of a player.
// The owner is attached to fault records in diagnostic mode.
type Owned interface {
	Owner() model.PlayerNo
}

type funcCommand struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcCommand) Name() string                      { return c.name }
func (c funcCommand) Execute(ctx context.Context) error { return c.fn(ctx) }

// Func wraps a function as a Command
func Func(name string, fn func(ctx context.Context) error) Command {
	return funcCommand{name: name, fn: fn}
}

// Policy controls what Submit does when the queue is full
type Policy int

const (
	// PolicyBlock waits for queue space until the submit context is done
	PolicyBlock Policy = iota
	// PolicyReject fails immediately with model.ErrQueueFull
	PolicyReject
)

// ParsePolicy parses "block" or "reject"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "block":
		return PolicyBlock, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicyBlock, fmt.Errorf("invalid queue policy %q: must be 'block' or 'reject'", s)
	}
}

// String returns the policy name
func (p Policy) String() string {
	if p == PolicyReject {
		return "reject"
	}
	return "block"
}

// Fault describes a failed or panicking command
type Fault struct {
	Command  string
	Message  string
	Stack    string // only set for panics
	PlayerNo model.PlayerNo
	ServerID string
	At       time.Time
}

// FaultReporter receives faults when the scheduler runs in diagnostic mode
type FaultReporter interface {
	ReportFault(ctx context.Context, fault Fault)
}

// Config holds configuration for a Scheduler
type Config struct {
	// Name labels the scheduler in logs and stats
	Name string
	// Workers is the exact worker count. If zero, NumCPU * WorkerMultiplier is used.
	Workers int
	// WorkerMultiplier scales the processor count when Workers is zero
	WorkerMultiplier int
	// QueueSize bounds the number of commands waiting for a worker
	QueueSize int
	// Policy selects blocking or rejecting submission on a full queue
	Policy Policy
	// ServerID is attached to fault records
	ServerID string
	// FaultReporter enables diagnostic mode when non-nil
	FaultReporter FaultReporter
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Name:             "commands",
		WorkerMultiplier: 2,
		QueueSize:        4096,
		Policy:           PolicyBlock,
	}
}

// Stats is a point-in-time view of a scheduler
type Stats struct {
	Name     string
	Workers  int
	Queued   int
	Capacity int
	Policy   string
	Executed uint64
	Failed   uint64
}

// ExecutionError is returned from Future.Wait when a command failed or panicked
type ExecutionError struct {
	Command string
	Message string
	cause   error
}

func (e *ExecutionError) Error() string {
	return e.Command + ": " + e.Message
}

// Unwrap returns the error returned by the command, or nil for panics
func (e *ExecutionError) Unwrap() error {
	return e.cause
}

// Future is the completion handle of a submitted command
type Future struct {
	command string
	done    chan struct{}
	message string
	cause   error
}

func newFuture(command string) *Future {
	return &Future{command: command, done: make(chan struct{})}
}

func (f *Future) complete(message string, cause error) {
	f.message = message
	f.cause = cause
	close(f.done)
}

// Done is closed once the command has finished
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the error string of a finished command; empty means success.
// Only meaningful after Done is closed.
func (f *Future) Err() string {
	select {
	case <-f.done:
		return f.message
	default:
		return ""
	}
}

// Wait blocks until the command finishes or ctx is done
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		if f.message == "" {
			return nil
		}
		return &ExecutionError{Command: f.command, Message: f.message, cause: f.cause}
	case <-ctx.Done():
		return ctx.Err()
	}
}

type task struct {
	ctx    context.Context
	cmd    Command
	future *Future
}

// Scheduler runs submitted commands on a fixed pool of workers fed by one shared queue.
// A worker runs each command to completion before taking the next; there is no
// affinity between commands and workers.
type Scheduler struct {
	cfg     Config
	workers int
	logger  *slog.Logger

	queue     chan *task
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	executed atomic.Uint64
	failed   atomic.Uint64
}

// New creates a Scheduler. Workers are not started until Start is called.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	defaults := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.WorkerMultiplier <= 0 {
		cfg.WorkerMultiplier = defaults.WorkerMultiplier
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * cfg.WorkerMultiplier
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &Scheduler{
		cfg:     cfg,
		workers: workers,
		logger:  logger.With(slog.String("component", "scheduler"), slog.String("scheduler", cfg.Name)),
		queue:   make(chan *task, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool. Calling Start more than once has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(s.workers)
		for i := 0; i < s.workers; i++ {
			go s.worker()
		}
		s.logger.Info("scheduler started",
			slog.Int("workers", s.workers),
			slog.Int("queue_size", s.cfg.QueueSize),
			slog.String("policy", s.cfg.Policy.String()))
	})
}

// Stop stops accepting commands, waits for running commands to finish and
// completes any still-queued command with model.ErrSchedulerClosed.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.wg.Wait()

		abandoned := 0
		for {
			select {
			case t := <-s.queue:
				t.future.complete(model.ErrSchedulerClosed.Error(), model.ErrSchedulerClosed)
				abandoned++
			default:
				s.logger.Info("scheduler stopped", slog.Int("abandoned", abandoned))
				return
			}
		}
	})
}

// Submit enqueues a command and returns its completion handle.
// The command runs detached from ctx cancellation once dequeued; ctx only bounds
// the wait for queue space under PolicyBlock.
func (s *Scheduler) Submit(ctx context.Context, cmd Command) (*Future, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, model.ErrSchedulerClosed
	}

	t := &task{
		ctx:    context.WithoutCancel(ctx),
		cmd:    cmd,
		future: newFuture(cmd.Name()),
	}

	if s.cfg.Policy == PolicyReject {
		select {
		case s.queue <- t:
			return t.future, nil
		default:
			s.logger.Warn("command rejected - queue full", slog.String("command", cmd.Name()))
			return nil, model.ErrQueueFull
		}
	}

	select {
	case s.queue <- t:
		return t.future, nil
	case <-s.done:
		return nil, model.ErrSchedulerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits a command and waits for it to finish
func (s *Scheduler) Do(ctx context.Context, cmd Command) error {
	future, err := s.Submit(ctx, cmd)
	if err != nil {
		return err
	}
	return future.Wait(ctx)
}

// Stats returns current scheduler statistics
func (s *Scheduler) Stats() Stats {
	return Stats{
		Name:     s.cfg.Name,
		Workers:  s.workers,
		Queued:   len(s.queue),
		Capacity: cap(s.queue),
		Policy:   s.cfg.Policy.String(),
		Executed: s.executed.Load(),
		Failed:   s.failed.Load(),
	}
}

// Workers returns the size of the worker pool
func (s *Scheduler) Workers() int {
	return s.workers
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case t := <-s.queue:
			s.execute(t)
		}
	}
}

func (s *Scheduler) execute(t *task) {
	message, cause, stack := s.run(t)

	s.executed.Add(1)
	if message != "" {
		s.failed.Add(1)
		s.logger.Warn("command failed",
			slog.String("command", t.cmd.Name()),
			slog.String("error", message))
		s.reportFault(t, message, stack)
	}

	t.future.complete(message, cause)
}

// run executes the command, converting returned errors and panics to a message
func (s *Scheduler) run(t *task) (message string, cause error, stack string) {
	defer func() {
		if r := recover(); r != nil {
			message = fmt.Sprintf("panic: %v", r)
			cause = nil
			stack = string(debug.Stack())
		}
	}()

	if err := t.cmd.Execute(t.ctx); err != nil {
		message = err.Error()
		if message == "" {
			message = "command failed"
		}
		return message, err, ""
	}
	return "", nil, ""
}

func (s *Scheduler) reportFault(t *task, message, stack string) {
	if s.cfg.FaultReporter == nil {
		return
	}

	fault := Fault{
		Command:  t.cmd.Name(),
		Message:  message,
		Stack:    stack,
		ServerID: s.cfg.ServerID,
		At:       time.Now(),
	}
	if owned, ok := t.cmd.(Owned); ok {
		fault.PlayerNo = owned.Owner()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fault reporter panicked", slog.Any("error", r))
		}
	}()
	s.cfg.FaultReporter.ReportFault(t.ctx, fault)
}
