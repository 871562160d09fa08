package future

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/fsutil"
)

// State is the lifecycle position of a Future.
type State int32

const (
	StatePending State = iota
	StateRunning
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateFinished:
		return "FINISHED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrAborted is returned by Get for a future that was aborted.
	ErrAborted = errors.New("future aborted")

	// ErrAlreadyDone is returned by Abort once the future is terminal.
	ErrAlreadyDone = errors.New("future already done")
)

// AbortFunc asks whatever executes a running future to stop. Returning an
// error that wraps errors.ErrUnsupported leaves the future running.
type AbortFunc func() error

// outputFunc overrides how a future reports one of its output streams.
type outputFunc func(ctx context.Context) (string, bool)

// stream caches the content of one captured output artifact.
type stream struct {
	mu          sync.Mutex
	path        string
	value       string
	ok          bool
	unavailable bool
}

// Future is a handle to the eventual result of one unit of work.
type Future struct {
	sched *Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	result  any
	err     error
	running chan struct{}
	done    chan struct{}
	onAbort AbortFunc

	stdout, stderr     stream
	stdoutFn, stderrFn outputFunc
}

func newFuture(s *Scheduler) *Future {
	ctx, cancel := context.WithCancel(context.Background())
	return &Future{
		sched:   s,
		ctx:     ctx,
		cancel:  cancel,
		running: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// markRunning moves the future from pending to running. It reports false
// when the future was aborted before its unit started. Any other starting
// state is a protocol violation.
func (f *Future) markRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StatePending:
		f.state = StateRunning
		close(f.running)
		return true
	case StateAborted:
		return false
	default:
		panic(fmt.Sprintf("future: protocol violation: markRunning in %s state", f.state))
	}
}

// setResult stores the outcome and finishes the future. A result arriving
// after an abort is discarded; a second result is a protocol violation.
func (f *Future) setResult(v any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateAborted:
		return
	case StateFinished:
		panic("future: protocol violation: result set twice")
	case StatePending:
		close(f.running)
	}
	f.state = StateFinished
	f.result = v
	f.err = err
	close(f.done)
	f.cancel()
}

// State returns the current state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Future) Pending() bool  { return f.State() == StatePending }
func (f *Future) Running() bool  { return f.State() == StateRunning }
func (f *Future) Finished() bool { return f.State() == StateFinished }
func (f *Future) Aborted() bool  { return f.State() == StateAborted }

func (f *Future) String() string {
	return fmt.Sprintf("Future in %s state", f.State())
}

// Done returns a channel closed once the future is finished or aborted.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future is terminal and returns its result and the
// error its work returned. Aborted futures return ErrAborted. If ctx ends
// first, ctx.Err() is returned and the future is left untouched.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateAborted {
		return nil, ErrAborted
	}
	return f.result, f.err
}

// Wait blocks until the future is terminal or ctx is done and reports
// whether it finished. It may be called again after ctx expired.
func (f *Future) Wait(ctx context.Context) bool {
	select {
	case <-f.done:
		return f.Finished()
	case <-ctx.Done():
		return false
	}
}

// WaitUntilRunning blocks while the future is pending. It returns false
// only if ctx ends before the future leaves the pending state.
func (f *Future) WaitUntilRunning(ctx context.Context) bool {
	select {
	case <-f.running:
		return true
	default:
	}
	select {
	case <-f.running:
		return true
	case <-ctx.Done():
		return false
	}
}

// Abort stops the future. A pending future is aborted at once and its work
// never runs. For a running future the abort hook, if any, is asked to stop
// the work first; if it reports errors.ErrUnsupported that error is returned
// and the future keeps running. Any other hook error is logged and the
// future is aborted. Terminal futures return ErrAlreadyDone.
func (f *Future) Abort() error {
	f.mu.Lock()
	switch f.state {
	case StatePending:
		f.abortLocked()
		f.mu.Unlock()
		return nil
	case StateFinished, StateAborted:
		f.mu.Unlock()
		return ErrAlreadyDone
	}
	hook := f.onAbort
	f.mu.Unlock()

	if hook != nil {
		if err := hook(); err != nil {
			if errors.Is(err, errors.ErrUnsupported) {
				return fmt.Errorf("abort: %w", err)
			}
			// The work may not have reached the engine yet; cancelling the
			// future's context stops it either way.
			f.sched.logger.Debug("abort hook failed", "error", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateRunning {
		return ErrAlreadyDone
	}
	f.abortLocked()
	return nil
}

func (f *Future) abortLocked() {
	if f.state == StatePending {
		close(f.running)
	}
	f.state = StateAborted
	f.result = nil
	f.err = ErrAborted
	close(f.done)
	f.cancel()
}

// Stdout returns the captured standard output once the future is terminal.
// The boolean is false while no content is known.
func (f *Future) Stdout(ctx context.Context) (string, bool) {
	if f.stdoutFn != nil {
		return f.stdoutFn(ctx)
	}
	return f.readStream(ctx, &f.stdout)
}

// Stderr is the standard error counterpart of Stdout.
func (f *Future) Stderr(ctx context.Context) (string, bool) {
	if f.stderrFn != nil {
		return f.stderrFn(ctx)
	}
	return f.readStream(ctx, &f.stderr)
}

// readStream waits for the future, then loads the artifact at s.path once it
// becomes visible. A poll that runs out its timeout makes the stream
// permanently unavailable and the cached value is returned from then on.
// Expiry of ctx alone leaves the stream readable by later calls.
func (f *Future) readStream(ctx context.Context, s *stream) (string, bool) {
	_, _ = f.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || s.unavailable || s.ok || ctx.Err() != nil {
		return s.value, s.ok
	}

	fs := f.sched.fs
	if !fsutil.WaitUntilExists(ctx, fs, s.path, f.sched.poll, f.sched.logger) {
		if ctx.Err() != nil {
			return s.value, s.ok
		}
		s.unavailable = true
		return s.value, s.ok
	}
	data, err := afero.ReadFile(fs, s.path)
	if err != nil {
		f.sched.logger.Warn("failed to read output artifact", "path", s.path, "error", err)
		s.unavailable = true
		return s.value, s.ok
	}
	s.value = string(data)
	s.ok = true
	return s.value, s.ok
}
