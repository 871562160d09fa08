package future

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/seantiz/parxe/internal/fsutil"
)

// Config configures a Scheduler. Zero fields take defaults.
type Config struct {
	// MaxWorkers bounds how many units run at once. Defaults to NumCPU.
	MaxWorkers int
	// FS is used to read captured output. Defaults to the OS filesystem.
	FS     afero.Fs
	Poll   fsutil.Poll
	Logger *slog.Logger
}

// Scheduler runs future units on a bounded pool.
type Scheduler struct {
	sem    *semaphore.Weighted
	fs     afero.Fs
	poll   fsutil.Poll
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler from cfg.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		sem:    semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		fs:     cfg.FS,
		poll:   cfg.Poll,
		logger: cfg.Logger,
	}
}

// FS returns the filesystem futures read their output from.
func (s *Scheduler) FS() afero.Fs {
	return s.fs
}

// Wait blocks until every unit started so far has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Unit is the work performed by one future.
type Unit struct {
	// Prepare runs while the future is still pending and before a worker
	// slot is taken. It is where dependencies are awaited and external
	// capacity is acquired. The returned release func, if any, runs once
	// the unit is over.
	Prepare func(ctx context.Context) (release func(), err error)

	// Run performs the work. It runs with the future in the running state.
	Run func(ctx context.Context) (any, error)
}

// Option customises a future created by Go.
type Option func(*Future)

// WithOutput registers the artifact paths holding the unit's stdout and
// stderr. An empty path means the stream is never read from disk.
func WithOutput(stdoutPath, stderrPath string) Option {
	return func(f *Future) {
		f.stdout.path = stdoutPath
		f.stderr.path = stderrPath
	}
}

// WithAbort installs the hook consulted when a running future is aborted.
func WithAbort(fn AbortFunc) Option {
	return func(f *Future) {
		f.onAbort = fn
	}
}

// Go creates a pending future and starts its unit.
func (s *Scheduler) Go(u Unit, opts ...Option) *Future {
	f := newFuture(s)
	for _, opt := range opts {
		opt(f)
	}
	s.wg.Go(func() {
		s.run(f, u)
	})
	return f
}

func (s *Scheduler) run(f *Future, u Unit) {
	if u.Prepare != nil {
		release, err := u.Prepare(f.ctx)
		if release != nil {
			defer release()
		}
		if err != nil {
			f.setResult(nil, err)
			return
		}
	}

	// Acquire only fails once the future was aborted.
	if err := s.sem.Acquire(f.ctx, 1); err != nil {
		f.setResult(nil, err)
		return
	}
	defer s.sem.Release(1)

	if !f.markRunning() {
		return
	}
	v, err := invoke(f.ctx, u.Run)
	f.setResult(v, err)
}

func invoke(ctx context.Context, run func(context.Context) (any, error)) (v any, err error) {
	if run == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("future work panicked: %v", r)
		}
	}()
	return run(ctx)
}
