// Package local provides a concurrent in-process engine. Tasks run in
// parallel goroutines and never change the process working directory; the
// directory is handed to the function through task.Call instead.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/channel"
	"github.com/seantiz/parxe/internal/engine"
	"github.com/seantiz/parxe/internal/task"
)

// Name is the registry key of the local engine.
const Name = "local"

// ErrNotRunning is returned by Abort for a task the engine is not executing.
var ErrNotRunning = errors.New("task not running on this engine")

var _ engine.Engine = (*Engine)(nil)

// Config configures the local engine.
type Config struct {
	// Workers is the number of tasks run at once. Defaults to NumCPU.
	Workers int
	FS      afero.Fs
	Codec   channel.Codec
	Logger  *slog.Logger
}

// Engine runs up to Workers tasks concurrently. Abort cancels the context
// passed to the task function, so cancellation is cooperative.
type Engine struct {
	*engine.Base
	logger  *slog.Logger
	workers int

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates a local engine.
func New(cfg Config) (*Engine, error) {
	base, err := engine.NewBase(Name, cfg.FS, cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("local engine: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		Base:    base,
		logger:  logger,
		workers: cfg.Workers,
		running: make(map[string]context.CancelFunc),
	}, nil
}

// Factory returns a registry factory for the local engine.
func Factory(cfg Config) engine.Factory {
	return func() (engine.Engine, error) {
		return New(cfg)
	}
}

// Execute runs t in the calling goroutine. Callers are expected to respect
// AcceptingTasks; the engine itself does not queue.
func (e *Engine) Execute(ctx context.Context, t *task.Task, stdoutPath, stderrPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if _, ok := e.running[t.ID()]; ok {
		e.mu.Unlock()
		return fmt.Errorf("task %s is already running", t.ID())
	}
	e.running[t.ID()] = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.running, t.ID())
		e.mu.Unlock()
	}()

	e.logger.Debug("executing task", "task_id", t.ID(), "name", t.Name(), "working_dir", t.WorkingDir())
	return e.Run(ctx, t, stdoutPath, stderrPath)
}

// Abort cancels the context of a running task.
func (e *Engine) Abort(t *task.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cancel, ok := e.running[t.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, t.ID())
	}
	cancel()
	return nil
}

// AcceptingTasks reports whether fewer than Workers tasks are running.
func (e *Engine) AcceptingTasks() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running) < e.workers
}

func (e *Engine) MaxTasks() int { return e.workers }
