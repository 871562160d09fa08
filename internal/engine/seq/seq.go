// Package seq provides the reference engine: tasks run one at a time in the
// calling goroutine, inside their working directory.
package seq

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/channel"
	"github.com/seantiz/parxe/internal/engine"
	"github.com/seantiz/parxe/internal/task"
)

// Name is the registry key of the sequential engine.
const Name = "seq"

var _ engine.Engine = (*Engine)(nil)

// Config configures the sequential engine.
type Config struct {
	FS     afero.Fs
	Codec  channel.Codec
	Logger *slog.Logger
}

// Engine executes tasks sequentially. Execute changes the process working
// directory for the duration of the task, so executions are serialised and
// the previous directory is restored afterwards.
type Engine struct {
	*engine.Base
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a sequential engine.
func New(cfg Config) (*Engine, error) {
	base, err := engine.NewBase(Name, cfg.FS, cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("seq engine: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{Base: base, logger: logger}, nil
}

// Factory returns a registry factory for the sequential engine.
func Factory(cfg Config) engine.Factory {
	return func() (engine.Engine, error) {
		return New(cfg)
	}
}

// Execute runs t inside its working directory.
func (e *Engine) Execute(ctx context.Context, t *task.Task, stdoutPath, stderrPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working dir: %w", err)
	}
	if err := os.Chdir(t.WorkingDir()); err != nil {
		return fmt.Errorf("enter working dir for task %s: %w", t.ID(), err)
	}
	defer func() {
		if err := os.Chdir(prev); err != nil {
			e.logger.Error("failed to restore working dir", "dir", prev, "error", err)
		}
	}()

	e.logger.Debug("executing task", "task_id", t.ID(), "name", t.Name(), "working_dir", t.WorkingDir())
	return e.Run(ctx, t, stdoutPath, stderrPath)
}

// Abort always fails: a sequential task runs to completion once started.
func (e *Engine) Abort(*task.Task) error {
	return engine.ErrAbortUnsupported
}

// AcceptingTasks is always true; extra work waits on the execution lock.
func (e *Engine) AcceptingTasks() bool { return true }

func (e *Engine) MaxTasks() int { return 1 }
