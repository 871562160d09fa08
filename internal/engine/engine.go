package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/parxe/internal/channel"
	"github.com/seantiz/parxe/internal/task"
)

var (
	// ErrNotConnected is returned by Execute before Connect was called.
	ErrNotConnected = errors.New("engine not connected")

	// ErrAbortUnsupported is returned by engines that cannot stop a task
	// once it started. It matches errors.ErrUnsupported.
	ErrAbortUnsupported = fmt.Errorf("abort: %w", errors.ErrUnsupported)

	// ErrUnknownEngine is returned by Registry.Get for unregistered names.
	ErrUnknownEngine = errors.New("unknown engine")
)

// Engine is the interface all execution backends must implement.
type Engine interface {
	// Name is the registry key of the engine kind.
	Name() string

	// Hash identifies this engine instance. Replies carrying another hash
	// are rejected.
	Hash() string

	// Connect creates the result channel on first call and returns its
	// server end. Later calls return the same endpoint.
	Connect() (*channel.Server, error)

	// Execute runs t in its working directory. Both artifacts are created
	// or truncated even when the function writes nothing. Exactly one reply
	// is sent for the task.
	Execute(ctx context.Context, t *task.Task, stdoutPath, stderrPath string) error

	// Finished consumes the reply Execute produced for t.
	Finished(ctx context.Context, t *task.Task) (channel.Reply, error)

	// Abort asks the engine to stop t. Engines that cannot do so return
	// ErrAbortUnsupported.
	Abort(t *task.Task) error

	// AcceptingTasks reports, without blocking, whether more work fits now.
	AcceptingTasks() bool

	// MaxTasks is the declared number of tasks the engine runs at once.
	MaxTasks() int
}

// Info describes a registered engine kind.
type Info struct {
	Name           string `json:"name"`
	Instantiated   bool   `json:"instantiated"`
	Hash           string `json:"hash,omitempty"`
	MaxTasks       int    `json:"max_tasks,omitempty"`
	AcceptingTasks bool   `json:"accepting_tasks"`
}
