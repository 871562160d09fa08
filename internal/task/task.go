package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// DefaultWorkingDir is used when a task is created without a working directory.
const DefaultWorkingDir = "./"

// ErrResultAlreadySet is returned when SetResult is called more than once.
var ErrResultAlreadySet = errors.New("task result already set")

// Func is the signature of functions executed by engines.
type Func func(ctx context.Context, call Call) (any, error)

// Call carries the arguments of one invocation together with the output
// artifacts the engine opened for it.
type Call struct {
	Args       []any
	Kwargs     map[string]any
	WorkingDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Spec describes a task to construct.
type Spec struct {
	ID         string
	Name       string
	Func       Func
	Args       []any
	Kwargs     map[string]any
	WorkingDir string
}

// Task is an immutable descriptor of one unit of work. Only its result slot
// is mutable, and only once.
type Task struct {
	id         string
	name       string
	fn         Func
	args       []any
	kwargs     map[string]any
	workingDir string

	mu        sync.Mutex
	result    any
	resultSet bool
}

// New creates a task from spec. Args and kwargs are copied so later changes
// by the caller do not leak into the descriptor.
func New(spec Spec) *Task {
	wd := spec.WorkingDir
	if wd == "" {
		wd = DefaultWorkingDir
	}
	kwargs := make(map[string]any, len(spec.Kwargs))
	maps.Copy(kwargs, spec.Kwargs)
	return &Task{
		id:         spec.ID,
		name:       spec.Name,
		fn:         spec.Func,
		args:       slices.Clone(spec.Args),
		kwargs:     kwargs,
		workingDir: wd,
	}
}

func (t *Task) ID() string         { return t.id }
func (t *Task) Name() string       { return t.name }
func (t *Task) Func() Func         { return t.fn }
func (t *Task) WorkingDir() string { return t.workingDir }

// Args returns a copy of the positional arguments.
func (t *Task) Args() []any {
	return slices.Clone(t.args)
}

// Kwargs returns a copy of the keyword arguments.
func (t *Task) Kwargs() map[string]any {
	out := make(map[string]any, len(t.kwargs))
	maps.Copy(out, t.kwargs)
	return out
}

// Result returns the stored result and whether it has been set.
func (t *Task) Result() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.resultSet
}

// SetResult stores the result of executing the task. It may be called once.
func (t *Task) SetResult(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resultSet {
		return fmt.Errorf("task %s: %w", t.id, ErrResultAlreadySet)
	}
	t.result = v
	t.resultSet = true
	return nil
}

// Invoke runs the task function with the given output writers. A panic in
// the function is returned as an error.
func (t *Task) Invoke(ctx context.Context, stdout, stderr io.Writer) (result any, err error) {
	if t.fn == nil {
		return nil, fmt.Errorf("task %s has no function", t.id)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.id, r)
		}
	}()
	return t.fn(ctx, Call{
		Args:       t.Args(),
		Kwargs:     t.Kwargs(),
		WorkingDir: t.workingDir,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}
