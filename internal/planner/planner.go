package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/seantiz/parxe/internal/engine"
	"github.com/seantiz/parxe/internal/future"
	"github.com/seantiz/parxe/internal/model"
	"github.com/seantiz/parxe/internal/store"
	"github.com/seantiz/parxe/internal/task"
)

// Lifecycle and lookup errors.
var (
	ErrDoubleStart  = errors.New("planner already started")
	ErrNotStarted   = errors.New("planner not started")
	ErrEngineLocked = errors.New("engine cannot change while the planner is started")
	ErrNoEngine     = errors.New("no engine selected")
	ErrUnknownTask  = errors.New("unknown task")
	ErrTaskFailed   = errors.New("task failed")
	ErrReplyID      = errors.New("reply answers another task")
)

var errEngineBusy = errors.New("engine not accepting tasks")

// Defaults for polling an engine that reports it is full.
const (
	DefaultAdmissionStep = 10 * time.Millisecond
	DefaultAdmissionCap  = time.Second
)

// Config configures a Planner.
type Config struct {
	// OutputDir receives one stdout and one stderr artifact per task. When
	// empty, task output is discarded.
	OutputDir string
	// WorkingDir is used for submissions that do not name one.
	WorkingDir string
	// AdmissionStep is the first wait while the engine is not accepting
	// work; it doubles up to AdmissionCap.
	AdmissionStep time.Duration
	AdmissionCap  time.Duration
}

// Submission describes work to hand to the engine.
type Submission struct {
	Name       string
	Func       task.Func
	Args       []any
	Kwargs     map[string]any
	WorkingDir string
}

// binding is the engine state captured by a submission.
type binding struct {
	engine engine.Engine
	admit  *semaphore.Weighted
}

// Planner dispatches submissions to the bound engine.
type Planner struct {
	cfg    Config
	store  store.Store
	sched  *future.Scheduler
	logger *slog.Logger
	broker *EventBroker

	// life serialises Start and Stop; mu guards everything below it.
	life sync.Mutex

	mu             sync.Mutex
	selected       engine.Engine
	bound          *binding
	pendingTasks   map[string]*task.Task
	pendingFutures map[string]*future.Future
	inflight       sync.WaitGroup
}

// New creates a stopped planner.
func New(cfg Config, s store.Store, sched *future.Scheduler, logger *slog.Logger) *Planner {
	if cfg.AdmissionStep <= 0 {
		cfg.AdmissionStep = DefaultAdmissionStep
	}
	if cfg.AdmissionCap <= 0 {
		cfg.AdmissionCap = DefaultAdmissionCap
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = task.DefaultWorkingDir
	}
	return &Planner{
		cfg:            cfg,
		store:          s,
		sched:          sched,
		logger:         logger,
		broker:         NewEventBroker(),
		pendingTasks:   make(map[string]*task.Task),
		pendingFutures: make(map[string]*future.Future),
	}
}

// Events returns the broker publishing task state changes.
func (p *Planner) Events() *EventBroker {
	return p.broker
}

// SetEngine preselects the engine used by Start(nil).
func (p *Planner) SetEngine(e engine.Engine) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound != nil {
		return ErrEngineLocked
	}
	p.selected = e
	return nil
}

// Engine returns the bound engine, or nil when stopped.
func (p *Planner) Engine() engine.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound == nil {
		return nil
	}
	return p.bound.engine
}

// Started reports whether an engine is bound.
func (p *Planner) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound != nil
}

// Start binds e, or the preselected engine when e is nil, and connects it.
func (p *Planner) Start(e engine.Engine) error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bound != nil {
		return ErrDoubleStart
	}
	if e == nil {
		e = p.selected
	}
	if e == nil {
		return ErrNoEngine
	}
	if _, err := e.Connect(); err != nil {
		return fmt.Errorf("connect engine %s: %w", e.Name(), err)
	}

	capacity := max(e.MaxTasks(), 1)
	p.selected = e
	p.bound = &binding{engine: e, admit: semaphore.NewWeighted(int64(capacity))}

	p.logger.Info("planner started", "engine", e.Name(), "hash", e.Hash(), "max_tasks", capacity)
	return nil
}

// Stop stops accepting submissions, waits until every submitted future is
// finished or aborted and releases the engine.
func (p *Planner) Stop() error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	b := p.bound
	p.bound = nil
	p.mu.Unlock()

	if b == nil {
		return ErrNotStarted
	}

	p.inflight.Wait()
	p.logger.Info("planner stopped", "engine", b.engine.Name())
	return nil
}

// Pending returns the number of tracked tasks and futures.
func (p *Planner) Pending() (tasks, futures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pendingTasks), len(p.pendingFutures)
}

// Future returns the future of a task that has not completed yet.
func (p *Planner) Future(id string) (*future.Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.pendingFutures[id]
	return f, ok
}

// Abort aborts the future of task id. See future.Future.Abort.
func (p *Planner) Abort(id string) error {
	f, ok := p.Future(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return f.Abort()
}

// Submit creates a task for sub and returns its id and future. Work beyond
// the engine's capacity waits inside the future; it is never dropped.
func (p *Planner) Submit(ctx context.Context, sub Submission) (string, *future.Future, error) {
	if sub.Func == nil {
		return "", nil, errors.New("submission has no function")
	}
	wd := sub.WorkingDir
	if wd == "" {
		wd = p.cfg.WorkingDir
	}

	p.mu.Lock()
	b := p.bound
	if b == nil {
		p.mu.Unlock()
		return "", nil, ErrNotStarted
	}
	id := model.NewID()
	t := task.New(task.Spec{
		ID:         id,
		Name:       sub.Name,
		Func:       sub.Func,
		Args:       sub.Args,
		Kwargs:     sub.Kwargs,
		WorkingDir: wd,
	})
	p.pendingTasks[id] = t
	p.inflight.Add(1)
	p.mu.Unlock()

	stdoutPath, stderrPath := p.artifactPaths(id)
	rec := &model.TaskRecord{
		ID:         id,
		Name:       sub.Name,
		Engine:     b.engine.Name(),
		Status:     model.StatusPending,
		WorkingDir: wd,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.store.CreateTask(ctx, rec); err != nil {
		p.forget(id)
		return "", nil, fmt.Errorf("create task: %w", err)
	}

	var started atomic.Int64
	f := p.sched.Go(future.Unit{
		Prepare: func(ctx context.Context) (func(), error) {
			return p.acquire(ctx, b)
		},
		Run: func(ctx context.Context) (any, error) {
			started.Store(time.Now().UnixNano())
			return p.execute(ctx, b.engine, t, stdoutPath, stderrPath)
		},
	},
		future.WithOutput(stdoutPath, stderrPath),
		future.WithAbort(func() error { return b.engine.Abort(t) }),
	)

	p.mu.Lock()
	p.pendingFutures[id] = f
	p.mu.Unlock()

	tasksSubmitted.WithLabelValues(b.engine.Name()).Inc()
	p.publish(id, model.StatusPending, "")
	p.logger.Debug("task submitted", "task_id", id, "name", sub.Name, "engine", b.engine.Name())

	go func() {
		<-f.Done()
		p.complete(b.engine.Name(), id, f, started.Load())
	}()
	return id, f, nil
}

// Map submits one task per item, each receiving the item as its first
// argument followed by sub.Args. It returns the task ids and the union of
// their futures.
func (p *Planner) Map(ctx context.Context, sub Submission, items []any) ([]string, *future.Future, error) {
	ids := make([]string, 0, len(items))
	futures := make([]any, 0, len(items))
	for i, item := range items {
		s := sub
		s.Args = append([]any{item}, sub.Args...)
		id, f, err := p.Submit(ctx, s)
		if err != nil {
			return ids, nil, fmt.Errorf("map item %d: %w", i, err)
		}
		ids = append(ids, id)
		futures = append(futures, f)
	}
	return ids, p.sched.Union(futures...), nil
}

func (p *Planner) artifactPaths(id string) (string, string) {
	if p.cfg.OutputDir == "" {
		return "", ""
	}
	return filepath.Join(p.cfg.OutputDir, id+".stdout"), filepath.Join(p.cfg.OutputDir, id+".stderr")
}

// acquire takes one unit of engine capacity and then waits, with
// exponential backoff, until the engine reports it is accepting tasks.
func (p *Planner) acquire(ctx context.Context, b *binding) (func(), error) {
	if err := b.admit.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	release := func() { b.admit.Release(1) }

	backoff := retry.WithCappedDuration(p.cfg.AdmissionCap, retry.NewExponential(p.cfg.AdmissionStep))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		if b.engine.AcceptingTasks() {
			return nil
		}
		return retry.RetryableError(errEngineBusy)
	})
	return release, err
}

// execute runs t on e and collects its reply.
func (p *Planner) execute(ctx context.Context, e engine.Engine, t *task.Task, stdoutPath, stderrPath string) (any, error) {
	id := t.ID()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.store.UpdateTaskStatus(context.WithoutCancel(ctx), id, model.StatusRunning); err != nil {
		p.logger.Error("failed to transition to running", "task_id", id, "error", err)
	}
	p.publish(id, model.StatusRunning, "")

	running := tasksRunning.WithLabelValues(e.Name())
	running.Inc()
	defer running.Dec()

	if err := e.Execute(ctx, t, stdoutPath, stderrPath); err != nil {
		return nil, fmt.Errorf("execute task %s: %w", id, err)
	}

	// The reply is consumed even if the future was aborted meanwhile.
	reply, err := e.Finished(context.WithoutCancel(ctx), t)
	if err != nil {
		return nil, fmt.Errorf("collect reply for task %s: %w", id, err)
	}
	if reply.ID != id {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrReplyID, reply.ID, id)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrTaskFailed, reply.Error)
	}
	return reply.Result, nil
}

// complete persists the terminal state of a task and stops tracking it.
func (p *Planner) complete(engineName, id string, f *future.Future, startedNano int64) {
	defer p.forget(id)

	now := time.Now().UTC()
	rec := &model.TaskRecord{ID: id, FinishedAt: &now}

	v, err := f.Get(context.Background())
	if f.Aborted() {
		rec.Status = model.StatusAborted
		rec.Error = future.ErrAborted.Error()
	} else {
		rec.Status = model.StatusFinished
		if err != nil {
			rec.Error = err.Error()
		} else if raw, merr := json.Marshal(v); merr != nil {
			rec.Error = fmt.Sprintf("encode result: %v", merr)
		} else {
			rec.Result = raw
		}
	}
	if startedNano != 0 {
		elapsed := time.Since(time.Unix(0, startedNano))
		d := int(elapsed.Milliseconds())
		rec.DurationMS = &d
		taskDuration.WithLabelValues(engineName).Observe(elapsed.Seconds())
	}

	if err := p.store.UpdateTask(context.Background(), rec); err != nil {
		p.logger.Error("failed to update completed task", "task_id", id, "error", err)
	}
	tasksCompleted.WithLabelValues(engineName, rec.Status).Inc()
	p.publish(id, rec.Status, rec.Error)
	p.broker.Close(id)
}

func (p *Planner) forget(id string) {
	p.mu.Lock()
	delete(p.pendingTasks, id)
	delete(p.pendingFutures, id)
	p.mu.Unlock()
	p.inflight.Done()
}

func (p *Planner) publish(id, status, errMsg string) {
	p.broker.Publish(Event{TaskID: id, Status: status, Error: errMsg, At: time.Now().UTC()})
}
