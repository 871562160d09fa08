package future_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/fsutil"
	"github.com/seantiz/parxe/internal/future"
)

func newScheduler(t *testing.T, workers int, fs afero.Fs) *future.Scheduler {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	s := future.NewScheduler(future.Config{
		MaxWorkers: workers,
		FS:         fs,
		Poll:       fsutil.Poll{Timeout: 50 * time.Millisecond, Step: 5 * time.Millisecond},
	})
	t.Cleanup(s.Wait)
	return s
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// gated starts a unit that blocks until the returned release func is
// called. It waits for the unit to be running before returning.
func gated(t *testing.T, s *future.Scheduler, result any, opts ...future.Option) (*future.Future, func()) {
	t.Helper()
	release := make(chan struct{})
	f := s.Go(future.Unit{
		Run: func(context.Context) (any, error) {
			<-release
			return result, nil
		},
	}, opts...)
	var once sync.Once
	done := func() { once.Do(func() { close(release) }) }
	t.Cleanup(done)

	if !f.WaitUntilRunning(timeoutCtx(t, 2*time.Second)) {
		t.Fatal("gated unit never started")
	}
	return f, done
}

func assertOneState(t *testing.T, f *future.Future) {
	t.Helper()
	n := 0
	for _, b := range []bool{f.Pending(), f.Running(), f.Finished(), f.Aborted()} {
		if b {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("future reports %d states at once (%s)", n, f)
	}
}

// countingFs records every filesystem access.
type countingFs struct {
	afero.Fs
	calls atomic.Int32
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.calls.Add(1)
	return c.Fs.Stat(name)
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.calls.Add(1)
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.calls.Add(1)
	return c.Fs.OpenFile(name, flag, perm)
}
