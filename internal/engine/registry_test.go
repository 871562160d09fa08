package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/seantiz/parxe/internal/channel"
	"github.com/seantiz/parxe/internal/engine"
	"github.com/seantiz/parxe/internal/task"
)

// stubEngine is a minimal Engine for registry tests.
type stubEngine struct {
	name string
	hash string
}

func (s *stubEngine) Name() string                     { return s.name }
func (s *stubEngine) Hash() string                     { return s.hash }
func (s *stubEngine) Connect() (*channel.Server, error) { return nil, nil }
func (s *stubEngine) Execute(context.Context, *task.Task, string, string) error {
	return nil
}
func (s *stubEngine) Finished(context.Context, *task.Task) (channel.Reply, error) {
	return channel.Reply{}, nil
}
func (s *stubEngine) Abort(*task.Task) error { return engine.ErrAbortUnsupported }
func (s *stubEngine) AcceptingTasks() bool   { return true }
func (s *stubEngine) MaxTasks() int          { return 3 }

func countingFactory(name string, calls *int) engine.Factory {
	return func() (engine.Engine, error) {
		*calls++
		return &stubEngine{name: name, hash: name + "-hash"}, nil
	}
}

func TestRegistryGetCreatesSingleton(t *testing.T) {
	reg := engine.NewRegistry()
	calls := 0
	reg.Register("seq", countingFactory("seq", &calls))

	a, err := reg.Get("seq")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := reg.Get("seq")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Error("Get returned different instances for the same name")
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := engine.NewRegistry()

	_, err := reg.Get("cluster")
	if !errors.Is(err, engine.ErrUnknownEngine) {
		t.Fatalf("Get error = %v, want ErrUnknownEngine", err)
	}
}

func TestRegistryFactoryError(t *testing.T) {
	reg := engine.NewRegistry()
	boom := errors.New("boom")
	reg.Register("bad", func() (engine.Engine, error) { return nil, boom })

	if _, err := reg.Get("bad"); !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want boom", err)
	}
}

func TestRegistryListAndNames(t *testing.T) {
	reg := engine.NewRegistry()
	var calls int
	reg.Register("seq", countingFactory("seq", &calls))
	reg.Register("local", countingFactory("local", &calls))

	names := reg.Names()
	if len(names) != 2 || names[0] != "local" || names[1] != "seq" {
		t.Fatalf("Names() = %v, want [local seq]", names)
	}

	if _, err := reg.Get("seq"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d engines, want 2", len(list))
	}
	if list[0].Name != "local" || list[0].Instantiated {
		t.Errorf("list[0] = %+v, want uninstantiated local", list[0])
	}
	if !list[1].Instantiated || list[1].Hash != "seq-hash" || list[1].MaxTasks != 3 || !list[1].AcceptingTasks {
		t.Errorf("list[1] = %+v", list[1])
	}
}

func TestRegistryReRegisterReplacesInstance(t *testing.T) {
	reg := engine.NewRegistry()
	var calls int
	reg.Register("seq", countingFactory("seq", &calls))
	first, _ := reg.Get("seq")

	reg.Register("seq", countingFactory("seq", &calls))
	second, _ := reg.Get("seq")

	if first == second {
		t.Error("re-registering did not replace the instance")
	}
}

func TestErrAbortUnsupportedMatchesStdlib(t *testing.T) {
	if !errors.Is(engine.ErrAbortUnsupported, errors.ErrUnsupported) {
		t.Error("ErrAbortUnsupported does not wrap errors.ErrUnsupported")
	}
}
