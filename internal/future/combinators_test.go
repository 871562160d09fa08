package future_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/future"
)

func get(t *testing.T, f *future.Future) any {
	t.Helper()
	v, err := f.Get(timeoutCtx(t, 5*time.Second))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return v
}

func mul(args ...any) (any, error) { return future.Apply(future.OpMul, args[0], args[1]) }
func add(args ...any) (any, error) { return future.Apply(future.OpAdd, args[0], args[1]) }

func TestValueIdentity(t *testing.T) {
	s := newScheduler(t, 2, nil)

	for _, v := range []any{1, int64(-4), 2.5, "text", nil, true, []any{1, "a"}, map[string]any{"k": 1}} {
		if got := get(t, s.Value(v)); !reflect.DeepEqual(got, v) {
			t.Errorf("Value(%v).Get() = %v", v, got)
		}
	}
}

func TestArithmeticCombinators(t *testing.T) {
	s := newScheduler(t, 4, nil)

	tests := []struct {
		name string
		op   func(*future.Future, any) *future.Future
		x, y any
		want any
	}{
		{"add", (*future.Future).Add, 7, 2, 9},
		{"sub", (*future.Future).Sub, 7, 2, 5},
		{"mul", (*future.Future).Mul, 7, 2, 14},
		{"div", (*future.Future).Div, 7, 2, 3},
		{"mod", (*future.Future).Mod, 7, 2, 1},
		{"pow", (*future.Future).Pow, 7, 2, 49},
		{"float add", (*future.Future).Add, 7.5, 2, 9.5},
		{"float div", (*future.Future).Div, 7.0, 2, 3.5},
		{"float pow", (*future.Future).Pow, 4.0, 0.5, 2.0},
		{"concat", (*future.Future).Add, "par", "xe", "parxe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Both operands as futures, then the right one as a plain value.
			if got := get(t, tt.op(s.Value(tt.x), s.Value(tt.y))); got != tt.want {
				t.Errorf("future operand: got %#v, want %#v", got, tt.want)
			}
			if got := get(t, tt.op(s.Value(tt.x), tt.y)); got != tt.want {
				t.Errorf("plain operand: got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNeg(t *testing.T) {
	s := newScheduler(t, 2, nil)

	if got := get(t, s.Value(7).Neg()); got != -7 {
		t.Errorf("Neg(7) = %#v", got)
	}
	if got := get(t, s.Value(-1.5).Neg()); got != 1.5 {
		t.Errorf("Neg(-1.5) = %#v", got)
	}
}

func TestUnionPreservesOrder(t *testing.T) {
	s := newScheduler(t, 4, nil)

	got := get(t, s.Union(s.Value(1), s.Value(2), s.Value(3)))
	if want := []any{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Union = %#v, want %#v", got, want)
	}
}

func TestUnionAcceptsPlainValues(t *testing.T) {
	s := newScheduler(t, 2, nil)

	got := get(t, s.Union(s.Value("a"), "b", 3))
	if want := []any{"a", "b", 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Union = %#v, want %#v", got, want)
	}
}

func TestNestedConditioned(t *testing.T) {
	s := newScheduler(t, 2, nil)

	f1 := s.Conditioned(mul, 20, 5)
	f2 := s.Conditioned(mul, f1, 2)
	f3 := s.Conditioned(add, f1, f2)
	f4 := f3.Mul(4)

	if got := get(t, f4); got != 1200 {
		t.Errorf("f4 = %#v, want 1200", got)
	}
}

func TestConditionedUnwrapsChainedFutures(t *testing.T) {
	s := newScheduler(t, 2, nil)

	inner := s.Value(5)
	outer := s.Value(inner)
	if got := get(t, outer.Add(1)); got != 6 {
		t.Errorf("got %#v, want 6", got)
	}
}

func TestDeepChainOnSingleWorker(t *testing.T) {
	s := newScheduler(t, 1, nil)

	f := s.Value(0)
	for range 50 {
		f = f.Add(1)
	}
	if got := get(t, f); got != 50 {
		t.Errorf("got %#v, want 50", got)
	}
}

func TestConditionedDependencyError(t *testing.T) {
	s := newScheduler(t, 2, nil)
	boom := errors.New("boom")

	failing := s.Go(future.Unit{
		Run: func(context.Context) (any, error) { return nil, boom },
	})

	_, err := failing.Add(1).Get(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want boom", err)
	}
}

func TestDivisionByZero(t *testing.T) {
	s := newScheduler(t, 2, nil)

	_, err := s.Value(1).Div(0).Get(context.Background())
	if !errors.Is(err, future.ErrDivisionByZero) {
		t.Fatalf("Get error = %v, want ErrDivisionByZero", err)
	}
}

func TestAfter(t *testing.T) {
	s := newScheduler(t, 2, nil)

	f := s.Value(3).After(func(v any) (any, error) {
		return v.(int) * 10, nil
	})
	if got := get(t, f); got != 30 {
		t.Errorf("After = %#v, want 30", got)
	}
}

func TestUnionJoinsOutputs(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newScheduler(t, 2, fs)

	writeOut := func(path, content string) *future.Future {
		return s.Go(future.Unit{
			Run: func(context.Context) (any, error) {
				return nil, afero.WriteFile(fs, path, []byte(content), 0o644)
			},
		}, future.WithOutput(path, ""))
	}
	u := s.Union(writeOut("/a.out", "first"), writeOut("/b.out", "second"))

	out, ok := u.Stdout(context.Background())
	if !ok || out != "first\nsecond" {
		t.Errorf("Stdout = %q, %v; want joined output", out, ok)
	}
	errOut, ok := u.Stderr(context.Background())
	if ok || errOut != "\n" {
		t.Errorf("Stderr = %q, %v; want empty join, false", errOut, ok)
	}
}
