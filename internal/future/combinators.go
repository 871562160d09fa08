package future

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Value returns a future whose work yields v unchanged.
func (s *Scheduler) Value(v any) *Future {
	return s.Go(Unit{
		Run: func(context.Context) (any, error) { return v, nil },
	})
}

// Conditioned returns a future that resolves every future among args, in
// order, and then calls fn with the resolved values. A future whose result
// is itself a future is unwrapped until a plain value is reached. If a
// dependency fails the combinator fails with that error wrapped.
func (s *Scheduler) Conditioned(fn func(args ...any) (any, error), args ...any) *Future {
	args = slices.Clone(args)
	var resolved []any
	return s.Go(Unit{
		Prepare: func(ctx context.Context) (func(), error) {
			vals, err := resolveAll(ctx, args)
			if err != nil {
				return nil, err
			}
			resolved = vals
			return nil, nil
		},
		Run: func(context.Context) (any, error) {
			return fn(resolved...)
		},
	})
}

// Union returns a future resolving to the results of items in order. Plain
// values are wrapped with Value. Its stdout and stderr are the constituents'
// outputs joined by newlines.
func (s *Scheduler) Union(items ...any) *Future {
	parts := make([]*Future, len(items))
	args := make([]any, len(items))
	for i, it := range items {
		parts[i] = s.asFuture(it)
		args[i] = parts[i]
	}

	f := s.Conditioned(func(vals ...any) (any, error) {
		return vals, nil
	}, args...)
	f.stdoutFn = joinOutputs(f, parts, (*Future).Stdout)
	f.stderrFn = joinOutputs(f, parts, (*Future).Stderr)
	return f
}

func joinOutputs(self *Future, parts []*Future, get func(*Future, context.Context) (string, bool)) outputFunc {
	return func(ctx context.Context) (string, bool) {
		_, _ = self.Get(ctx)
		out := make([]string, len(parts))
		seen := false
		for i, p := range parts {
			v, ok := get(p, ctx)
			out[i] = v
			seen = seen || ok
		}
		return strings.Join(out, "\n"), seen
	}
}

// After returns a future that applies fn to this future's result.
func (f *Future) After(fn func(v any) (any, error)) *Future {
	return f.sched.Conditioned(func(args ...any) (any, error) {
		return fn(args[0])
	}, f)
}

func (f *Future) Add(other any) *Future { return f.binary(OpAdd, other) }
func (f *Future) Sub(other any) *Future { return f.binary(OpSub, other) }
func (f *Future) Mul(other any) *Future { return f.binary(OpMul, other) }
func (f *Future) Div(other any) *Future { return f.binary(OpDiv, other) }
func (f *Future) Pow(other any) *Future { return f.binary(OpPow, other) }
func (f *Future) Mod(other any) *Future { return f.binary(OpMod, other) }

// Neg returns a future holding the negated result.
func (f *Future) Neg() *Future {
	return f.sched.Conditioned(func(args ...any) (any, error) {
		return Negate(args[0])
	}, f)
}

func (f *Future) binary(op Op, other any) *Future {
	return f.sched.Conditioned(func(args ...any) (any, error) {
		return Apply(op, args[0], args[1])
	}, f, f.sched.asFuture(other))
}

func (s *Scheduler) asFuture(v any) *Future {
	if f, ok := v.(*Future); ok {
		return f
	}
	return s.Value(v)
}

func resolveAll(ctx context.Context, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := resolve(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func resolve(ctx context.Context, v any) (any, error) {
	for {
		f, ok := v.(*Future)
		if !ok {
			return v, nil
		}
		r, err := f.Get(ctx)
		if err != nil {
			return nil, err
		}
		v = r
	}
}
