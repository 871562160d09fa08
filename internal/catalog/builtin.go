package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seantiz/parxe/internal/future"
	"github.com/seantiz/parxe/internal/task"
)

// ErrArgs is returned when a builtin receives the wrong arguments.
var ErrArgs = errors.New("bad arguments")

// Builtin returns a catalog holding the functions shipped with parxe.
func Builtin() *Catalog {
	c := New()
	c.Register("add", "add two numbers, or concatenate two strings", binary(future.OpAdd))
	c.Register("sub", "subtract the second number from the first", binary(future.OpSub))
	c.Register("mul", "multiply two numbers", binary(future.OpMul))
	c.Register("div", "divide two numbers; integers truncate", binary(future.OpDiv))
	c.Register("mod", "remainder of integer or float division", binary(future.OpMod))
	c.Register("pow", "raise the first number to the second", binary(future.OpPow))
	c.Register("sum", "sum all arguments", sum)
	c.Register("echo", "print the arguments to stdout and return them", echo)
	c.Register("sleep", "sleep for the given number of seconds", sleep)
	c.Register("cwd", "return the directory the task runs in", cwd)
	c.Register("fail", "return an error carrying the first argument", fail)
	return c
}

func binary(op future.Op) task.Func {
	return func(_ context.Context, call task.Call) (any, error) {
		if len(call.Args) != 2 {
			return nil, fmt.Errorf("%w: %s takes 2 arguments, got %d", ErrArgs, op, len(call.Args))
		}
		return future.Apply(op, call.Args[0], call.Args[1])
	}
}

func sum(_ context.Context, call task.Call) (any, error) {
	var total any = 0
	for _, a := range call.Args {
		v, err := future.Apply(future.OpAdd, total, a)
		if err != nil {
			return nil, err
		}
		total = v
	}
	return total, nil
}

func echo(_ context.Context, call task.Call) (any, error) {
	for _, a := range call.Args {
		if _, err := fmt.Fprintln(call.Stdout, a); err != nil {
			return nil, err
		}
	}
	return call.Args, nil
}

func sleep(ctx context.Context, call task.Call) (any, error) {
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("%w: sleep takes 1 argument", ErrArgs)
	}
	secs, err := future.Apply(future.OpMul, call.Args[0], 1.0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	d := time.Duration(secs.(float64) * float64(time.Second))

	fmt.Fprintf(call.Stderr, "sleeping %s\n", d)
	select {
	case <-time.After(d):
		return d.Seconds(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cwd reports the process directory when the engine entered the task's
// working directory, and otherwise resolves the task's directory itself.
func cwd(_ context.Context, call task.Call) (any, error) {
	dir := call.WorkingDir
	if dir == "" || dir == task.DefaultWorkingDir || dir == "." {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

func fail(_ context.Context, call task.Call) (any, error) {
	msg := "failed"
	if len(call.Args) > 0 {
		msg = fmt.Sprint(call.Args[0])
	}
	fmt.Fprintln(call.Stderr, msg)
	return nil, errors.New(msg)
}
