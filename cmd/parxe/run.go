package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/seantiz/parxe/internal/future"
	"github.com/seantiz/parxe/internal/planner"
)

func runCmd() *cobra.Command {
	var (
		dbPath  string
		workDir string
		each    bool
	)
	cmd := &cobra.Command{
		Use:   "run <func> [args...]",
		Short: "Run a catalog function as a task and print its output and result",
		Long: "Run a catalog function as a task and print its output and result.\n" +
			"Arguments are passed as integers, floats or strings, whichever parses first.\n" +
			"With --each one task is submitted per argument and the results are printed as a list.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, dbPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			fn, err := a.catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			if err := a.start(); err != nil {
				return err
			}

			ctx := cmd.Context()
			sub := planner.Submission{Name: args[0], Func: fn, WorkingDir: workDir}
			values := parseArgs(args[1:])

			var (
				ids []string
				f   *future.Future
			)
			if each {
				ids, f, err = a.planner.Map(ctx, sub, values)
			} else {
				sub.Args = values
				var id string
				id, f, err = a.planner.Submit(ctx, sub)
				ids = []string{id}
			}
			if err != nil {
				return err
			}

			err = report(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), f)
			if ctx.Err() != nil {
				// Interrupted: abort whatever has not completed yet.
				for _, id := range ids {
					_ = a.planner.Abort(id)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", ":memory:", "database recording the task")
	cmd.Flags().StringVar(&workDir, "workdir", "", "working directory of the task (defaults to PARXE_WORK_DIR)")
	cmd.Flags().BoolVar(&each, "each", false, "submit one task per argument")
	return cmd
}

// report waits for f, copies its captured output and prints the result as
// JSON on the last line of stdout.
func report(ctx context.Context, stdout, stderr io.Writer, f *future.Future) error {
	v, err := f.Get(ctx)
	if out, ok := f.Stdout(ctx); ok {
		fmt.Fprint(stdout, out)
	}
	if out, ok := f.Stderr(ctx); ok {
		fmt.Fprint(stderr, out)
	}
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

// parseArgs converts command line arguments to int64, float64 or string,
// whichever parses first.
func parseArgs(args []string) []any {
	out := make([]any, len(args))
	for i, s := range args {
		out[i] = parseArg(s)
	}
	return out
}

func parseArg(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
