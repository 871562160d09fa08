// Command parxe runs functions as tasks on a pluggable execution engine,
// either once from the command line or behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "parxe:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parxe",
		Short:         "Run functions as tasks on a pluggable execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to a parxe.yaml config file")
	root.PersistentFlags().String("engine", "", "engine to run tasks on (overrides PARXE_ENGINE)")

	root.AddCommand(serveCmd(), runCmd(), enginesCmd())
	return root
}
