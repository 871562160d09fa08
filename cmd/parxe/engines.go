package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func enginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available execution engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, ":memory:", io.Discard)
			if err != nil {
				return err
			}
			defer a.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMAX TASKS\tACCEPTING\tDEFAULT")
			for _, name := range a.registry.Names() {
				e, err := a.registry.Get(name)
				if err != nil {
					return err
				}
				def := ""
				if name == cfg.Engine {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%t\t%s\n", name, e.MaxTasks(), e.AcceptingTasks(), def)
			}
			return w.Flush()
		},
	}
}
