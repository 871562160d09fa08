package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/seantiz/parxe/internal/api"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cfg.DBPath, os.Stdout)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					a.logger.Error("shutdown", "error", err)
				}
			}()

			a.logger.Info("parxe: starting",
				"listen_addr", cfg.ListenAddr,
				"db_path", cfg.DBPath,
				"engine", cfg.Engine,
				"output_dir", cfg.OutputDir,
			)
			if err := a.start(); err != nil {
				return err
			}

			srv := api.NewServer(cfg.ListenAddr, api.Deps{
				Store:    a.store,
				Registry: a.registry,
				Catalog:  a.catalog,
				Planner:  a.planner,
				FS:       a.fs,
				Logger:   a.logger,
			})
			return srv.Run(cmd.Context())
		},
	}
}
