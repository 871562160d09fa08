package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/seantiz/parxe/internal/catalog"
	"github.com/seantiz/parxe/internal/config"
	"github.com/seantiz/parxe/internal/engine"
	"github.com/seantiz/parxe/internal/engine/local"
	"github.com/seantiz/parxe/internal/engine/seq"
	"github.com/seantiz/parxe/internal/fsutil"
	"github.com/seantiz/parxe/internal/future"
	"github.com/seantiz/parxe/internal/planner"
	"github.com/seantiz/parxe/internal/store"
)

// app holds the components shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	fs       afero.Fs
	store    store.Store
	sched    *future.Scheduler
	registry *engine.Registry
	catalog  *catalog.Catalog
	planner  *planner.Planner
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if name, _ := cmd.Flags().GetString("engine"); name != "" {
		cfg.Engine = name
	}
	return cfg, nil
}

// newApp wires the store, scheduler, engine registry, catalog and planner.
// Logs go to logOut.
func newApp(cfg config.Config, dbPath string, logOut io.Writer) (*app, error) {
	logger := config.NewLogger(logOut, cfg.LogLevel)

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	fs := afero.NewOsFs()
	sched := future.NewScheduler(future.Config{
		MaxWorkers: cfg.MaxWorkers,
		FS:         fs,
		Poll:       fsutil.Poll{Timeout: cfg.FSTimeout, Step: cfg.FSWaitStep},
		Logger:     logger,
	})

	reg := engine.NewRegistry()
	reg.Register(seq.Name, seq.Factory(seq.Config{FS: fs, Logger: logger}))
	reg.Register(local.Name, local.Factory(local.Config{Workers: cfg.LocalWorkers, FS: fs, Logger: logger}))

	p := planner.New(planner.Config{
		OutputDir:  cfg.OutputDir,
		WorkingDir: cfg.WorkDir,
	}, db, sched, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		fs:       fs,
		store:    db,
		sched:    sched,
		registry: reg,
		catalog:  catalog.Builtin(),
		planner:  p,
	}, nil
}

// start binds the configured engine to the planner.
func (a *app) start() error {
	e, err := a.registry.Get(a.cfg.Engine)
	if err != nil {
		return err
	}
	if err := a.planner.SetEngine(e); err != nil {
		return err
	}
	return a.planner.Start(nil)
}

// close stops the planner, waits for scheduled work and closes the store.
func (a *app) close() error {
	var errs []error
	if a.planner.Started() {
		if err := a.planner.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop planner: %w", err))
		}
	}
	a.sched.Wait()
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
