package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/store"
)

const usage = `Mudra - sign language recognition

Usage:
  mudra <command> [flags] [args]

Commands:
  serve     run the catalog and library HTTP API
  live      run the camera recognizer, the HTTP API and the tray
  import    add recorded signature files to the catalog
  build     compile a library from its recordings
  align     compare two built libraries concept by concept
  replay    run recorded signatures through a recognition session

Every command accepts -config <file>. Settings can also be set with MUDRA_* variables.
`

type command struct {
	run  func(env *env, args []string) error
	desc string
}

var commands = map[string]command{
	"serve":  {runServe, "run the catalog and library HTTP API"},
	"live":   {runLive, "run the camera recognizer, the HTTP API and the tray"},
	"import": {runImport, "add recorded signature files to the catalog"},
	"build":  {runBuild, "compile a library from its recordings"},
	"align":  {runAlign, "compare two built libraries"},
	"replay": {runReplay, "run recorded signatures through a recognition session"},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Print(usage)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	e := &env{flags: flag.NewFlagSet(name, flag.ExitOnError)}
	e.flags.Usage = func() {
		fmt.Fprintf(e.flags.Output(), "Usage of mudra %s: %s\n", name, cmd.desc)
		e.flags.PrintDefaults()
	}
	if err := cmd.run(e, os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
}

// env carries the flag set and the resources a command opens.
type env struct {
	flags      *flag.FlagSet
	configPath string
	cfg        config.Config

	store    *store.Store
	snapshot *library.Snapshot
}

// parse registers -config, parses args, and loads the configuration.
func (e *env) parse(args []string) error {
	e.flags.StringVar(&e.configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "JSON config file")
	if err := e.flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// openCatalog opens the SQLite catalog, creating its directory.
func (e *env) openCatalog() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(e.cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	e.store = st
	return st, nil
}

// openSnapshot opens the bbolt library snapshot file.
func (e *env) openSnapshot() (*library.Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(e.cfg.SnapshotPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	snap, err := library.OpenSnapshot(e.cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	e.snapshot = snap
	return snap, nil
}

func (e *env) close() {
	if e.snapshot != nil {
		if err := e.snapshot.Close(); err != nil {
			log.Printf("Error closing snapshot: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Printf("Error closing catalog: %v", err)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// findWebDir returns the configured static directory, or the first of "web",
// "../web", "../../web" and <data dir>/web that exists.
func findWebDir(cfg config.Config) string {
	if cfg.StaticDir != "" {
		return cfg.StaticDir
	}
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
