package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/transport"
	"github.com/ayusman/mudra/internal/tray"
)

func runServe(e *env, args []string) error {
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	st, err := e.openCatalog()
	if err != nil {
		return err
	}
	snap, err := e.openSnapshot()
	if err != nil {
		return err
	}

	webDir := findWebDir(e.cfg)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Snapshot:  snap,
		Builder:   library.NewBuilder(st, snap, e.cfg.Builder),
		Events:    transport.NewHub(),
	})

	ctx, stop := signalContext()
	defer stop()
	return srv.ListenAndServe(ctx, e.cfg.Addr)
}

func runLive(e *env, args []string) error {
	withTray := e.flags.Bool("tray", true, "show the desktop tray menu")
	libFlag := e.flags.String("library", "", "library to recognize (default: the last one used, else the configured one)")
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	st, err := e.openCatalog()
	if err != nil {
		return err
	}
	snap, err := e.openSnapshot()
	if err != nil {
		return err
	}
	active := *libFlag
	if active == "" {
		if active, err = st.Setting(store.SettingActiveLibrary, e.cfg.Library); err != nil {
			return err
		}
	}
	lib, err := snap.Load(active)
	if err != nil {
		return fmt.Errorf("load library %s (run `mudra build %s` first): %w", active, active, err)
	}
	if err := st.SetSetting(store.SettingActiveLibrary, active); err != nil {
		log.Printf("Failed to remember active library: %v", err)
	}

	hub := transport.NewHub()
	sinks := []transport.Sink{hub}
	var clients []*transport.Client
	for _, url := range e.cfg.EventURLs {
		c := transport.NewClient(url, nil)
		clients = append(clients, c)
		sinks = append(sinks, c)
	}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	application, err := app.New(app.Config{
		Store:         st,
		LibraryName:   active,
		PluginDir:     e.cfg.PluginDir,
		PluginTimeout: e.cfg.PluginTimeout,
		CameraID:      e.cfg.CameraID,
		FPS:           e.cfg.FPS,
		Detector:      e.cfg.Detector,
		Recognition:   e.cfg.Recognition,
		Emitter:       e.cfg.Emitter,
		Sinks:         sinks,
	}, lib)
	if err != nil {
		return err
	}
	if err := application.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range application.PluginManager().List() {
		log.Printf("Loaded plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}

	srv := server.New(server.Config{
		StaticDir: findWebDir(e.cfg),
		Store:     st,
		Snapshot:  snap,
		Builder:   library.NewBuilder(st, snap, e.cfg.Builder),
		Events:    hub,
		Live:      application,
		OnBuild: func(built *gesture.Library) {
			if built.Name() != active {
				return
			}
			if err := application.ReloadLibrary(built); err != nil {
				log.Printf("Reload %s failed: %v", built.Name(), err)
			}
		},
	})

	ctx, stop := signalContext()
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, e.cfg.Addr)
		stop()
	}()

	application.SetEnabled(true)
	if err := application.Start(ctx); err != nil {
		stop()
		<-errCh
		return fmt.Errorf("start pipeline: %w", err)
	}
	fmt.Printf("Recognizing %s (%d concepts), API on http://%s\n", lib.Name(), lib.Len(), e.cfg.Addr)

	if *withTray {
		t := tray.New()
		t.OnToggle(application.SetEnabled)
		t.OnReset(func() { application.ResetSession(true) })
		t.OnOpen(func() { openBrowser("http://" + e.cfg.Addr) })
		t.OnQuit(stop)
		application.OnRecognition(func(r gesture.Recognition) { t.SetLastSign(r.Name, r.Score) })
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
		stop()
	} else {
		<-ctx.Done()
	}

	application.Stop()
	return <-errCh
}

func runImport(e *env, args []string) error {
	libName := e.flags.String("library", "", "library to file recordings under (default: the signature's language)")
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	files, err := signatureFiles(e.flags.Args())
	if err != nil {
		return err
	}
	st, err := e.openCatalog()
	if err != nil {
		return err
	}

	var failed int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		rec, err := library.Import(st, data, path, *libName)
		if err != nil {
			failed++
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		fmt.Printf("imported %s into %s (%d frames)\n", path, rec.Library, rec.Frames)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func runBuild(e *env, args []string) error {
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	names := e.flags.Args()
	if len(names) == 0 {
		names = []string{e.cfg.Library}
	}
	st, err := e.openCatalog()
	if err != nil {
		return err
	}
	snap, err := e.openSnapshot()
	if err != nil {
		return err
	}
	builder := library.NewBuilder(st, snap, e.cfg.Builder)

	var errs []error
	for _, name := range names {
		res, err := builder.Build(name)
		if res != nil {
			printBuildReport(res.Report)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Printf("saved %s: %d concepts (build %s)\n", name, res.Library.Len(), res.BuildID)
	}
	return errors.Join(errs...)
}

func printBuildReport(r gesture.BuildReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CONCEPT\tUSED\tRECORDINGS\tNOTE\n")
	for _, c := range r.Concepts {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Name, c.Used, len(c.Recordings), c.Error)
	}
	w.Flush()
	fmt.Printf("%s: %d built, %d skipped\n", r.Library, r.Built, r.Skipped)
}

func runAlign(e *env, args []string) error {
	source := e.flags.String("source", "asl", "source library")
	target := e.flags.String("target", "bsl", "target library")
	minSim := e.flags.Float64("min", gesture.DefaultMinAlignment, "similarity below which a concept is flagged")
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	snap, err := e.openSnapshot()
	if err != nil {
		return err
	}
	a, err := snap.Load(*source)
	if err != nil {
		return fmt.Errorf("load %s: %w", *source, err)
	}
	b, err := snap.Load(*target)
	if err != nil {
		return fmt.Errorf("load %s: %w", *target, err)
	}

	report := gesture.CompareLibraries(a, b, *minSim)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CONCEPT\tSIMILARITY\tREVIEW\n")
	for _, c := range report.Concepts {
		review := ""
		if c.Flagged {
			review = "yes"
		}
		fmt.Fprintf(w, "%s\t%.3f\t%s\n", c.Name, c.Similarity, review)
	}
	w.Flush()
	fmt.Printf("mean %.3f, %d flagged below %.2f\n", report.Mean, report.Flagged, report.MinExpected)
	if len(report.OnlySource) > 0 {
		fmt.Printf("only in %s: %s\n", report.Source, strings.Join(report.OnlySource, ", "))
	}
	if len(report.OnlyTarget) > 0 {
		fmt.Printf("only in %s: %s\n", report.Target, strings.Join(report.OnlyTarget, ", "))
	}
	return nil
}

func runReplay(e *env, args []string) error {
	if err := e.parse(args); err != nil {
		return err
	}
	defer e.close()

	files, err := signatureFiles(e.flags.Args())
	if err != nil {
		return err
	}
	snap, err := e.openSnapshot()
	if err != nil {
		return err
	}
	lib, err := snap.Load(e.cfg.Library)
	if err != nil {
		return fmt.Errorf("load library %s: %w", e.cfg.Library, err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "FILE\tEXPECTED\tBEST\tSCORE\tSTATUS\tEMITTED\n")
	var recognized, replayed int
	for _, path := range files {
		sig, err := detector.LoadSignature(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}
		res, err := app.Replay(sig, lib, e.cfg.Recognition)
		if err != nil {
			return err
		}
		replayed++
		if res.Recognized {
			recognized++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%s\t%s\n", filepath.Base(path), res.Expected,
			res.Best.Name, res.Best.Score, res.Best.Status, strings.Join(res.Emitted, " "))
	}
	w.Flush()
	fmt.Printf("recognized %d/%d with library %s\n", recognized, replayed, lib.Name())
	return nil
}

// signatureFiles expands directories in args to the .json files they contain.
func signatureFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("no signature files given")
	}
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
