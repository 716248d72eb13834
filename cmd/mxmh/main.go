package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/vanderheijden86/mxmh/internal/datasource"
	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/config"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/debug"
	"github.com/vanderheijden86/mxmh/pkg/export"
	"github.com/vanderheijden86/mxmh/pkg/model"
	"github.com/vanderheijden86/mxmh/pkg/server"
	"github.com/vanderheijden86/mxmh/pkg/ui"
	"github.com/vanderheijden86/mxmh/pkg/version"
	"github.com/vanderheijden86/mxmh/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

const pageTitle = "Music & Mental Health"

// listFlag collects a repeatable, comma separated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var sankeyGenres listFlag
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", os.Getenv("MXMH_CONFIG"), "Config file (default ~/.config/mxmh/config.yaml)")
	dataPath := flag.String("data", os.Getenv("MXMH_DATA"), "Survey CSV (default from config)")
	basic := flag.Bool("basic", false, "Static charts without controls or interaction")
	sortFlag := flag.String("sort", "", "Bar chart order: alphabetical, ascending or descending")
	scatterGenre := flag.String("scatter", "", "Scatter plot genre (or All)")
	flag.Var(&sankeyGenres, "sankey", "Sankey genre filter; repeat or comma separate")
	exportDir := flag.String("export", "", "Write settled snapshots of every chart to this directory and exit")
	format := flag.String("format", "", "Snapshot format for --export: svg, png or html")
	robotSummary := flag.Bool("robot-summary", false, "Print the settled dashboard as JSON and exit")
	sqliteExport := flag.String("sqlite-export", "", "Write a SQLite snapshot of the survey to this path and exit")
	wizard := flag.Bool("wizard", false, "Choose export settings interactively")
	serve := flag.Bool("serve", false, "Serve the dashboard over HTTP")
	addr := flag.String("addr", "", "Listen address for --serve")
	checkSources := flag.Bool("check-sources", false, "Compare the CSV with its SQLite snapshot and exit")
	noWatch := flag.Bool("no-watch", false, "Do not reload when the data file changes")
	debugFlag := flag.Bool("debug", false, "Write debug logs (same as MXMH_DEBUG=1)")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: mxmh [options]")
		fmt.Println("\nLinked charts over the Music & Mental Health survey.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("mxmh %s\n", version.Version)
		os.Exit(0)
	}

	if *debugFlag {
		debug.SetEnabled(true)
	}
	debug.Section("startup")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}
	if cfg.Data.Path == "" {
		cfg.Data.Path = datasource.DefaultPath
	}
	if *basic {
		cfg.Dashboard.Basic = true
	}
	if *noWatch {
		cfg.Data.Watch = false
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	debug.Dump("config", cfg)

	dashOpts, err := cfg.DashboardOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	discovery := datasource.DiscoveryOptions{DataPath: cfg.Data.Path, SnapshotPath: cfg.Data.Snapshot}

	if *checkSources {
		os.Exit(runCheckSources(discovery))
	}

	loadStart := time.Now()
	t, src, err := datasource.LoadSmart(discovery)
	debug.LogTiming("load "+discovery.DataPath, time.Since(loadStart))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading survey data: %v\n", err)
		fmt.Fprintf(os.Stderr, "Expected the survey CSV at %s (set --data or data.path).\n", discovery.DataPath)
		os.Exit(1)
	}
	hash := datasource.Fingerprint(t)

	events, err := selectionEvents(t, *sortFlag, *scatterGenre, sankeyGenres)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *sqliteExport != "":
		if err := export.NewSQLiteExporter(t, hash).Export(*sqliteExport); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing SQLite snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s records to %s\n", humanize.Comma(int64(t.Len())), *sqliteExport)

	case *robotSummary:
		d, err := bindSettled(t, dashOpts, events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := export.WriteSummary(os.Stdout, export.BuildSummary(d, hash, src.Path)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing summary: %v\n", err)
			os.Exit(1)
		}

	case *wizard:
		d, err := bindSettled(t, dashOpts, events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		paths, err := export.NewWizard(t).Run(ctx, d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export wizard failed: %v\n", err)
			os.Exit(1)
		}
		printPaths(paths)

	case *exportDir != "":
		name := *format
		if name == "" {
			name = cfg.Export.Format
		}
		f, err := export.ParseFormat(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		d, err := bindSettled(t, dashOpts, events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		paths, err := export.SaveSnapshots(ctx, d, *exportDir, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		printPaths(paths)

	case *serve:
		if err := runServer(ctx, cfg, dashOpts, discovery, t, hash, src.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}

	default:
		if debug.Enabled() {
			if f, err := openDebugLog(); err == nil {
				defer f.Close()
				debug.SetOutput(f)
			}
		}
		var w *watcher.Watcher
		if cfg.Data.Watch {
			if w = startWatcher(ctx, discovery.DataPath); w != nil {
				defer w.Stop()
			}
		}
		m, err := newTUIModel(cfg, dashOpts, discovery, t, src.Path, w, events)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runTUIProgram(m); err != nil {
			fmt.Printf("Error running dashboard: %v\n", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// genreError is an unknown genre on the command line.
type genreError struct {
	flag, value, suggestion string
}

func (e *genreError) Error() string {
	msg := fmt.Sprintf("--%s: unknown genre %q", e.flag, e.value)
	if e.suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.suggestion)
	}
	return msg
}

// selectionEvents turns the selection flags into dashboard events, resolving
// genre names case-insensitively against t.
func selectionEvents(t *model.Table, sort, scatter string, sankey []string) ([]dashboard.Event, error) {
	var events []dashboard.Event
	if sort != "" {
		mode, err := chart.ParseSortMode(sort)
		if err != nil {
			return nil, fmt.Errorf("--sort: %w", err)
		}
		events = append(events, dashboard.Select(dashboard.MountBar, chart.BarControlSort, string(mode)))
	}
	if scatter != "" {
		g, suggestion, ok := t.ResolveGenre(scatter)
		if !ok {
			return nil, &genreError{flag: "scatter", value: scatter, suggestion: suggestion}
		}
		events = append(events, dashboard.Select(dashboard.MountScatter, chart.ScatterControlGenre, g))
	}
	if len(sankey) > 0 {
		genres := make([]string, 0, len(sankey))
		for _, v := range sankey {
			g, suggestion, ok := t.ResolveGenre(v)
			if !ok {
				return nil, &genreError{flag: "sankey", value: v, suggestion: suggestion}
			}
			genres = append(genres, g)
		}
		events = append(events, dashboard.Select(dashboard.MountSankey, chart.SankeyControlGenre, genres...))
	}
	return events, nil
}

func applyEvents(d *dashboard.Dashboard, events []dashboard.Event) error {
	for _, ev := range events {
		if _, err := d.Dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

// bindSettled binds every mount, applies events and finishes transitions.
func bindSettled(t *model.Table, opts dashboard.Options, events []dashboard.Event) (*dashboard.Dashboard, error) {
	opts.OnUpdate = nil
	d, err := dashboard.Bind(dashboard.AllMounts(), t, opts)
	if err != nil {
		return nil, err
	}
	if err := applyEvents(d, events); err != nil {
		return nil, err
	}
	d.Settle()
	return d, nil
}

func printPaths(paths []string) {
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Printf("Exported %d snapshots\n", len(paths))
}

func runCheckSources(opts datasource.DiscoveryOptions) int {
	opts.Validate = true
	opts.IncludeInvalid = true
	sources, err := datasource.DiscoverSources(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering sources: %v\n", err)
		return 1
	}
	for _, s := range sources {
		fmt.Println(s.String())
	}
	report, err := datasource.GenerateInconsistencyReport(sources, datasource.DefaultDiffOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error comparing sources: %v\n", err)
		return 1
	}
	if len(report.Diffs) == 0 {
		fmt.Println("All valid sources agree.")
		return 0
	}
	for _, d := range report.Diffs {
		fmt.Println(d.Summary())
	}
	fmt.Printf("%s inconsistencies\n", humanize.Comma(int64(report.TotalInconsistencies)))
	if report.HasCriticalInconsistencies {
		return 1
	}
	return 0
}

// reloadFunc loads the freshest source again.
func reloadFunc(opts datasource.DiscoveryOptions) ui.Loader {
	return func() (*model.Table, string, error) {
		t, src, err := datasource.LoadSmart(opts)
		if err != nil {
			return nil, "", err
		}
		return t, src.Path, nil
	}
}

// startWatcher watches path, returning nil when watching is unavailable.
func startWatcher(ctx context.Context, path string) *watcher.Watcher {
	w, err := watcher.NewWatcher(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		return nil
	}
	if err := w.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		return nil
	}
	return w
}

func newTUIModel(cfg config.Config, dashOpts dashboard.Options, discovery datasource.DiscoveryOptions,
	t *model.Table, source string, w *watcher.Watcher, events []dashboard.Event) (ui.Model, error) {
	opts := ui.Options{
		Dashboard:     dashOpts,
		Source:        source,
		Loader:        reloadFunc(discovery),
		Watcher:       w,
		ExportDir:     cfg.Export.Dir,
		FrameInterval: cfg.FrameInterval(),
	}
	m, err := ui.NewModel(t, opts)
	if err != nil {
		return ui.Model{}, err
	}
	if err := applyEvents(m.Dashboard(), events); err != nil {
		return ui.Model{}, err
	}
	return m, nil
}

func runServer(ctx context.Context, cfg config.Config, dashOpts dashboard.Options, discovery datasource.DiscoveryOptions,
	t *model.Table, hash, source string) error {
	srv := server.New(t, hash, source, server.Options{
		Addr:          cfg.Server.Addr,
		FrameInterval: cfg.FrameInterval(),
		Dashboard:     dashOpts,
		Title:         pageTitle,
	})

	if cfg.Data.Watch {
		load := reloadFunc(discovery)
		w, err := watcher.NewWatcher(discovery.DataPath, watcher.WithOnChange(func() {
			next, src, err := load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
				return
			}
			srv.SetTable(next, datasource.Fingerprint(next), src)
		}), watcher.WithOnError(func(err error) {
			fmt.Fprintf(os.Stderr, "Watcher: %v\n", err)
		}))
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
		}
	}

	fmt.Printf("Serving %s records on http://%s\n", humanize.Comma(int64(t.Len())), cfg.Server.Addr)
	err := srv.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openDebugLog opens the TUI's debug log in the state directory, keeping log
// lines off the alternate screen.
func openDebugLog() (*os.File, error) {
	dir := config.StateDir()
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set MXMH_TUI_AUTOCLOSE_MS.
	if ms, ok := autoCloseAfter(os.Getenv("MXMH_TUI_AUTOCLOSE_MS")); ok {
		go func() {
			timer := time.NewTimer(ms)
			defer timer.Stop()

			select {
			case <-runDone:
				return
			case <-timer.C:
			}

			p.Quit()

			select {
			case <-runDone:
				return
			case <-time.After(2 * time.Second):
			}

			p.Kill()
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

func autoCloseAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
