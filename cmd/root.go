package cmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gpuwatch/collector"
	"gpuwatch/engine"
	"gpuwatch/ui"
)

// Version is set at build time via ldflags.
var Version = "1.0.0"

func printUsage() {
	fmt.Fprintf(os.Stderr, `gpuwatch v%s — GPU telemetry table, refreshed in place

Usage:
  gpuwatch [OPTIONS] [INTERVAL]

Modes:
  (default)         Plain table, overwritten in place via cursor repositioning
  -tui              Interactive fullscreen mode (bubbletea)
  -json             Single JSON snapshot to stdout, then exit
  -version          Print version and exit

Options:
  -interval D       Refresh interval (default: 500ms)
  -count N          Frames to render before exiting (0 = until stopped)
  -source NAME      Metric source: nvml, smi (default: nvml)

Positional:
  INTERVAL          First positional arg sets interval: gpuwatch 2s

The table shows one row per device: index, name, driver model (TCC/WDDM),
memory used/total in MiB, temperature, fan speed, power draw and GPU
utilization. Fan and power show N/A on devices that do not report them.
The loop stops when a required metric (memory, temperature, utilization)
fails; gpuwatch then exits non-zero with the failure on stderr.
`, Version)
}

// Run parses flags and starts the application.
func Run() error {
	var (
		interval    time.Duration
		count       int
		tuiMode     bool
		jsonMode    bool
		source      string
		showVersion bool
	)

	flag.DurationVar(&interval, "interval", 500*time.Millisecond, "Refresh interval")
	flag.IntVar(&count, "count", 0, "Frames to render before exiting (0 = until stopped)")
	flag.BoolVar(&tuiMode, "tui", false, "Interactive fullscreen mode")
	flag.BoolVar(&jsonMode, "json", false, "Output a single JSON snapshot and exit")
	flag.StringVar(&source, "source", "nvml", "Metric source (nvml, smi)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("gpuwatch v%s\n", Version)
		return nil
	}

	// Support a positional interval: `gpuwatch 2s` = `gpuwatch -interval 2s`
	if args := flag.Args(); len(args) > 0 {
		d, err := parseInterval(args[0])
		if err != nil {
			return err
		}
		interval = d
	}

	var src collector.Source
	switch strings.ToLower(source) {
	case "nvml":
		src = collector.NewNVML()
	case "smi", "nvidia-smi":
		src = collector.NewSMI("")
	default:
		return fmt.Errorf("unknown source %q (valid: nvml, smi)", source)
	}

	mgr := engine.New(src)
	defer mgr.Close()

	if err := mgr.Init(); err != nil {
		return err
	}

	if jsonMode {
		return runJSON(mgr)
	}
	if tuiMode {
		return runTUI(mgr, interval)
	}
	return runWatch(mgr, watchConfig{Interval: interval, Count: count})
}

// parseInterval parses a positional interval argument. Unlike the
// -interval flag, which flag.Parse already rejects, a bad positional
// arg needs an explicit check.
func parseInterval(arg string) (time.Duration, error) {
	d, err := time.ParseDuration(arg)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid interval %q (want a positive duration like 500ms or 2s)", arg)
	}
	return d, nil
}

// runJSON outputs a single snapshot and exits.
func runJSON(mgr *engine.Manager) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(mgr.Snapshot())
}

// runTUI runs the fullscreen bubbletea mode. A fatal refresh error ends
// the program loop and is surfaced as the process exit status.
func runTUI(mgr *engine.Manager, interval time.Duration) error {
	p := tea.NewProgram(ui.NewApp(mgr, interval), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if app, ok := final.(ui.App); ok {
		return app.Err()
	}
	return nil
}
