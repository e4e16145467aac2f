package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpuwatch/engine"
	"gpuwatch/ui"
)

type watchConfig struct {
	Interval time.Duration
	Count    int
}

const (
	clearScreen = "\033[2J"
	cursorHome  = "\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// runWatch is the plain poll loop: home the cursor, print the frame
// over the previous one, wait a tick, refresh. It ends when the manager
// goes invalid (error), the frame count is reached, or on interrupt.
func runWatch(mgr *engine.Manager, cfg watchConfig) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	fmt.Print(clearScreen, hideCursor)
	defer fmt.Print(showCursor)

	frames := 0
	for mgr.Valid() {
		fmt.Print(cursorHome)
		fmt.Print(ui.Frame(mgr.Snapshot()))

		frames++
		if cfg.Count > 0 && frames >= cfg.Count {
			fmt.Println()
			return nil
		}

		select {
		case <-sig:
			fmt.Println()
			return nil
		case <-ticker.C:
		}

		if err := mgr.Refresh(); err != nil {
			// The last rendered frame stays on screen; the failure
			// detail went to stderr and decides the exit status.
			fmt.Println()
			return err
		}
	}
	return nil
}
