package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gpuwatch/collector"
	"gpuwatch/engine"
	"gpuwatch/model"
)

// stubSource is the minimal Source needed to construct a manager for
// App tests; no device is ever opened.
type stubSource struct{}

func (stubSource) Name() string                                { return "stub" }
func (stubSource) Init() error                                 { return nil }
func (stubSource) Shutdown() error                             { return nil }
func (stubSource) DriverVersion() (string, error)              { return "580.65", nil }
func (stubSource) DeviceCount() (int, error)                   { return 0, nil }
func (stubSource) DeviceByIndex(int) (collector.Device, error) { return nil, nil }

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg(tea.Key{Type: tea.KeyRunes, Runes: []rune{r}})
}

func update(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(msg)
	next, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T, want App", m)
	}
	return next, cmd
}

// Exactly one tick→refresh chain may be live at a time: the manager is
// not safe for concurrent use. A pause that lands while a refresh
// command is in flight must stop the chain at the arriving refreshMsg,
// and only the unpause key may start a new one.
func TestPauseDuringInflightRefreshKeepsOneChain(t *testing.T) {
	mgr := engine.New(stubSource{})
	a := NewApp(mgr, time.Millisecond)

	// Tick fires and dispatches a refresh command.
	a, cmd := update(t, a, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick while running dispatched no refresh command")
	}

	// Pause before the refresh result arrives.
	a, _ = update(t, a, keyMsg('a'))
	if !a.paused {
		t.Fatal("pause key did not pause")
	}

	// The in-flight refresh lands. It must not schedule a tick: the
	// unpause key owns the restart.
	a, cmd = update(t, a, refreshMsg{snap: &model.Snapshot{}})
	if cmd != nil {
		t.Error("refreshMsg while paused scheduled a command")
	}

	// Unpause starts exactly one new chain.
	a, cmd = update(t, a, keyMsg('a'))
	if a.paused {
		t.Fatal("unpause key did not resume")
	}
	if cmd == nil {
		t.Error("unpause scheduled no tick")
	}

	// A running refresh result schedules the next tick as usual.
	_, cmd = update(t, a, refreshMsg{snap: &model.Snapshot{}})
	if cmd == nil {
		t.Error("refreshMsg while running scheduled no tick")
	}
}

func TestTickWhilePausedDoesNothing(t *testing.T) {
	a := NewApp(engine.New(stubSource{}), time.Millisecond)

	a, _ = update(t, a, keyMsg('a'))
	if !a.paused {
		t.Fatal("pause key did not pause")
	}

	// A stale tick from before the pause fires; no refresh may start.
	_, cmd := update(t, a, tickMsg(time.Now()))
	if cmd != nil {
		t.Error("tick while paused dispatched a command")
	}
}
