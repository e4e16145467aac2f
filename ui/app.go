package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gpuwatch/engine"
	"gpuwatch/model"
)

type tickMsg time.Time

type refreshMsg struct {
	snap *model.Snapshot
	err  error
}

// App is the bubbletea model for interactive mode. One refresh command
// is in flight at a time: a tick schedules a refresh, and the next tick
// is only scheduled once the refresh result arrives, so device state is
// never touched concurrently.
type App struct {
	mgr      *engine.Manager
	interval time.Duration

	snap   *model.Snapshot
	err    error
	paused bool

	width  int
	height int
}

func NewApp(mgr *engine.Manager, interval time.Duration) App {
	return App{
		mgr:      mgr,
		interval: interval,
		snap:     mgr.Snapshot(),
	}
}

// Err returns the fatal refresh error that ended the session, if any.
func (a App) Err() error { return a.err }

func (a App) Init() tea.Cmd {
	return tick(a.interval)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func refresh(mgr *engine.Manager) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Refresh()
		return refreshMsg{snap: mgr.Snapshot(), err: err}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "a":
			a.paused = !a.paused
			if !a.paused {
				return a, tick(a.interval)
			}
		}

	case tickMsg:
		if a.paused {
			return a, nil
		}
		return a, refresh(a.mgr)

	case refreshMsg:
		a.snap = msg.snap
		if msg.err != nil {
			a.err = msg.err
			return a, tea.Quit
		}
		if a.paused {
			// Pause landed while this refresh was in flight. Do not
			// schedule the next tick here: the unpause key restarts
			// the chain, and scheduling from both would leave two
			// concurrent tick→refresh chains racing on the manager.
			return a, nil
		}
		return a, tick(a.interval)
	}
	return a, nil
}

func (a App) View() string {
	if a.snap == nil {
		return "collecting...\n"
	}

	var b strings.Builder

	title := titleStyle.Render("gpuwatch")
	status := dimStyle.Render(fmt.Sprintf("driver %s · %d device(s) · %s",
		a.snap.DriverVersion, len(a.snap.Devices), a.interval))
	if a.paused {
		status += "  " + warnStyle.Render("PAUSED")
	}
	b.WriteString(title + "  " + status + "\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%3s  %-*s  %-4s  %13s  %5s  %5s  %5s  %5s",
		"Idx", model.NameFieldWidth, "Name", "Mode", "Memory MiB", "Temp", "Fan", "Power", "Util")))
	b.WriteByte('\n')

	for i := range a.snap.Devices {
		b.WriteString(styledRow(&a.snap.Devices[i]))
		b.WriteByte('\n')
	}

	b.WriteString("\n" + dimStyle.Render(a.snap.Timestamp.Format("15:04:05")+"  ·  q quit · a pause"))

	frame := panelStyle.Render(b.String())
	if a.width > 0 {
		return lipgloss.Place(a.width, lipgloss.Height(frame), lipgloss.Left, lipgloss.Top, frame)
	}
	return frame
}

func styledRow(d *model.DeviceRecord) string {
	fan := FanCell(d)
	if !d.FanAvailable {
		fan = dimStyle.Render(fan)
	}
	power := PowerCell(d)
	if !d.PowerAvailable {
		power = dimStyle.Render(power)
	}
	return fmt.Sprintf("%3d  %s  %-4s  %6d/%6d  %s  %s  %s  %s",
		d.Index,
		valueStyle.Render(d.Name),
		d.Current,
		d.Memory.UsedMiB(), d.Memory.TotalMiB(),
		tempStyle(d.TemperatureC).Render(fmt.Sprintf("%4dC", d.TemperatureC)),
		fan,
		power,
		utilStyle(d.Utilization.GPU).Render(fmt.Sprintf("%4d%%", d.Utilization.GPU)))
}
