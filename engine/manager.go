package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gpuwatch/collector"
	"gpuwatch/model"
)

// Manager owns the device records and drives the per-tick refresh.
// It is not safe for concurrent use; the poll loop is strictly
// sequential by design.
type Manager struct {
	src collector.Source

	// Diag receives operator-facing diagnostics (init failures,
	// unsupported metrics). Defaults to stderr.
	Diag io.Writer

	driverVersion string
	devices       []model.DeviceRecord
	handles       []collector.Device
	valid         bool

	shutdown sync.Once
}

func New(src collector.Source) *Manager {
	return &Manager{src: src, Diag: os.Stderr}
}

// Init acquires the management session, enumerates devices and
// performs the first refresh of every record. On any failure the
// manager stays invalid. Close must still be called afterwards.
func (m *Manager) Init() error {
	if err := m.src.Init(); err != nil {
		switch {
		case errors.Is(err, collector.ErrDriverNotLoaded):
			fmt.Fprintf(m.Diag, "ERROR: the display driver is not running. Initialization failed.\n")
		case errors.Is(err, collector.ErrNoPermission):
			fmt.Fprintf(m.Diag, "ERROR: no permission to talk to the driver. Initialization failed.\n")
		default:
			fmt.Fprintf(m.Diag, "ERROR: unexpected error during initialization: %v\n", err)
		}
		return err
	}

	ver, err := m.src.DriverVersion()
	if err != nil {
		return fmt.Errorf("driver version: %w", err)
	}
	m.driverVersion = ver

	count, err := m.src.DeviceCount()
	if err != nil {
		return fmt.Errorf("device count: %w", err)
	}

	m.devices = make([]model.DeviceRecord, count)
	m.handles = make([]collector.Device, count)
	for i := 0; i < count; i++ {
		if err := m.initDevice(i); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}

	m.valid = true
	return nil
}

func (m *Manager) initDevice(index int) error {
	dev, err := m.src.DeviceByIndex(index)
	if err != nil {
		return err
	}

	name, err := dev.Name()
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}

	rec := &m.devices[index]
	rec.Index = index
	rec.Name = model.PadName(name)

	current, pending, err := dev.DriverModel()
	if err != nil {
		// Metadata only; the record keeps the Unknown state.
		fmt.Fprintf(m.Diag, "WARNING: device %d: could not obtain driver model: %v\n", index, err)
	} else {
		rec.Current = current
		rec.Pending = pending
	}

	m.handles[index] = dev
	if err := m.refreshDevice(rec, dev); err != nil {
		return err
	}
	if !rec.FanAvailable {
		fmt.Fprintf(m.Diag, "NOTE: device %d: fan speed not available\n", index)
	}
	if !rec.PowerAvailable {
		fmt.Fprintf(m.Diag, "NOTE: device %d: power draw not available\n", index)
	}
	return nil
}

// refreshDevice re-fetches every metric of one record in a fixed
// order. Fan speed and power draw failures are tolerated: the
// availability flag goes false and the refresh continues. Memory,
// temperature and utilization failures abort immediately, leaving the
// fields fetched earlier in this call in place.
func (m *Manager) refreshDevice(rec *model.DeviceRecord, dev collector.Device) error {
	if fan, err := dev.FanSpeed(); err != nil {
		rec.FanSpeedPct = 0
		rec.FanAvailable = false
	} else {
		rec.FanSpeedPct = fan
		rec.FanAvailable = true
	}

	mem, err := dev.MemoryInfo()
	if err != nil {
		return fmt.Errorf("memory info: %w", err)
	}
	rec.Memory = mem

	if mw, err := dev.PowerUsage(); err != nil {
		rec.PowerWatts = 0
		rec.PowerAvailable = false
	} else {
		// Milliwatts to whole watts, truncating.
		rec.PowerWatts = mw / 1000
		rec.PowerAvailable = true
	}

	temp, err := dev.Temperature()
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	rec.TemperatureC = temp

	util, err := dev.UtilizationRates()
	if err != nil {
		return fmt.Errorf("utilization: %w", err)
	}
	rec.Utilization = util

	return nil
}

// Refresh re-fetches every device in index order. The first fatal
// failure stops the iteration and invalidates the manager for good;
// devices after the failing one keep their previous values.
func (m *Manager) Refresh() error {
	if !m.valid {
		return errors.New("manager is invalid")
	}
	for i := range m.devices {
		if err := m.refreshDevice(&m.devices[i], m.handles[i]); err != nil {
			m.valid = false
			err = fmt.Errorf("device %d: %w", i, err)
			fmt.Fprintf(m.Diag, "ERROR: %v\n", err)
			return err
		}
	}
	return nil
}

// Valid reports whether the manager initialized and no fatal metric
// failure has occurred since. It never flips back to true.
func (m *Manager) Valid() bool { return m.valid }

// DriverVersion returns the version captured at initialization.
func (m *Manager) DriverVersion() string { return m.driverVersion }

// Snapshot copies the current device records for rendering.
func (m *Manager) Snapshot() *model.Snapshot {
	devices := make([]model.DeviceRecord, len(m.devices))
	copy(devices, m.devices)
	return &model.Snapshot{
		Timestamp:     time.Now(),
		DriverVersion: m.driverVersion,
		Devices:       devices,
	}
}

// Close releases the management session. Safe to call on every exit
// path; the underlying shutdown runs at most once.
func (m *Manager) Close() error {
	var err error
	m.shutdown.Do(func() {
		err = m.src.Shutdown()
	})
	return err
}
