package model

import (
	"strings"
	"time"
)

// NameFieldWidth is the fixed display width of the device name column.
// Shorter names are padded with trailing spaces. Longer names are kept
// as-is, which breaks column alignment — the driver caps names well
// below this in practice.
const NameFieldWidth = 22

// MiB is the divisor for the memory columns.
const MiB = 1024 * 1024

// DriverModel is the Windows driver operating mode of a device. TCC
// devices are compute-only; WDDM devices are display-capable. Unknown
// is reported when the query itself fails.
type DriverModel int

const (
	DriverModelUnknown DriverModel = iota
	DriverModelWDDM
	DriverModelTCC
)

func (d DriverModel) String() string {
	switch d {
	case DriverModelWDDM:
		return "WDDM"
	case DriverModelTCC:
		return "TCC"
	}
	return "N/A"
}

// MemoryInfo holds framebuffer usage in bytes.
type MemoryInfo struct {
	Used  uint64
	Total uint64
}

// UsedMiB returns used memory in mebibytes, truncated.
func (m MemoryInfo) UsedMiB() uint64 { return m.Used / MiB }

// TotalMiB returns total memory in mebibytes, truncated.
func (m MemoryInfo) TotalMiB() uint64 { return m.Total / MiB }

// Utilization holds GPU and memory-bandwidth utilization percentages.
type Utilization struct {
	GPU    uint32
	Memory uint32
}

// DeviceRecord holds one GPU's identity and last-fetched metrics.
// Index and Name are set once at initialization and never change; every
// other field is overwritten wholesale on each refresh.
type DeviceRecord struct {
	Index int
	Name  string

	Current DriverModel
	Pending DriverModel

	// Fan speed and power draw are not supported on all devices. When a
	// fetch fails the availability flag goes false and the value is
	// meaningless; the renderer shows N/A.
	FanSpeedPct  uint32
	FanAvailable bool

	PowerWatts     uint32
	PowerAvailable bool

	TemperatureC uint32
	Utilization  Utilization
	Memory       MemoryInfo
}

// Snapshot is a point-in-time view of every device, handed to renderers.
type Snapshot struct {
	Timestamp     time.Time
	DriverVersion string
	Devices       []DeviceRecord
}

// PadName pads a device name with trailing spaces to NameFieldWidth.
// Names at or over the width are returned unchanged.
func PadName(name string) string {
	if len(name) >= NameFieldWidth {
		return name
	}
	return name + strings.Repeat(" ", NameFieldWidth-len(name))
}
