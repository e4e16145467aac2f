package ui

import (
	"fmt"
	"strings"
	"time"

	"gpuwatch/model"
)

// Frame renders a snapshot as a fixed-width, 79-column text table: a
// timestamp line, a bordered header with driver version and device
// count, a column header, one row per device and a closing border. It
// is pure formatting: how the frame reaches the terminal (cursor-home
// overwrite in watch mode, bubbletea in interactive mode) is the
// caller's business.
func Frame(snap *model.Snapshot) string {
	var b strings.Builder

	b.WriteString(snap.Timestamp.Format(time.ANSIC))
	b.WriteByte('\n')
	b.WriteString(frameBorder)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "|             NVIDIA driver version: %-10s  Device count : %2d            |\n",
		clampVersion(snap.DriverVersion), len(snap.Devices))
	b.WriteString("|---------------------------------+---------------+---------------------------+\n")
	b.WriteString("| Idx    Name            TCC/WDDM | Memory-usage  | Temp   Fan   Power  Util  |\n")
	b.WriteString(frameBorder)
	b.WriteByte('\n')
	for i := range snap.Devices {
		b.WriteString(DeviceRow(&snap.Devices[i]))
		b.WriteByte('\n')
	}
	b.WriteString(frameBorder)
	b.WriteByte('\n')
	return b.String()
}

const frameBorder = "+-----------------------------------------------------------------------------+"

// versionFieldWidth is the driver-version column in the header line.
// Versions reported by the driver ("580.65.06") fit; anything longer
// is cut rather than allowed to push the right border out of column.
const versionFieldWidth = 10

func clampVersion(v string) string {
	if len(v) > versionFieldWidth {
		return v[:versionFieldWidth]
	}
	return v
}

// DeviceRow renders one table row. Memory is shown in mebibytes,
// truncated; fan and power show N/A when the device does not report
// them.
func DeviceRow(d *model.DeviceRecord) string {
	return fmt.Sprintf("| %2d %s  %-4s | %5d / %5d | %3dC %s   %s   %3d%% |",
		d.Index, d.Name, d.Current,
		d.Memory.UsedMiB(), d.Memory.TotalMiB(),
		d.TemperatureC, FanCell(d), PowerCell(d), d.Utilization.GPU)
}

// FanCell is the 5-character fan column: " 43%" style or " N/A ".
func FanCell(d *model.DeviceRecord) string {
	if !d.FanAvailable {
		return " N/A "
	}
	return fmt.Sprintf(" %3d%%", d.FanSpeedPct)
}

// PowerCell is the 5-character power column in whole watts, or " N/A ".
func PowerCell(d *model.DeviceRecord) string {
	if !d.PowerAvailable {
		return " N/A "
	}
	return fmt.Sprintf(" %3dW", d.PowerWatts)
}
