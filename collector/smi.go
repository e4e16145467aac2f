package collector

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gpuwatch/model"
)

const smiQueryTimeout = 5 * time.Second

// SMISource reads metrics by shelling out to nvidia-smi. It exists for
// hosts where the cgo NVML bindings cannot be used; it is slower than
// NVML since every metric query is a separate process.
type SMISource struct {
	BinaryPath string
}

func NewSMI(binaryPath string) *SMISource {
	if strings.TrimSpace(binaryPath) == "" {
		binaryPath = "nvidia-smi"
	}
	return &SMISource{BinaryPath: binaryPath}
}

func (s *SMISource) Name() string { return "nvidia-smi" }

func (s *SMISource) Init() error {
	// A driver-version query doubles as the session probe.
	if _, err := s.query("driver_version", -1); err != nil {
		if _, lookErr := exec.LookPath(s.BinaryPath); lookErr != nil {
			return fmt.Errorf("nvidia-smi not found: %w", ErrDriverNotLoaded)
		}
		return fmt.Errorf("nvidia-smi probe: %w", err)
	}
	return nil
}

func (s *SMISource) Shutdown() error { return nil }

func (s *SMISource) DriverVersion() (string, error) {
	fields, err := s.query("driver_version", -1)
	if err != nil {
		return "", err
	}
	return fields[0], nil
}

func (s *SMISource) DeviceCount() (int, error) {
	fields, err := s.query("count", -1)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(fields[0])
}

func (s *SMISource) DeviceByIndex(index int) (Device, error) {
	// Probe the index so a bad one fails here, not on first query.
	if _, err := s.query("index", index); err != nil {
		return nil, fmt.Errorf("device index=%d: %w", index, err)
	}
	return &smiDevice{src: s, index: index}, nil
}

type smiDevice struct {
	src   *SMISource
	index int
}

func (d *smiDevice) Name() (string, error) {
	fields, err := d.src.query("name", d.index)
	if err != nil {
		return "", err
	}
	return fields[0], nil
}

func (d *smiDevice) DriverModel() (model.DriverModel, model.DriverModel, error) {
	fields, err := d.src.query("driver_model.current,driver_model.pending", d.index)
	if err != nil {
		return model.DriverModelUnknown, model.DriverModelUnknown, err
	}
	return parseDriverModel(fields[0]), parseDriverModel(fields[1]), nil
}

func (d *smiDevice) FanSpeed() (uint32, error) {
	fields, err := d.src.query("fan.speed", d.index)
	if err != nil {
		return 0, err
	}
	return parsePct(fields[0])
}

func (d *smiDevice) PowerUsage() (uint32, error) {
	fields, err := d.src.query("power.draw", d.index)
	if err != nil {
		return 0, err
	}
	// nvidia-smi reports watts with a fractional part; the Source
	// contract is milliwatts.
	w, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("power.draw %q: %w", fields[0], err)
	}
	return uint32(w * 1000), nil
}

func (d *smiDevice) Temperature() (uint32, error) {
	fields, err := d.src.query("temperature.gpu", d.index)
	if err != nil {
		return 0, err
	}
	return parsePct(fields[0])
}

func (d *smiDevice) UtilizationRates() (model.Utilization, error) {
	fields, err := d.src.query("utilization.gpu,utilization.memory", d.index)
	if err != nil {
		return model.Utilization{}, err
	}
	gpu, err := parsePct(fields[0])
	if err != nil {
		return model.Utilization{}, err
	}
	mem, err := parsePct(fields[1])
	if err != nil {
		return model.Utilization{}, err
	}
	return model.Utilization{GPU: gpu, Memory: mem}, nil
}

func (d *smiDevice) MemoryInfo() (model.MemoryInfo, error) {
	fields, err := d.src.query("memory.used,memory.total", d.index)
	if err != nil {
		return model.MemoryInfo{}, err
	}
	usedMiB, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return model.MemoryInfo{}, fmt.Errorf("memory.used %q: %w", fields[0], err)
	}
	totalMiB, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return model.MemoryInfo{}, fmt.Errorf("memory.total %q: %w", fields[1], err)
	}
	return model.MemoryInfo{Used: usedMiB * model.MiB, Total: totalMiB * model.MiB}, nil
}

// query runs one --query-gpu invocation and returns the fields of the
// first output row. index < 0 queries without -i (first device / system
// scope). Fields holding nvidia-smi's not-supported markers surface as
// ErrNotSupported.
func (s *SMISource) query(fields string, index int) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), smiQueryTimeout)
	defer cancel()

	args := []string{"--query-gpu=" + fields, "--format=csv,noheader,nounits"}
	if index >= 0 {
		args = append(args, "-i", strconv.Itoa(index))
	}

	cmd := exec.CommandContext(ctx, s.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		se := strings.TrimSpace(stderr.String())
		if se != "" {
			return nil, fmt.Errorf("nvidia-smi: %w: %s", err, se)
		}
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}

	row, err := splitCSVRow(out)
	if err != nil {
		return nil, err
	}
	want := strings.Count(fields, ",") + 1
	if len(row) < want {
		return nil, fmt.Errorf("nvidia-smi: short row %q for %q", row, fields)
	}
	return row, nil
}

func splitCSVRow(out []byte) ([]string, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return nil, fmt.Errorf("nvidia-smi: empty output")
	}
	cols := strings.Split(line, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
		if notSupportedField(cols[i]) {
			return nil, fmt.Errorf("field %d: %w", i, ErrNotSupported)
		}
	}
	return cols, nil
}

func notSupportedField(v string) bool {
	switch v {
	case "[N/A]", "[Not Supported]", "N/A":
		return true
	}
	return false
}

func parsePct(v string) (uint32, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", v, err)
	}
	return uint32(n), nil
}

func parseDriverModel(v string) model.DriverModel {
	switch v {
	case "WDDM":
		return model.DriverModelWDDM
	case "TCC":
		return model.DriverModelTCC
	}
	return model.DriverModelUnknown
}
