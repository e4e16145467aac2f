package collector

import (
	"errors"

	"gpuwatch/model"
)

// Source supplies device enumeration and per-device metric queries.
// Init acquires the underlying management session; Shutdown releases
// it. Callers must pair the two exactly once per session.
type Source interface {
	Name() string
	Init() error
	Shutdown() error
	DriverVersion() (string, error)
	DeviceCount() (int, error)
	DeviceByIndex(index int) (Device, error)
}

// Device is a handle to a single GPU. Every query can fail
// independently; failures carrying ErrNotSupported mean the metric does
// not exist on this device rather than a transient error.
type Device interface {
	Name() (string, error)
	DriverModel() (current, pending model.DriverModel, err error)
	FanSpeed() (uint32, error)
	PowerUsage() (uint32, error) // milliwatts
	Temperature() (uint32, error) // celsius
	UtilizationRates() (model.Utilization, error)
	MemoryInfo() (model.MemoryInfo, error)
}

// Classified initialization and query failures. Wrapped by the source
// implementations so callers can errors.Is on them.
var (
	ErrDriverNotLoaded = errors.New("driver not loaded")
	ErrNoPermission    = errors.New("no permission to talk to the driver")
	ErrNotSupported    = errors.New("not supported")
)
