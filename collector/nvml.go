package collector

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"gpuwatch/model"
)

// NVMLSource reads metrics through the NVML cgo bindings. The NVML
// session is process-global; Init and Shutdown guard against double
// acquisition and double release.
type NVMLSource struct {
	initialized bool
}

func NewNVML() *NVMLSource {
	return &NVMLSource{}
}

func (s *NVMLSource) Name() string { return "nvml" }

func (s *NVMLSource) Init() error {
	if s.initialized {
		return nil
	}
	switch ret := nvml.Init(); ret {
	case nvml.SUCCESS:
		s.initialized = true
		return nil
	case nvml.ERROR_DRIVER_NOT_LOADED:
		return fmt.Errorf("nvml init: %w", ErrDriverNotLoaded)
	case nvml.ERROR_NO_PERMISSION:
		return fmt.Errorf("nvml init: %w", ErrNoPermission)
	default:
		return fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
}

func (s *NVMLSource) Shutdown() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

func (s *NVMLSource) DriverVersion() (string, error) {
	ver, ret := nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", nvmlError("driver version", ret)
	}
	return ver, nil
}

func (s *NVMLSource) DeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, nvmlError("device count", ret)
	}
	return count, nil
}

func (s *NVMLSource) DeviceByIndex(index int) (Device, error) {
	dev, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, nvmlError(fmt.Sprintf("device handle index=%d", index), ret)
	}
	return nvmlDevice{dev: dev}, nil
}

type nvmlDevice struct {
	dev nvml.Device
}

func (d nvmlDevice) Name() (string, error) {
	name, ret := d.dev.GetName()
	if ret != nvml.SUCCESS {
		return "", nvmlError("name", ret)
	}
	return name, nil
}

func (d nvmlDevice) DriverModel() (model.DriverModel, model.DriverModel, error) {
	current, pending, ret := d.dev.GetDriverModel()
	if ret != nvml.SUCCESS {
		return model.DriverModelUnknown, model.DriverModelUnknown, nvmlError("driver model", ret)
	}
	return mapDriverModel(current), mapDriverModel(pending), nil
}

func (d nvmlDevice) FanSpeed() (uint32, error) {
	speed, ret := d.dev.GetFanSpeed()
	if ret != nvml.SUCCESS {
		return 0, nvmlError("fan speed", ret)
	}
	return speed, nil
}

func (d nvmlDevice) PowerUsage() (uint32, error) {
	mw, ret := d.dev.GetPowerUsage()
	if ret != nvml.SUCCESS {
		return 0, nvmlError("power usage", ret)
	}
	return mw, nil
}

func (d nvmlDevice) Temperature() (uint32, error) {
	temp, ret := d.dev.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, nvmlError("temperature", ret)
	}
	return temp, nil
}

func (d nvmlDevice) UtilizationRates() (model.Utilization, error) {
	util, ret := d.dev.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return model.Utilization{}, nvmlError("utilization", ret)
	}
	return model.Utilization{GPU: util.Gpu, Memory: util.Memory}, nil
}

func (d nvmlDevice) MemoryInfo() (model.MemoryInfo, error) {
	mem, ret := d.dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return model.MemoryInfo{}, nvmlError("memory info", ret)
	}
	return model.MemoryInfo{Used: mem.Used, Total: mem.Total}, nil
}

func mapDriverModel(dm nvml.DriverModel) model.DriverModel {
	switch dm {
	case nvml.DRIVER_WDDM:
		return model.DriverModelWDDM
	case nvml.DRIVER_WDM:
		// NVML calls TCC by its old WDM name.
		return model.DriverModelTCC
	}
	return model.DriverModelUnknown
}

func nvmlError(op string, ret nvml.Return) error {
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return fmt.Errorf("%s: %w", op, ErrNotSupported)
	}
	return fmt.Errorf("%s: %s", op, nvml.ErrorString(ret))
}
