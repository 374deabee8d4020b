package serial

import (
	"fmt"
	"io"
)

// Device drivers selectable from configuration.
const (
	DriverTermios = "termios"
	DriverPort    = "port"
	DriverSim     = "sim"
)

// OpenDevice opens the backend named by cfg.Driver. The returned closer
// releases the port; it is a no-op for the simulated device.
func OpenDevice(cfg DeviceConfig) (Device, io.Closer, error) {
	switch cfg.Driver {
	case DriverTermios, "":
		d, err := OpenTermios(cfg)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case DriverPort:
		d, err := OpenPort(cfg)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case DriverSim:
		return NewSimDevice(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown device driver %q", cfg.Driver)
	}
}
