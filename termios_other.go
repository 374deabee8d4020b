//go:build !linux

package serial

import (
	"errors"
	"fmt"
)

var errNoTermios = errors.New("termios driver is only available on linux")

// TermiosDevice is unavailable on this platform; use the "port" driver.
type TermiosDevice struct{ Device }

func OpenTermios(cfg DeviceConfig) (*TermiosDevice, error) {
	return nil, fmt.Errorf("open %s: %w", cfg.Path, errNoTermios)
}

func (d *TermiosDevice) Close() error { return nil }
