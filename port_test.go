package serial

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenPort_MissingDevice(t *testing.T) {
	_, err := OpenPort(DeviceConfig{
		Path:     filepath.Join(t.TempDir(), "no-such-tty"),
		BaudRate: 115200,
	})
	require.Error(t, err)
}

func TestOpenDevice(t *testing.T) {
	dev, closer, err := OpenDevice(DeviceConfig{Driver: DriverSim})
	require.NoError(t, err)
	require.IsType(t, &SimDevice{}, dev)
	require.NoError(t, closer.Close())

	_, _, err = OpenDevice(DeviceConfig{Driver: "usb"})
	require.Error(t, err)

	_, _, err = OpenDevice(DeviceConfig{Driver: DriverPort, Path: filepath.Join(t.TempDir(), "none")})
	require.Error(t, err)
}
