//go:build linux

package serial

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// openPTYTransport opens a PTY pair, drives the slave side through a
// TermiosDevice and starts a transport on it.
func openPTYTransport(t *testing.T, cfg Config) (*os.File, *TermiosDevice, *Transport) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	dev, err := OpenTermios(DeviceConfig{
		Path:     slave.Name(),
		BaudRate: 115200,
	})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	if cfg.PeriodMs == 0 {
		cfg.PeriodMs = 5
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	tr, err := New(dev, cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Start())
	t.Cleanup(func() { tr.Close() })
	return master, dev, tr
}

// readN reads exactly n bytes from the master side or fails after timeout.
func readN(t *testing.T, master *os.File, n int, timeout time.Duration) string {
	t.Helper()
	got := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, n)
		if _, err := io.ReadFull(master, buf); err != nil {
			errs <- err
			return
		}
		got <- string(buf)
	}()
	select {
	case s := <-got:
		return s
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for master to receive from slave")
	}
	return ""
}

func TestTermios_ChatMasterSlave(t *testing.T) {
	master, _, tr := openPTYTransport(t, Config{})

	// 1. Master writes to slave, transport should deliver the line
	_, err := master.Write([]byte("ping\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	line, err := tr.ReadLine(ctx)
	require.NoError(t, err)
	require.Equal(t, "ping", line)

	// 2. Transport writes to master through the TX ring
	_, err = tr.WriteString("pong\r\n")
	require.NoError(t, err)
	require.Equal(t, "pong\r\n", readN(t, master, 6, time.Second))
	require.NoError(t, tr.Drain(ctx))
	require.False(t, tr.TxArmed())
}

func TestTermios_PolledWrite(t *testing.T) {
	master, _, tr := openPTYTransport(t, Config{TxMode: TxPolled})

	n, err := tr.WriteString("testline\r\n")
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, "testline\r\n", readN(t, master, 10, time.Second))
}

func TestTermios_CollapsesTerminators(t *testing.T) {
	master, _, tr := openPTYTransport(t, Config{KickOnReceive: true})

	_, err := master.Write([]byte("\r\r\none\r\ntwo\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range []string{"one", "two"} {
		line, err := tr.ReadLine(ctx)
		require.NoError(t, err)
		require.Equal(t, want, line)
	}
	_, ok := tr.TryReadLine()
	require.False(t, ok)
}

func TestTermios_Killability(t *testing.T) {
	_, dev, _ := openPTYTransport(t, Config{})

	require.True(t, dev.Ready())
	require.NoError(t, dev.Close())

	select {
	case <-dev.Done():
		t.Log("poll loop exited after Close")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for poll loop to exit after Close")
	}
	require.False(t, dev.Ready())
	require.NoError(t, dev.Err())

	// Should be a no-op due to closeOnce
	require.NoError(t, dev.Close())
}

func TestTermios_ErrorPropagation(t *testing.T) {
	master, dev, _ := openPTYTransport(t, Config{})

	// Simulate device disconnect by closing master
	require.NoError(t, master.Close())

	select {
	case <-dev.Done():
		require.Error(t, dev.Err())
		require.False(t, dev.Ready())
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}

func TestOpenTermios_MissingDevice(t *testing.T) {
	_, err := OpenTermios(DeviceConfig{Path: "/dev/does-not-exist-serial"})
	require.Error(t, err)
}

func TestTermios_WakesOnlyOnEnableChange(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	dev, err := OpenTermios(DeviceConfig{Path: slave.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	w0 := dev.wakes.Load()
	dev.DisableTxIRQ()
	dev.DisableRxIRQ()
	require.Equal(t, w0, dev.wakes.Load())

	dev.EnableRxIRQ()
	require.Equal(t, w0+1, dev.wakes.Load())
	dev.EnableRxIRQ()
	require.Equal(t, w0+1, dev.wakes.Load())
	dev.DisableRxIRQ()
	require.Equal(t, w0+2, dev.wakes.Load())
}

func TestTermios_ReceiveDoesNotWakePollLoop(t *testing.T) {
	master, dev, tr := openPTYTransport(t, Config{})
	w0 := dev.wakes.Load()

	_, err := master.Write([]byte("ping\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	line, err := tr.ReadLine(ctx)
	require.NoError(t, err)
	require.Equal(t, "ping", line)
	require.Equal(t, w0, dev.wakes.Load())
}
