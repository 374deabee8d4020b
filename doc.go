// Package serial provides an interrupt-driven, line-oriented serial transport
// built around two fixed-size ring buffers, a periodic line assembler and a
// bounded message queue.
//
// The device raises a handler (the interrupt context) whenever it has a
// received byte or, while transmit notifications are armed, room for one
// more byte. The handler moves at most one byte out of the TX ring, drains
// the device into the RX ring and returns. Everything slower, such as
// assembling lines and queueing them, runs on a periodic trigger in task
// context.
//
// Features:
//   - Lock-free single-producer/single-consumer ring buffers
//   - Interrupt-driven or polled transmission, chosen at construction
//   - Lines terminated by \n or \r, truncated to the configured length
//   - Explicit drop policy for full RX ring, overlong lines and a full queue
//   - Pluggable receive policy (line assembly or diagnostic echo)
//   - Linux termios backend, portable tarm/serial backend, in-memory device
//   - PTY-based tests for the termios backend
//
// Example usage:
//
//	dev, err := serial.OpenTermios(serial.DeviceConfig{
//	    Path:     "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	t, err := serial.New(dev, serial.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := t.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	for {
//	    line, err := t.ReadLine(ctx)
//	    if err != nil {
//	        return
//	    }
//	    t.WriteString("Message:" + line + "\r\n")
//	}
package serial
