package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig mirrors the fields the teacher's USOCK opener hardcodes
// (8N1, no read timeout) but exposes device path and baud as knobs.
type SerialConfig struct {
	Device string
	Baud   int
}

// OpenSerial opens the physical link. Like the teacher's
// clearUARTAttributes/usock.New pair, it opens and closes the port
// once first to force a clean line state before the real open —
// some USB-serial adapters otherwise start mid-frame.
func OpenSerial(cfg SerialConfig) (Stream, error) {
	if err := clearAttributes(cfg.Device); err != nil {
		return nil, fmt.Errorf("transport: clear attributes: %w", err)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port: %w", err)
	}
	return port, nil
}

func clearAttributes(device string) error {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("open for attribute clear: %w", err)
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("close after attribute clear: %w", err)
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}
