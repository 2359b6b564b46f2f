package main

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

type serialSink struct {
	port serial.Port
}

// OpenSerial opens an Adalight controller on the named port at the given
// baud rate, 8N1.
func OpenSerial(name string, baud int) (Sink, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}
	return &serialSink{port: port}, nil
}

func (s *serialSink) Write(msg []byte) error {
	n, err := s.port.Write(msg)
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("serial write: %w", io.ErrShortWrite)
	}
	return nil
}

func (s *serialSink) Close() error {
	return s.port.Close()
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
