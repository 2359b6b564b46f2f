package main

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// defaultSPIFreq is the NRZ bit rate for WS2812-class strips.
const defaultSPIFreq = 2500 * physic.KiloHertz

// spiSink drives a WS281x strip directly from an SPI port. The strip has no
// controller to parse Adalight framing, so only the color payload is sent.
type spiSink struct {
	port spi.PortCloser
	dev  *nrzled.Dev
	n    int
}

// OpenSPI opens the named SPI port ("" for the first one) for n LEDs.
// rate is the NRZ bit rate in Hz; zero selects the default.
func OpenSPI(name string, n, rate int) (Sink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host drivers: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening SPI port %q: %w", name, err)
	}
	s, err := newSPISink(port, n, rate)
	if err != nil {
		port.Close()
		return nil, err
	}
	s.port = port
	return s, nil
}

func newSPISink(conn spi.Port, n, rate int) (*spiSink, error) {
	freq := defaultSPIFreq
	if rate > 0 {
		freq = physic.Frequency(rate) * physic.Hertz
	}
	dev, err := nrzled.NewSPI(conn, &nrzled.Opts{
		NumPixels: n,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &spiSink{dev: dev, n: n}, nil
}

func (s *spiSink) Write(msg []byte) error {
	if len(msg) < adalightHeaderSize {
		return fmt.Errorf("short message: %d bytes", len(msg))
	}
	payload := msg[adalightHeaderSize:]
	if len(payload) != s.n*rgbSize {
		return fmt.Errorf("payload for %d LEDs, strip has %d", len(payload)/rgbSize, s.n)
	}
	if _, err := s.dev.Write(payload); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (s *spiSink) Close() error {
	err := s.dev.Halt()
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
