package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const tuiLogFile = "ledsync.log"

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "config file (default ~/.ledsync/config.json)")
	flag.BoolVar(&opts.init, "init", false, "write a default config and exit")
	flag.StringVar(&opts.output, "output", "", "override device.output")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "log frames instead of writing to the device")
	flag.StringVar(&opts.method, "capture", MethodAuto, "capture method: auto | pipewire | ffmpeg | screenshot")
	flag.BoolVar(&opts.tui, "tui", false, "show a live status view")
	flag.StringVar(&opts.preview, "preview", "", "capture one frame, write the region layout to this PNG and exit")
	flag.BoolVar(&opts.listPorts, "list-ports", false, "list serial ports and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	var logOut io.Writer = os.Stderr
	if opts.tui {
		f, err := os.OpenFile(tuiLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.Kitchen, NoColor: opts.tui})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(opts); err != nil {
		log.Error().Err(err).Msg("exiting")
		if opts.tui {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	output     string
	method     string
	preview    string
	init       bool
	dryRun     bool
	tui        bool
	listPorts  bool
}

func run(opts options) error {
	if opts.listPorts {
		ports, err := ListSerialPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	path, err := ResolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}

	if opts.init {
		output := opts.output
		if output == "" {
			output = "/dev/ttyUSB0"
		}
		if err := SaveConfig(path, DefaultConfig(output)); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		log.Info().Str("path", path).Msg("default config written")
		return nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if opts.output != "" {
		cfg.Device.Output = opts.output
	}
	if opts.dryRun {
		cfg.Device.Type = DeviceConsole
	}
	log.Info().
		Str("config", path).
		Str("device", cfg.Device.Type).
		Str("output", cfg.Device.Output).
		Int("rate", cfg.Device.Rate).
		Int("leds", len(cfg.LEDs)).
		Msg("config loaded")

	openCapture := func() (Capturer, string, error) {
		return NewCapturer(opts.method, cfg.Framegrabber.Width, cfg.Framegrabber.Height)
	}

	if opts.preview != "" {
		return writePreview(opts.preview, cfg, openCapture)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(openCapture, cfg.NewPipeline(), NewWriter(sinkOpener(cfg)),
		cfg.CaptureInterval(), cfg.RefreshInterval())

	if !opts.tui {
		err := runner.Run(ctx)
		log.Info().Msg("stopped")
		return err
	}
	return runWithTUI(ctx, runner)
}

// sinkOpener returns the opener for the configured output device.
func sinkOpener(cfg *Config) SinkOpener {
	switch cfg.Device.Type {
	case DeviceSPI:
		return func() (Sink, error) { return OpenSPI(cfg.Device.Output, len(cfg.LEDs), cfg.Device.Rate) }
	case DeviceConsole:
		return func() (Sink, error) { return consoleSink{}, nil }
	default:
		return func() (Sink, error) { return OpenSerial(cfg.Device.Output, cfg.Device.Rate) }
	}
}

// runWithTUI runs the status view in the foreground. Quitting the view
// stops the runner.
func runWithTUI(ctx context.Context, runner *Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var latest atomic.Pointer[Status]
	runner.OnStatus(func(s Status) { latest.Store(&s) })
	poll := func() (Status, bool) {
		if s := latest.Load(); s != nil {
			return *s, true
		}
		return Status{}, false
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	p := tea.NewProgram(newModel(poll), tea.WithContext(ctx))
	_, uiErr := p.Run()
	cancel()
	err := <-done
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return errors.Join(err, uiErr)
	}
	return err
}

// writePreview grabs a frame and renders the configured regions over it.
func writePreview(path string, cfg *Config, open CaptureOpener) error {
	c, method, err := open()
	if err != nil {
		return err
	}
	defer c.Close()

	var f *Frame
	for deadline := time.Now().Add(firstFrameTimeout); ; {
		f, err = c.Capture()
		if err == nil || !errors.Is(err, ErrTimeout) || time.Now().After(deadline) {
			break
		}
		time.Sleep(cfg.CaptureInterval())
	}
	if err != nil {
		return fmt.Errorf("capturing preview frame: %w", err)
	}

	// Unsmoothed, so the preview shows the colors of this frame.
	analyzer := NewAnalyzer(cfg.Framegrabber.Width, cfg.Framegrabber.Height)
	p := NewPipeline(cfg.LEDs, BindTransforms(cfg.Transforms(), len(cfg.LEDs)), analyzer, SmoothingNone, 0)
	colors := p.Tick(f, 0)
	if err := WritePreview(path, RenderPreview(f, analyzer, cfg.LEDs, colors)); err != nil {
		return err
	}
	log.Info().Str("path", path).Str("method", method).Int("width", f.Width).Int("height", f.Height).Msg("preview written")
	return nil
}
