package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxLEDs is the largest count the 16-bit Adalight header can announce.
const maxLEDs = 1 << 16

// Output device types.
const (
	DeviceAdalight = "adalight"
	DeviceSPI      = "spi"
	DeviceConsole  = "console"
)

// ErrInvalidConfig is returned for configurations that parse but cannot be
// run.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a HyperCon-style configuration document.
type Config struct {
	Device       DeviceConfig       `json:"device" yaml:"device"`
	Color        ColorConfig        `json:"color" yaml:"color"`
	LEDs         []Region           `json:"leds" yaml:"leds"`
	Framegrabber FramegrabberConfig `json:"framegrabber" yaml:"framegrabber"`
}

// DeviceConfig selects the LED output.
type DeviceConfig struct {
	// Type is "adalight" (default), "spi" or "console".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Output is the serial port (e.g. /dev/ttyACM0 or COM3) or the SPI port
	// name.
	Output string `json:"output" yaml:"output"`
	// Rate is the serial baud rate, or the SPI bit rate in Hz.
	Rate int `json:"rate" yaml:"rate"`
}

type ColorConfig struct {
	Transform []TransformConfig `json:"transform" yaml:"transform"`
	Smoothing SmoothingConfig   `json:"smoothing" yaml:"smoothing"`
}

// TransformConfig is one entry of color.transform. Absent sections are
// identity corrections.
type TransformConfig struct {
	LEDs  string             `json:"leds" yaml:"leds"`
	HSV   *HSVCorrection     `json:"hsv,omitempty" yaml:"hsv,omitempty"`
	Red   *ChannelCorrection `json:"red,omitempty" yaml:"red,omitempty"`
	Green *ChannelCorrection `json:"green,omitempty" yaml:"green,omitempty"`
	Blue  *ChannelCorrection `json:"blue,omitempty" yaml:"blue,omitempty"`
}

type SmoothingConfig struct {
	Type            string  `json:"type" yaml:"type"`
	TimeMs          int     `json:"time_ms" yaml:"time_ms"`
	UpdateFrequency float64 `json:"updateFrequency" yaml:"updateFrequency"`
}

// FramegrabberConfig sets the analysis resolution and capture rate. A zero
// width or height analyses at the captured size.
type FramegrabberConfig struct {
	Width       int     `json:"width" yaml:"width"`
	Height      int     `json:"height" yaml:"height"`
	FrequencyHz float64 `json:"frequency_Hz" yaml:"frequency_Hz"`
}

// UnmarshalJSON fills fields missing from the document with identity values.
func (c *ChannelCorrection) UnmarshalJSON(data []byte) error {
	*c = DefaultChannelCorrection
	type plain ChannelCorrection
	return json.Unmarshal(data, (*plain)(c))
}

func (c *ChannelCorrection) UnmarshalYAML(value *yaml.Node) error {
	*c = DefaultChannelCorrection
	type plain ChannelCorrection
	return value.Decode((*plain)(c))
}

func (c *HSVCorrection) UnmarshalJSON(data []byte) error {
	*c = HSVCorrection{SaturationGain: 1, ValueGain: 1}
	type plain HSVCorrection
	return json.Unmarshal(data, (*plain)(c))
}

func (c *HSVCorrection) UnmarshalYAML(value *yaml.Node) error {
	*c = HSVCorrection{SaturationGain: 1, ValueGain: 1}
	type plain HSVCorrection
	return value.Decode((*plain)(c))
}

// ParseConfig decodes a configuration document. name picks the format by
// extension: .yaml and .yml are YAML, anything else is JSON in which lines
// starting with // are comments.
func ParseConfig(name string, data []byte) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stripLineComments drops blank lines and lines whose first non-blank
// characters are //, as HyperCon writes them. Trailing comments are not
// supported.
func stripLineComments(data []byte) []byte {
	var b strings.Builder
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Validate checks everything the pipeline relies on.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Device.Type {
	case "", DeviceAdalight:
		if c.Device.Output == "" {
			return invalid("device.output is required")
		}
		if c.Device.Rate <= 0 {
			return invalid("device.rate must be positive, got %d", c.Device.Rate)
		}
	case DeviceSPI:
		if c.Device.Rate < 0 {
			return invalid("device.rate must not be negative, got %d", c.Device.Rate)
		}
	case DeviceConsole:
	default:
		return invalid("unknown device.type %q", c.Device.Type)
	}

	if len(c.LEDs) == 0 {
		return invalid("no leds configured")
	}
	if len(c.LEDs) > maxLEDs {
		return invalid("%d leds configured, at most %d supported", len(c.LEDs), maxLEDs)
	}
	for i, r := range c.LEDs {
		if err := validateAxis(r.HScan); err != nil {
			return invalid("leds[%d].hscan: %v", i, err)
		}
		if err := validateAxis(r.VScan); err != nil {
			return invalid("leds[%d].vscan: %v", i, err)
		}
	}

	for i, t := range c.Color.Transform {
		if t.HSV != nil && (t.HSV.SaturationGain < 0 || t.HSV.ValueGain < 0) {
			return invalid("color.transform[%d].hsv: gains must not be negative", i)
		}
	}

	if _, err := ParseSmoothingKind(c.Color.Smoothing.Type); err != nil {
		return invalid("color.smoothing.type: %v", err)
	}
	if c.Color.Smoothing.TimeMs < 0 {
		return invalid("color.smoothing.time_ms must not be negative")
	}
	if c.Color.Smoothing.UpdateFrequency <= 0 || c.Color.Smoothing.UpdateFrequency > maxFrequency {
		return invalid("color.smoothing.updateFrequency must be in (0, %g]", maxFrequency)
	}

	fg := c.Framegrabber
	if fg.Width < 0 || fg.Height < 0 {
		return invalid("framegrabber size %dx%d", fg.Width, fg.Height)
	}
	if fg.FrequencyHz <= 0 || fg.FrequencyHz > maxFrequency {
		return invalid("framegrabber.frequency_Hz must be in (0, %g]", maxFrequency)
	}
	return nil
}

func validateAxis(a AxisRange) error {
	if a.Minimum < 0 || a.Maximum > 1 {
		return fmt.Errorf("range [%g, %g] outside [0, 1]", a.Minimum, a.Maximum)
	}
	if a.Minimum > a.Maximum {
		return fmt.Errorf("minimum %g above maximum %g", a.Minimum, a.Maximum)
	}
	return nil
}

// Transforms converts the transform entries, in order.
func (c *Config) Transforms() []Transform {
	out := make([]Transform, 0, len(c.Color.Transform))
	for _, tc := range c.Color.Transform {
		t := Transform{LEDs: tc.LEDs, HSV: tc.HSV}
		if tc.Red != nil || tc.Green != nil || tc.Blue != nil {
			t.RGB = &RGBCorrection{
				Red:   channelOrDefault(tc.Red),
				Green: channelOrDefault(tc.Green),
				Blue:  channelOrDefault(tc.Blue),
			}
		}
		out = append(out, t)
	}
	return out
}

func channelOrDefault(c *ChannelCorrection) ChannelCorrection {
	if c == nil {
		return DefaultChannelCorrection
	}
	return *c
}

// Smoothing returns the smoothing policy and time constant. The config has
// been validated, so the kind parses.
func (c *Config) Smoothing() (SmoothingKind, time.Duration) {
	kind, _ := ParseSmoothingKind(c.Color.Smoothing.Type)
	return kind, time.Duration(c.Color.Smoothing.TimeMs) * time.Millisecond
}

// RefreshInterval is the period of the LED update loop.
func (c *Config) RefreshInterval() time.Duration {
	return hzToInterval(c.Color.Smoothing.UpdateFrequency)
}

// CaptureInterval is the period of the capture loop.
func (c *Config) CaptureInterval() time.Duration {
	return hzToInterval(c.Framegrabber.FrequencyHz)
}

// maxFrequency is the highest loop rate a config may ask for.
const maxFrequency = 1000.0

// hzToInterval never returns less than a nanosecond; tickers reject zero.
func hzToInterval(hz float64) time.Duration {
	return max(time.Duration(float64(time.Second)/hz), time.Nanosecond)
}

// NewPipeline builds the LED pipeline described by c.
func (c *Config) NewPipeline() *Pipeline {
	kind, tc := c.Smoothing()
	chains := BindTransforms(c.Transforms(), len(c.LEDs))
	return NewPipeline(c.LEDs, chains, NewAnalyzer(c.Framegrabber.Width, c.Framegrabber.Height), kind, tc)
}

// borderDepth is the fraction of the screen each generated border region
// reaches inwards.
const borderDepth = 0.1

// DefaultLayout generates regions around the screen edge, clockwise from
// the top-left corner: top LEDs along the top and bottom edges and side
// LEDs along the left and right ones.
func DefaultLayout(top, side int) []Region {
	regions := make([]Region, 0, 2*(top+side))
	span := func(i, n int) AxisRange {
		return AxisRange{Minimum: float32(i) / float32(n), Maximum: float32(i+1) / float32(n)}
	}
	near := AxisRange{Minimum: 0, Maximum: borderDepth}
	far := AxisRange{Minimum: 1 - borderDepth, Maximum: 1}

	for i := 0; i < top; i++ {
		regions = append(regions, Region{HScan: span(i, top), VScan: near})
	}
	for i := 0; i < side; i++ {
		regions = append(regions, Region{HScan: far, VScan: span(i, side)})
	}
	for i := top - 1; i >= 0; i-- {
		regions = append(regions, Region{HScan: span(i, top), VScan: far})
	}
	for i := side - 1; i >= 0; i-- {
		regions = append(regions, Region{HScan: near, VScan: span(i, side)})
	}
	return regions
}

// DefaultConfig returns a working configuration for an Adalight controller
// on output with a 16x9 border layout.
func DefaultConfig(output string) *Config {
	return &Config{
		Device: DeviceConfig{Type: DeviceAdalight, Output: output, Rate: 115200},
		Color: ColorConfig{
			Transform: []TransformConfig{{
				LEDs:  "*",
				HSV:   &HSVCorrection{SaturationGain: 1, ValueGain: 1},
				Red:   &ChannelCorrection{Threshold: 0, Gamma: 1, Blacklevel: 0, Whitelevel: 1},
				Green: &ChannelCorrection{Threshold: 0, Gamma: 1, Blacklevel: 0, Whitelevel: 1},
				Blue:  &ChannelCorrection{Threshold: 0, Gamma: 1, Blacklevel: 0, Whitelevel: 1},
			}},
			Smoothing: SmoothingConfig{Type: "linear", TimeMs: 200, UpdateFrequency: 20},
		},
		LEDs:         DefaultLayout(16, 9),
		Framegrabber: FramegrabberConfig{Width: defaultCaptureWidth, Height: defaultCaptureHeight, FrequencyHz: 10},
	}
}
