package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hyperConSample = `// Automatically generated configuration file for 'Hyperion daemon'
// Generated by: HyperCon (The Hyperion deamon configuration file builder

{
	/// Device configuration contains the following fields:
	"device" :
	{
		"name"       : "MyPi",
		"type"       : "adalight",
		"output"     : "/dev/ttyACM0",
		"rate"       : 115200,
		"colorOrder" : "rgb"
	},

	"color" :
	{
		"transform" :
		[
			{
				"id"   : "default",
				"leds" : "*",
				"hsv" :
				{
					"saturationGain" : 1.5000,
					"valueGain"      : 1.0000
				},
				"red" :
				{
					"threshold"  : 0.0000,
					"gamma"      : 2.0000,
					"blacklevel" : 0.0000,
					"whitelevel" : 1.0000
				},
				"green" :
				{
					"threshold"  : 0.0000,
					"gamma"      : 2.0000,
					"blacklevel" : 0.0000,
					"whitelevel" : 1.0000
				},
				"blue" :
				{
					"threshold"  : 0.0000,
					"gamma"      : 2.0000,
					"blacklevel" : 0.0000,
					"whitelevel" : 1.0000
				}
			}
		],
		"smoothing" :
		{
			"type"            : "linear",
			"time_ms"         : 200,
			"updateFrequency" : 20.0000
		}
	},

	// The configuration for each individual led.
	"leds" :
	[
		{
			"index" : 0,
			"hscan" : { "minimum" : 0.5000, "maximum" : 0.5625 },
			"vscan" : { "minimum" : 0.0000, "maximum" : 0.0800 }
		},
		{
			"index" : 1,
			"hscan" : { "minimum" : 0.4375, "maximum" : 0.5000 },
			"vscan" : { "minimum" : 0.0000, "maximum" : 0.0800 }
		}
	],

	"framegrabber" :
	{
		"width" : 64,
		"height" : 64,
		"frequency_Hz" : 10.0
	}
}
`

func TestParseConfig_HyperCon(t *testing.T) {
	cfg, err := ParseConfig("hyperion.config.json", []byte(hyperConSample))
	require.NoError(t, err)

	assert.Equal(t, DeviceConfig{Type: "adalight", Output: "/dev/ttyACM0", Rate: 115200}, cfg.Device)
	require.Len(t, cfg.LEDs, 2)
	assert.Equal(t, Region{HScan: AxisRange{0.5, 0.5625}, VScan: AxisRange{0, 0.08}}, cfg.LEDs[0])
	assert.Equal(t, FramegrabberConfig{Width: 64, Height: 64, FrequencyHz: 10}, cfg.Framegrabber)

	kind, tc := cfg.Smoothing()
	assert.Equal(t, SmoothingLinear, kind)
	assert.Equal(t, 200*time.Millisecond, tc)
	assert.Equal(t, 50*time.Millisecond, cfg.RefreshInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.CaptureInterval())

	transforms := cfg.Transforms()
	require.Len(t, transforms, 1)
	assert.Equal(t, "*", transforms[0].LEDs)
	require.NotNil(t, transforms[0].RGB)
	assert.Equal(t, float32(2), transforms[0].RGB.Green.Gamma)
	require.NotNil(t, transforms[0].HSV)
	assert.Equal(t, float32(1.5), transforms[0].HSV.SaturationGain)
}

func TestParseConfig_CommentsOnlyAtLineStart(t *testing.T) {
	// An indented comment is still a whole-line comment.
	doc := "{\n   // device\n" + `"device": {"output": "x", "rate": 9600},
		"color": {"smoothing": {"type": "none", "updateFrequency": 10}},
		"leds": [{"hscan": {"minimum": 0, "maximum": 1}, "vscan": {"minimum": 0, "maximum": 1}}],
		"framegrabber": {"frequency_Hz": 10}
	}`
	_, err := ParseConfig("c.json", []byte(doc))
	require.NoError(t, err)

	_, err = ParseConfig("c.json", []byte(`{"device": {"output": "x", "rate": 9600} // trailing
	}`))
	assert.Error(t, err)
}

func TestParseConfig_PartialSectionsDefault(t *testing.T) {
	doc := `{
		"device": {"output": "/dev/ttyUSB0", "rate": 500000},
		"color": {
			"transform": [{"leds": "0-1", "red": {"gamma": 2.2}}, {"leds": "1", "hsv": {"valueGain": 0.5}}],
			"smoothing": {"type": "linear", "time_ms": 100, "updateFrequency": 30}
		},
		"leds": [
			{"hscan": {"minimum": 0, "maximum": 0.5}, "vscan": {"minimum": 0, "maximum": 1}},
			{"hscan": {"minimum": 0.5, "maximum": 1}, "vscan": {"minimum": 0, "maximum": 1}}
		],
		"framegrabber": {"width": 32, "height": 18, "frequency_Hz": 25}
	}`
	cfg, err := ParseConfig("c.json", []byte(doc))
	require.NoError(t, err)

	transforms := cfg.Transforms()
	require.Len(t, transforms, 2)
	require.NotNil(t, transforms[0].RGB)
	assert.Equal(t, ChannelCorrection{Gamma: 2.2, Whitelevel: 1}, transforms[0].RGB.Red)
	assert.True(t, transforms[0].RGB.Green.IsDefault())
	assert.True(t, transforms[0].RGB.Blue.IsDefault())
	assert.Nil(t, transforms[0].HSV)

	assert.Nil(t, transforms[1].RGB)
	assert.Equal(t, HSVCorrection{SaturationGain: 1, ValueGain: 0.5}, *transforms[1].HSV)
}

func TestParseConfig_YAML(t *testing.T) {
	doc := `
device:
  type: spi
color:
  transform:
    - leds: "*"
      hsv:
        saturationGain: 1.2
  smoothing:
    type: none
    updateFrequency: 60
leds:
  - hscan: {minimum: 0, maximum: 1}
    vscan: {minimum: 0.9, maximum: 1}
framegrabber:
  frequency_Hz: 30
`
	cfg, err := ParseConfig("ledsync.yml", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, DeviceSPI, cfg.Device.Type)
	require.Len(t, cfg.Color.Transform, 1)
	assert.Equal(t, HSVCorrection{SaturationGain: 1.2, ValueGain: 1}, *cfg.Color.Transform[0].HSV)
	assert.Equal(t, AxisRange{0.9, 1}, cfg.LEDs[0].VScan)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no leds", func(c *Config) { c.LEDs = nil }},
		{"too many leds", func(c *Config) { c.LEDs = make([]Region, maxLEDs+1) }},
		{"axis above one", func(c *Config) { c.LEDs[0].HScan.Maximum = 1.5 }},
		{"axis below zero", func(c *Config) { c.LEDs[2].VScan.Minimum = -0.1 }},
		{"reversed axis", func(c *Config) { c.LEDs[1].VScan = AxisRange{0.5, 0.4} }},
		{"unknown smoothing", func(c *Config) { c.Color.Smoothing.Type = "cubic" }},
		{"zero update frequency", func(c *Config) { c.Color.Smoothing.UpdateFrequency = 0 }},
		{"zero capture frequency", func(c *Config) { c.Framegrabber.FrequencyHz = 0 }},
		{"update frequency too high", func(c *Config) { c.Color.Smoothing.UpdateFrequency = 2e9 }},
		{"capture frequency too high", func(c *Config) { c.Framegrabber.FrequencyHz = 2e9 }},
		{"negative size", func(c *Config) { c.Framegrabber.Width = -1 }},
		{"missing output", func(c *Config) { c.Device.Output = "" }},
		{"zero baud", func(c *Config) { c.Device.Rate = 0 }},
		{"unknown device", func(c *Config) { c.Device.Type = "hue" }},
		{"negative gain", func(c *Config) { c.Color.Transform[0].HSV.ValueGain = -1 }},
	}

	require.NoError(t, DefaultConfig("/dev/ttyUSB0").Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig("/dev/ttyUSB0")
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestHzToInterval(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, hzToInterval(20))
	assert.Equal(t, time.Nanosecond, hzToInterval(2e9))
}

func TestConfigValidate_ConsoleNeedsNoOutput(t *testing.T) {
	c := DefaultConfig("")
	c.Device.Type = DeviceConsole
	c.Device.Rate = 0
	assert.NoError(t, c.Validate())
}

func TestDefaultLayout(t *testing.T) {
	regions := DefaultLayout(4, 2)
	require.Len(t, regions, 12)

	// Clockwise from the top-left corner.
	assert.Equal(t, Region{HScan: AxisRange{0, 0.25}, VScan: AxisRange{0, borderDepth}}, regions[0])
	assert.Equal(t, Region{HScan: AxisRange{0.75, 1}, VScan: AxisRange{0, borderDepth}}, regions[3])
	assert.Equal(t, Region{HScan: AxisRange{1 - borderDepth, 1}, VScan: AxisRange{0, 0.5}}, regions[4])
	assert.Equal(t, Region{HScan: AxisRange{0.75, 1}, VScan: AxisRange{1 - borderDepth, 1}}, regions[6])
	assert.Equal(t, Region{HScan: AxisRange{0, borderDepth}, VScan: AxisRange{0.5, 1}}, regions[10])
	assert.Equal(t, Region{HScan: AxisRange{0, borderDepth}, VScan: AxisRange{0, 0.5}}, regions[11])

	for i, r := range regions {
		assert.NoError(t, validateAxis(r.HScan), "region %d", i)
		assert.NoError(t, validateAxis(r.VScan), "region %d", i)
	}
}

func TestConfig_NewPipeline(t *testing.T) {
	c := DefaultConfig("/dev/null")
	c.Color.Smoothing.Type = "none"
	p := c.NewPipeline()
	require.Equal(t, 50, p.Len())

	got := p.Tick(uniformFrame(160, 90, RGB{30, 60, 90}), 50*time.Millisecond)
	for i, color := range got {
		assert.Equal(t, RGB{30, 60, 90}, color, "led %d", i)
	}
}
