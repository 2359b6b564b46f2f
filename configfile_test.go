package main

import (
	"os"
	"path/filepath"
	"testing"
)

func setupConfigDir(t *testing.T) {
	t.Helper()
	configDir = t.TempDir()
	t.Cleanup(func() { configDir = "" })
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	setupConfigDir(t)
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}

	want := DefaultConfig("/dev/ttyACM0")
	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Device != want.Device {
		t.Fatalf("device: got %+v, want %+v", got.Device, want.Device)
	}
	if len(got.LEDs) != len(want.LEDs) {
		t.Fatalf("got %d leds, want %d", len(got.LEDs), len(want.LEDs))
	}
	if got.Color.Smoothing != want.Color.Smoothing {
		t.Fatalf("smoothing: got %+v, want %+v", got.Color.Smoothing, want.Color.Smoothing)
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledsync.yaml")

	want := DefaultConfig("COM3")
	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Device.Output != "COM3" {
		t.Fatalf("got output %q, want COM3", got.Device.Output)
	}
	if got.LEDs[3] != want.LEDs[3] {
		t.Fatalf("leds[3]: got %+v, want %+v", got.LEDs[3], want.LEDs[3])
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	setupConfigDir(t)
	path, _ := DefaultConfigPath()

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for a missing config")
	}
}

func TestSaveDoesNotOverwrite(t *testing.T) {
	setupConfigDir(t)
	path, _ := DefaultConfigPath()

	if err := SaveConfig(path, DefaultConfig("a")); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := SaveConfig(path, DefaultConfig("b")); err == nil {
		t.Fatal("expected an error when the config exists")
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Device.Output != "a" {
		t.Fatalf("config was overwritten: output %q", got.Device.Output)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmp := t.TempDir()
	configDir = filepath.Join(tmp, "nested", "dir")
	t.Cleanup(func() { configDir = "" })

	path, _ := DefaultConfigPath()
	if err := SaveConfig(path, DefaultConfig("/dev/ttyUSB0")); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("file permissions: got %o, want 0600", info.Mode().Perm())
	}
}

func TestResolveConfigPath(t *testing.T) {
	setupConfigDir(t)

	got, err := ResolveConfigPath("custom.json")
	if err != nil || got != "custom.json" {
		t.Fatalf("explicit path: got %q, %v", got, err)
	}

	def, _ := DefaultConfigPath()
	got, err = ResolveConfigPath("")
	if err != nil {
		t.Fatalf("ResolveConfigPath: %v", err)
	}
	if got != def && got != hyperConFile {
		t.Fatalf("got %q, want %q or %q", got, def, hyperConFile)
	}
}
