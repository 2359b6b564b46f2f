package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestModel_WaitsForFirstStatus(t *testing.T) {
	m := newModel(func() (Status, bool) { return Status{}, false })

	next, _ := m.Update(statusMsg{ok: false})
	assert.Contains(t, next.View(), "Starting capture")
}

func TestModel_RendersStatus(t *testing.T) {
	m := newModel(nil)
	next, cmd := m.Update(statusMsg{ok: true, status: Status{
		Method:     "FFmpeg",
		Colors:     []RGB{{255, 0, 0}, {0, 0, 255}},
		FPS:        20,
		CaptureErr: errors.New("capture access denied"),
		Writer:     WriterStats{Written: 7, Dropped: 1},
	}})
	assert.NotNil(t, cmd, "polling continues")

	view := next.View()
	assert.Contains(t, view, "FFmpeg")
	assert.Contains(t, view, "20.0 fps")
	assert.Contains(t, view, "7 written, 1 dropped")
	assert.Contains(t, view, "capture access denied")
	// average plus one swatch per LED
	assert.Equal(t, 6, strings.Count(view, "█"))
}

func TestModel_QuitKeys(t *testing.T) {
	m := newModel(nil)
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune("q")},
	} {
		_, cmd := m.Update(key)
		if assert.NotNil(t, cmd) {
			assert.Equal(t, tea.Quit(), cmd())
		}
	}
}

func TestAverageSwatch(t *testing.T) {
	assert.Equal(t, "#808080", averageSwatch([]RGB{{128, 128, 128}, {128, 128, 128}}).Hex())
	assert.Equal(t, "#ffffff", averageSwatch([]RGB{{255, 255, 255}}).Hex())
}
