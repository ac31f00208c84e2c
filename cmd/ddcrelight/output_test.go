package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"ddcrelight/internal/history"
	"ddcrelight/internal/journal"
)

func TestFormatLight(t *testing.T) {
	assert.Equal(t, "7.5", formatLight(7.5))
	assert.Equal(t, "10", formatLight(10))
	assert.Equal(t, "0.125", formatLight(0.125))
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, "newest", history.History{
		{Brightness: 50, Light: 5},
		{Brightness: 75, Light: 10.5},
		{Brightness: 100, Light: 20},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if assert.Len(t, lines, 2) {
		assert.Equal(t, []string{"newest", "brightness", "50", "75", "100"}, strings.Fields(lines[0]))
		assert.Equal(t, []string{"newest", "light", "5", "10.5", "20"}, strings.Fields(lines[1]))
		assert.Equal(t, len(lines[0]), len(lines[1]))
	}
}

func TestWriteStatus(t *testing.T) {
	updated := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	doc := history.NewDocument(updated)

	var buf bytes.Buffer
	writeStatus(&buf, doc, updated.Add(5*time.Minute), 15*time.Minute)
	assert.Contains(t, buf.String(), "(5m0s ago)")
	assert.Contains(t, buf.String(), "settles in 10m0s")
	assert.Contains(t, buf.String(), "stable brightness")

	buf.Reset()
	writeStatus(&buf, doc, updated.Add(20*time.Minute), 15*time.Minute)
	assert.Contains(t, buf.String(), "becomes stable on the next recording")
}

func TestWriteEntries(t *testing.T) {
	var buf bytes.Buffer
	writeEntries(&buf, nil)
	assert.Equal(t, "No observations recorded.\n", buf.String())

	buf.Reset()
	id := uuid.MustParse("6f1c1a52-8d1e-4b36-9d58-2b1f0c7c9e11")
	writeEntries(&buf, []journal.Entry{{
		ID:         id,
		RecordedAt: time.Now(),
		Light:      12.5,
		Brightness: 60,
		Promoted:   true,
	}})
	out := buf.String()
	assert.Contains(t, out, "BRIGHTNESS")
	assert.Contains(t, out, "12.5")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, id.String())
}

func TestWriteMonitors(t *testing.T) {
	var buf bytes.Buffer
	writeMonitors(&buf, []monitorReading{
		{ID: "ddcutil:1", Model: "DEL:DELL U2715H", Brightness: 40},
		{ID: "ddcutil:2", Err: errors.New("DDC busy")},
	})
	out := buf.String()
	assert.Contains(t, out, "MODEL")
	assert.Contains(t, out, "ddcutil:1  DEL:DELL U2715H  40%")
	assert.Contains(t, out, "ddcutil:2  -")
	assert.Contains(t, out, "error: DDC busy")
}
