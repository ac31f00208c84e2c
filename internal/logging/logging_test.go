package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddcrelight/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, want := range []string{"debug", "info", "warn", "error"} {
		level, err := ParseLevel(want)
		require.NoError(t, err)
		if got := LevelString(level); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	c := config.DefaultConfig().Logging
	c.Level = "debug"
	c.Format = "json"
	c.MaxSizeMB = 4

	cfg, err := FromConfig(c)
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, int64(4), cfg.MaxSizeMB)
	assert.Equal(t, "ddcrelight", cfg.Component)

	c.Level = "loud"
	_, err = FromConfig(c)
	assert.Error(t, err)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Writer:    &buf,
		Component: "test",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("brightness set", "target", 63)
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "brightness set", entry["msg"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, float64(63), entry["target"])
}

func TestPassContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	require.NoError(t, err)

	id := NewPassID()
	assert.Len(t, id, 8)

	ctx := ContextWithPass(context.Background(), id)
	assert.Equal(t, id, PassFromContext(ctx))
	assert.Equal(t, "", PassFromContext(context.Background()))
	//nolint:staticcheck
	assert.Equal(t, "", PassFromContext(nil))

	logger.WithContext(ctx).Info("pass done")
	assert.Contains(t, buf.String(), "pass="+id)

	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	require.NoError(t, err)

	logger.WithComponent("sensor").Warn("no reading")
	assert.Contains(t, buf.String(), "component=sensor")
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "ddcrelight.log")
	logger, err := New(&Config{
		Level:     LevelInfo,
		Output:    "file",
		FilePath:  logPath,
		MaxSizeMB: 1,
	})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Sync())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestFileRotatorRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 1023) + "\n")
	// Three megabytes of writes produce at least two rotations.
	for i := 0; i < 3*1024+1; i++ {
		n, err := rotator.Write(line)
		require.NoError(t, err)
		require.Equal(t, len(line), n)
	}
	require.NoError(t, rotator.Close())

	backups, err := rotator.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(1024*1024))
}

func TestFileRotatorCompress(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSizeMB:  1,
		MaxBackups: 5,
		Compress:   true,
	})
	require.NoError(t, err)

	line := []byte(strings.Repeat("y", 1023) + "\n")
	for i := 0; i < 1024+1; i++ {
		_, err := rotator.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, rotator.Close())

	backups, err := rotator.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasSuffix(backups[0], ".log.gz"), backups[0])
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Writer: &buf})
	require.NoError(t, err)
	derived := logger.WithComponent("daemon")

	derived.Debug("before")
	assert.NotContains(t, buf.String(), "before")

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, derived.Level())
	derived.Debug("after")
	assert.Contains(t, buf.String(), "msg=after")
}
