package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/luhtfiimanal/go-buffered-serial"
)

func parse(t *testing.T, args ...string) (options, map[string]bool) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o, set, err := parseFlags(fs, args)
	require.NoError(t, err)
	return o, set
}

func TestBuildConfig_Flags(t *testing.T) {
	o, set := parse(t, "-device", "/dev/ttyS3", "-driver", "bugst", "-baud", "9600",
		"-databits", "7", "-parity", "E", "-stopbits", "2", "-timeout", "250")
	cfg, err := buildConfig(o, set)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS3", cfg.Device)
	assert.Equal(t, serial.DriverBugst, cfg.Driver)
	assert.Equal(t, "9600 7E2", cfg.Line.String())
	assert.Equal(t, uint16(250), cfg.TimeoutMillis)
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "term.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device: /dev/ttyACM0
driver: bugst
line:
  baud_rate: 57600
timeout_ms: 100
`), 0o600))

	o, set := parse(t, "-config", path, "-baud", "19200")
	cfg, err := buildConfig(o, set)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, uint32(19200), cfg.Line.BaudRate)
	assert.Equal(t, uint16(100), cfg.TimeoutMillis)
}

func TestBuildConfig_Invalid(t *testing.T) {
	for name, args := range map[string][]string{
		"parity":   {"-parity", "Q"},
		"stopbits": {"-stopbits", "3"},
		"databits": {"-databits", "4"},
		"timeout":  {"-timeout", "70000"},
		"driver":   {"-driver", "usb"},
	} {
		t.Run(name, func(t *testing.T) {
			o, set := parse(t, args...)
			_, err := buildConfig(o, set)
			require.ErrorIs(t, err, serial.ErrInvalidConfig)
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serial.log")
	stderr, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	defer stderr.Close()

	logger, closer, err := newLogger(serial.LogConfig{Level: "debug", File: path, MaxSizeMB: 1}, stderr)
	require.NoError(t, err)
	logger.Debug().Str("device", "/dev/ttyS0").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "/dev/ttyS0", entry["device"])
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := newLogger(serial.LogConfig{Level: "loud"}, os.Stderr)
	require.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, serial.Stats{
		Line:          serial.DefaultLineConfig(9600),
		BytesReceived: 12,
		BytesDropped:  3,
	})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(12), got["bytes_received"])
	assert.Equal(t, float64(3), got["bytes_dropped"])
	line := got["line"].(map[string]any)
	assert.Equal(t, "none", line["parity"])
	assert.Equal(t, "1", line["stop_bits"])
}
