package serial

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "serial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
device: /dev/ttyUSB0
driver: bugst
line:
  baud_rate: 9600
  word_length: 7
  stop_bits: "2"
  parity: even
timeout_ms: 250
line_ending: "\r\n"
log:
  level: debug
  file: /tmp/serial.log
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, DriverBugst, cfg.Driver)
	assert.Equal(t, LineConfig{BaudRate: 9600, WordLength: WordLength7, StopBits: StopBits2, Parity: ParityEven}, cfg.Line)
	assert.Equal(t, uint16(250), cfg.TimeoutMillis)
	assert.Equal(t, "\r\n", cfg.LineEnding)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/serial.log", cfg.Log.File)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "device: /dev/ttyS0\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLineConfig(115200), cfg.Line)
	assert.Equal(t, DefaultTimeout, cfg.TimeoutMillis)
	assert.Equal(t, "\n", cfg.LineEnding)
	if runtime.GOOS == "linux" {
		assert.Equal(t, DriverTermios, cfg.Driver)
	} else {
		assert.Equal(t, DriverBugst, cfg.Driver)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing device": "driver: bugst\n",
		"bad driver":     "device: /dev/ttyS0\ndriver: usb\n",
		"bad parity":     "device: /dev/ttyS0\nline:\n  parity: sometimes\n",
		"bad stop bits":  "device: /dev/ttyS0\nline:\n  stop_bits: \"3\"\n",
		"bad data bits":  "device: /dev/ttyS0\nline:\n  word_length: 9\n",
		"zero baud":      "device: /dev/ttyS0\nline:\n  baud_rate: 0\n",
		"bad log level":  "device: /dev/ttyS0\nlog:\n  level: loud\n",
		"not yaml":       "device: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParityText(t *testing.T) {
	for in, want := range map[string]Parity{
		"none": ParityNone, "N": ParityNone,
		"odd": ParityOdd, "o": ParityOdd,
		"Even": ParityEven, "E": ParityEven,
		"mark": ParityMark, "space": ParitySpace,
	} {
		var p Parity
		require.NoError(t, p.UnmarshalText([]byte(in)), in)
		require.Equal(t, want, p, in)
	}
	var p Parity
	require.ErrorIs(t, p.UnmarshalText([]byte("x")), ErrInvalidConfig)
	require.Equal(t, "even", ParityEven.String())
}

func TestStopBitsText(t *testing.T) {
	var sb StopBits
	require.NoError(t, sb.UnmarshalText([]byte("1.5")))
	require.Equal(t, StopBits1Half, sb)
	require.Equal(t, "1.5", sb.String())
	require.ErrorIs(t, sb.UnmarshalText([]byte("0")), ErrInvalidConfig)
}

func TestLineConfig_String(t *testing.T) {
	require.Equal(t, "115200 8N1", DefaultLineConfig(115200).String())
	lc := LineConfig{BaudRate: 9600, WordLength: WordLength7, StopBits: StopBits2, Parity: ParityEven}
	require.Equal(t, "9600 7E2", lc.String())
}

func TestLineConfig_YAMLInline(t *testing.T) {
	var lc LineConfig
	require.NoError(t, yaml.Unmarshal([]byte("{baud_rate: 57600, word_length: 8, stop_bits: 1, parity: O}"), &lc))
	require.Equal(t, LineConfig{BaudRate: 57600, WordLength: WordLength8, StopBits: StopBits1, Parity: ParityOdd}, lc)
	require.NoError(t, lc.Validate())
}

func TestNewPeripheral(t *testing.T) {
	cfg := DefaultConfig("/dev/null")
	cfg.Driver = DriverBugst
	p, err := NewPeripheral(cfg)
	require.NoError(t, err)
	require.IsType(t, &BugstPort{}, p)

	cfg.Driver = "usb"
	_, err = NewPeripheral(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
