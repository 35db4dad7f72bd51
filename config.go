package serial

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	DriverTermios = "termios"
	DriverBugst   = "bugst"
)

// Config describes a channel and the device behind it, as loaded from a
// YAML file by LoadConfig.
type Config struct {
	// Device is the path to the serial device, e.g. /dev/ttyUSB0.
	Device string `yaml:"device" json:"device" validate:"required"`
	// Driver selects the binding: "termios" (Linux only) or "bugst".
	Driver string `yaml:"driver" json:"driver" validate:"oneof=termios bugst"`

	Line LineConfig `yaml:"line" json:"line"`

	// TimeoutMillis is the channel read timeout.
	TimeoutMillis uint16 `yaml:"timeout_ms" json:"timeout_ms"`
	// LineEnding is appended by Println.
	LineEnding string `yaml:"line_ending" json:"line_ending"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig controls logger construction in the CLI.
type LogConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	// File, when set, receives logs through a rotating writer.
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" validate:"gte=0"`
}

// DefaultConfig returns 115200 8N1 on device with the default timeout.
func DefaultConfig(device string) Config {
	cfg := Config{
		Device:        device,
		Line:          DefaultLineConfig(115200),
		TimeoutMillis: DefaultTimeout,
		LineEnding:    "\n",
		Log:           LogConfig{Level: "info"},
	}
	cfg.Driver = defaultDriver()
	return cfg
}

func defaultDriver() string {
	if runtime.GOOS == "linux" {
		return DriverTermios
	}
	return DriverBugst
}

// LoadConfig reads a YAML config. Fields missing from the file keep the
// values of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates serial port configuration parameters
func ValidateConfig(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Driver == DriverTermios && runtime.GOOS != "linux" {
		return fmt.Errorf("%w: driver %q requires linux", ErrInvalidConfig, cfg.Driver)
	}
	return nil
}

// NewPeripheral returns the binding cfg.Driver names, unopened.
func NewPeripheral(cfg Config) (Peripheral, error) {
	switch cfg.Driver {
	case DriverTermios:
		return newTermiosPeripheral(cfg.Device)
	case DriverBugst:
		return NewBugstPort(cfg.Device), nil
	}
	return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, cfg.Driver)
}

// Open validates cfg, builds its peripheral and begins a channel on it.
func Open(cfg Config, opts ...Option) (*Channel, error) {
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	p, err := NewPeripheral(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.LineEnding != "" {
		opts = append([]Option{WithLineEnding([]byte(cfg.LineEnding))}, opts...)
	}
	ch := NewChannel(p, opts...)
	ch.SetTimeout(cfg.TimeoutMillis)
	if err := ch.BeginCustom(cfg.Line.BaudRate, cfg.Line.WordLength, cfg.Line.StopBits, cfg.Line.Parity); err != nil {
		return nil, err
	}
	return ch, nil
}
