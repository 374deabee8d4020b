package serial

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTxBufferSize = 100
	DefaultRxBufferSize = 100
	DefaultLineSize     = 32
	DefaultQueueDepth   = 10
	DefaultPeriod       = 100 * time.Millisecond
)

// Receive policies selectable by name.
const (
	PolicyLine = "line"
	PolicyEcho = "echo"
)

// Config holds the transport parameters. Zero values take the defaults above.
type Config struct {
	TxBufferSize int    `yaml:"tx_buffer"`
	RxBufferSize int    `yaml:"rx_buffer"`
	LineSize     int    `yaml:"line_size"` // includes the terminator slot
	QueueDepth   int    `yaml:"queue_depth"`
	PeriodMs     int    `yaml:"period_ms"`
	TxMode       TxMode `yaml:"tx_mode"`
	Policy       string `yaml:"policy"`

	// Echo writes accepted bytes back while assembling lines.
	Echo bool `yaml:"echo"`
	// KickOnReceive wakes the assembler from the interrupt handler instead of
	// waiting for the next tick.
	KickOnReceive bool `yaml:"kick_on_receive"`

	Device DeviceConfig `yaml:"device"`

	Logger    *slog.Logger `yaml:"-"`
	Indicator Indicator    `yaml:"-"`
	// NewPolicy overrides Policy with a custom receive policy.
	NewPolicy func(q *MessageQueue, w Transmitter) ReceivePolicy `yaml:"-"`
}

// DeviceConfig selects and parameterizes the device backend.
type DeviceConfig struct {
	Driver        string `yaml:"driver"` // "termios", "port" or "sim"
	Path          string `yaml:"path"`
	BaudRate      int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// Period returns the assembler trigger period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// LoadConfig reads a YAML file, applies defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills in defaults. It is allowed to mutate configuration.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.TxBufferSize == 0 {
		cfg.TxBufferSize = DefaultTxBufferSize
	}
	if cfg.RxBufferSize == 0 {
		cfg.RxBufferSize = DefaultRxBufferSize
	}
	if cfg.LineSize == 0 {
		cfg.LineSize = DefaultLineSize
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.PeriodMs == 0 {
		cfg.PeriodMs = int(DefaultPeriod / time.Millisecond)
	}
	if cfg.TxMode == "" {
		cfg.TxMode = TxInterrupt
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyLine
	}
	if cfg.Device.Driver == "" {
		cfg.Device.Driver = DriverTermios
	}
	if cfg.Device.BaudRate == 0 {
		cfg.Device.BaudRate = 115200
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Validate checks configuration correctness. It must not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.TxBufferSize < 1 {
		return fmt.Errorf("config: tx_buffer must be >= 1, got %d", cfg.TxBufferSize)
	}
	if cfg.RxBufferSize < 1 {
		return fmt.Errorf("config: rx_buffer must be >= 1, got %d", cfg.RxBufferSize)
	}
	if cfg.LineSize < 2 {
		return fmt.Errorf("config: line_size must be >= 2, got %d", cfg.LineSize)
	}
	if cfg.QueueDepth < 1 {
		return fmt.Errorf("config: queue_depth must be >= 1, got %d", cfg.QueueDepth)
	}
	if cfg.PeriodMs < 1 {
		return fmt.Errorf("config: period_ms must be >= 1, got %d", cfg.PeriodMs)
	}
	switch cfg.TxMode {
	case TxInterrupt, TxPolled:
	default:
		return fmt.Errorf("config: unknown tx_mode %q", cfg.TxMode)
	}
	switch cfg.Policy {
	case PolicyLine, PolicyEcho:
	default:
		return fmt.Errorf("config: unknown policy %q", cfg.Policy)
	}
	switch cfg.Device.Driver {
	case DriverTermios, DriverPort, DriverSim:
	default:
		return fmt.Errorf("config: unknown device driver %q", cfg.Device.Driver)
	}
	return nil
}
