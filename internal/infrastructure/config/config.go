package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the HCP bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Modbus    ModbusConfig    `yaml:"modbus"`
	Door      DoorConfig      `yaml:"door"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	HomeKit   HomeKitConfig   `yaml:"homekit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig identifies the bridge and sets its loop timing.
type BridgeConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	DoorID string `yaml:"door_id"`

	// TickInterval is the engine tick period in milliseconds.
	TickInterval int `yaml:"tick_interval_ms"`

	// PollInterval is how often state changes are published, in milliseconds.
	PollInterval int `yaml:"poll_interval_ms"`

	// HealthInterval is the health report period in seconds.
	HealthInterval int `yaml:"health_interval"`

	// HistoryRetention is how many days of door events to keep. 0 keeps all.
	HistoryRetention int `yaml:"history_retention_days"`
}

// ModbusConfig contains the RS-485 serial settings of the drive bus.
type ModbusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
	SlaveID  int    `yaml:"slave_id"`
	Timeout  int    `yaml:"timeout_ms"`
}

// DoorConfig overrides the register layout and decoding profile of the drive.
// Empty maps keep the built-in tables.
type DoorConfig struct {
	Registers         DoorRegisterConfig `yaml:"registers"`
	PositionFullScale int                `yaml:"position_full_scale"`
	LightMask         int                `yaml:"light_mask"`
	RelayMask         int                `yaml:"relay_mask"`
	MotionCodes       map[int]string     `yaml:"motion_codes"`
	RemoteCommands    map[int]string     `yaml:"remote_commands"`
	SeekTolerance     float64            `yaml:"seek_tolerance"`
	KeypressDelay     int                `yaml:"keypress_delay_ms"`
	DeadReportTimeout int                `yaml:"dead_report_timeout"`
}

// DoorRegisterConfig locates the modeled register blocks.
type DoorRegisterConfig struct {
	CommandBase int `yaml:"command_base"`
	Counter     int `yaml:"counter"`
	StatusBase  int `yaml:"status_base"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// Panel serves the built-in control page at "/". PanelDir overrides
	// the embedded copy with files on disk.
	Panel    bool   `yaml:"panel"`
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HomeKitConfig contains HomeKit accessory settings.
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Name        string `yaml:"name"`
	Pin         string `yaml:"pin"`
	Address     string `yaml:"address"`
	StoragePath string `yaml:"storage_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HCPBRIDGE_SECTION_KEY
// For example: HCPBRIDGE_MODBUS_DEVICE, HCPBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the reference drive's settings.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:               "hcp-bridge-01",
			Name:             "Garage",
			DoorID:           "garage-door",
			TickInterval:     50,
			PollInterval:     100,
			HealthInterval:   30,
			HistoryRetention: 30,
		},
		Modbus: ModbusConfig{
			Enabled:  true,
			Device:   "/dev/ttyUSB0",
			BaudRate: 57600,
			DataBits: 8,
			Parity:   "E",
			StopBits: 1,
			SlaveID:  2,
			Timeout:  500,
		},
		Door: DoorConfig{
			Registers: DoorRegisterConfig{
				CommandBase: 0x9CB9,
				Counter:     0x9C41,
				StatusBase:  0x9D31,
			},
			PositionFullScale: 200,
			LightMask:         0x10,
			RelayMask:         0x01,
			SeekTolerance:     2,
			KeypressDelay:     100,
			DeadReportTimeout: 60,
		},
		Database: DatabaseConfig{
			Path:        "./data/hcpbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hcpbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Panel:   true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		HomeKit: HomeKitConfig{
			Name:        "Garage Door",
			Pin:         "00102003",
			StoragePath: "./data/homekit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HCPBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HCPBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HCPBRIDGE_MODBUS_DEVICE"); v != "" {
		cfg.Modbus.Device = v
	}

	if v := os.Getenv("HCPBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HCPBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HCPBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HCPBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("HCPBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("HCPBRIDGE_HOMEKIT_PIN"); v != "" {
		cfg.HomeKit.Pin = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.DoorID == "" {
		errs = append(errs, "bridge.door_id is required")
	}
	if c.Bridge.TickInterval < 1 || c.Bridge.TickInterval > 50 {
		errs = append(errs, "bridge.tick_interval_ms must be between 1 and 50")
	}
	if c.Bridge.PollInterval < 1 {
		errs = append(errs, "bridge.poll_interval_ms must be positive")
	}

	errs = append(errs, c.Modbus.validate()...)
	errs = append(errs, c.Door.validate()...)

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.HomeKit.Enabled && !validHomeKitPin(c.HomeKit.Pin) {
		errs = append(errs, "homekit.pin must be 8 digits")
	}

	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (m ModbusConfig) validate() []string {
	if !m.Enabled {
		return nil
	}

	var errs []string
	if m.Device == "" {
		errs = append(errs, "modbus.device is required")
	}
	if m.BaudRate <= 0 {
		errs = append(errs, "modbus.baud_rate must be positive")
	}
	if m.DataBits != 7 && m.DataBits != 8 {
		errs = append(errs, "modbus.data_bits must be 7 or 8")
	}
	switch strings.ToUpper(m.Parity) {
	case "N", "E", "O":
	default:
		errs = append(errs, "modbus.parity must be N, E, or O")
	}
	if m.StopBits != 1 && m.StopBits != 2 {
		errs = append(errs, "modbus.stop_bits must be 1 or 2")
	}
	if m.SlaveID < 1 || m.SlaveID > 247 {
		errs = append(errs, "modbus.slave_id must be between 1 and 247")
	}
	if m.Timeout <= 0 {
		errs = append(errs, "modbus.timeout_ms must be positive")
	}
	return errs
}

func (d DoorConfig) validate() []string {
	var errs []string

	for name, addr := range map[string]int{
		"door.registers.command_base": d.Registers.CommandBase,
		"door.registers.counter":      d.Registers.Counter,
		"door.registers.status_base":  d.Registers.StatusBase,
	} {
		if addr < 0 || addr > 0xFFFF {
			errs = append(errs, name+" must be a 16-bit register address")
		}
	}
	if d.PositionFullScale < 1 || d.PositionFullScale > 255 {
		errs = append(errs, "door.position_full_scale must be between 1 and 255")
	}
	if d.LightMask < 0 || d.LightMask > 0xFF {
		errs = append(errs, "door.light_mask must fit in one byte")
	}
	if d.RelayMask < 0 || d.RelayMask > 0xFF {
		errs = append(errs, "door.relay_mask must fit in one byte")
	}
	for code := range d.MotionCodes {
		if code < 0 || code > 0xFF {
			errs = append(errs, fmt.Sprintf("door.motion_codes key %d must fit in one byte", code))
		}
	}
	for code := range d.RemoteCommands {
		if code < 0 || code > 0xFF {
			errs = append(errs, fmt.Sprintf("door.remote_commands key %d must fit in one byte", code))
		}
	}
	if d.KeypressDelay < 1 {
		errs = append(errs, "door.keypress_delay_ms must be positive")
	}
	if d.DeadReportTimeout < 1 {
		errs = append(errs, "door.dead_report_timeout must be positive")
	}
	return errs
}

func validHomeKitPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTickInterval returns the engine tick period.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Bridge.TickInterval) * time.Millisecond
}

// GetPollInterval returns the state publish poll period.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Bridge.PollInterval) * time.Millisecond
}

// GetHealthInterval returns the health report period.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetHistoryRetention returns how long door events are kept. Zero keeps all.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Bridge.HistoryRetention) * 24 * time.Hour
}

// GetModbusTimeout returns the serial read timeout.
func (c *Config) GetModbusTimeout() time.Duration {
	return time.Duration(c.Modbus.Timeout) * time.Millisecond
}

// GetKeypressDelay returns the minimum press duration.
func (d DoorConfig) GetKeypressDelay() time.Duration {
	return time.Duration(d.KeypressDelay) * time.Millisecond
}

// GetDeadReportTimeout returns the drive silence after which state is stale.
func (d DoorConfig) GetDeadReportTimeout() time.Duration {
	return time.Duration(d.DeadReportTimeout) * time.Second
}
