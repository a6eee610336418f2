package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Protocol names accepted in hub.devices[].protocol.
const (
	ProtocolSerial = "serial"
	ProtocolMesh   = "mesh"
	ProtocolNet    = "net"
)

// Config is the root configuration structure for Gray Logic Hub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Mesh     MeshConfig     `yaml:"mesh"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Hub      HubConfig      `yaml:"hub"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is only dialled when mesh devices are configured.
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

// MeshConfig contains settings for the wireless mesh gateway.
type MeshConfig struct {
	// TopicPrefix is the gateway's MQTT topic root.
	// Default: "zwave"
	TopicPrefix string `yaml:"topic_prefix"`

	// GatewayID is the gateway client name used for API requests.
	// Default: "graylogic-hub"
	GatewayID string `yaml:"gateway_id"`

	// RequestTimeout bounds API requests and forced value refreshes.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is stdout, stderr or file.
	Output string            `yaml:"output"`
	File   LoggingFileConfig `yaml:"file"`
}

// LoggingFileConfig configures the rotating log file used when
// logging.output is "file".
type LoggingFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// HubConfig contains the device set and automation settings.
type HubConfig struct {
	// ScriptsDir is the root directory for run_system_command actions.
	ScriptsDir string `yaml:"scripts_dir"`

	// Devices is the static list of configured devices.
	Devices []DeviceConfig `yaml:"devices"`

	// SchedulerEnabled starts the per-minute scheduler loop.
	SchedulerEnabled bool `yaml:"scheduler_enabled"`

	// MonitorEnabled starts the per-minute monitor loop.
	MonitorEnabled bool `yaml:"monitor_enabled"`
}

// DeviceConfig describes one configured device.
// Exactly one of Serial, Mesh or Net must be set, matching Protocol.
type DeviceConfig struct {
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"display_name"`
	Protocol    string        `yaml:"protocol"`
	Enabled     bool          `yaml:"enabled"`
	Serial      *SerialConfig `yaml:"serial,omitempty"`
	Mesh        *MeshDevice   `yaml:"mesh,omitempty"`
	Net         *NetConfig    `yaml:"net,omitempty"`
}

// SerialConfig contains serial device parameters.
type SerialConfig struct {
	// Port is the device file prefix; a numeric suffix 0..127 is probed.
	// Example: "/dev/ttyACM"
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// MeshDevice contains mesh adapter parameters.
type MeshDevice struct {
	ConfigPath string `yaml:"config_path"`
	UserPath   string `yaml:"user_path"`
	Port       string `yaml:"port"`
}

// NetConfig contains remote agent parameters.
type NetConfig struct {
	URI string `yaml:"uri"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYHUB_SECTION_KEY
// For example: GRAYHUB_DATABASE_PATH, GRAYHUB_SCRIPTS_DIR
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
	applyDeviceDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Hub",
			Timezone: "Local",
		},
		Database: DatabaseConfig{
			Path:        "./data/grayhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-hub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Mesh: MeshConfig{
			TopicPrefix:    "zwave",
			GatewayID:      "graylogic-hub",
			RequestTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: LoggingFileConfig{
				Path:       "./data/grayhub.log",
				MaxSizeMB:  10,
				MaxBackups: 5,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Metrics: MetricsConfig{
			Listen: ":9102",
		},
		Hub: HubConfig{
			ScriptsDir:       "./scripts",
			SchedulerEnabled: true,
			MonitorEnabled:   true,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYHUB_SCRIPTS_DIR"); v != "" {
		cfg.Hub.ScriptsDir = v
	}

	if v := os.Getenv("GRAYHUB_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}
}

// applyDeviceDefaults fills per-device defaults that YAML cannot express.
func applyDeviceDefaults(cfg *Config) {
	const defaultBaud = 9600
	for i := range cfg.Hub.Devices {
		d := &cfg.Hub.Devices[i]
		if d.DisplayName == "" {
			d.DisplayName = d.Name
		}
		if d.Serial != nil && d.Serial.Baud == 0 {
			d.Serial.Baud = defaultBaud
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a known zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be stdout, stderr or file", c.Logging.Output))
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateDevices checks every hub.devices entry.
func (c *Config) validateDevices() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Hub.Devices))

	for i, d := range c.Hub.Devices {
		prefix := fmt.Sprintf("hub.devices[%d]", i)
		if d.Name == "" {
			errs = append(errs, prefix+".name is required")
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, d.Name))
		}
		seen[d.Name] = true

		switch d.Protocol {
		case ProtocolSerial:
			if d.Serial == nil || d.Serial.Port == "" {
				errs = append(errs, prefix+".serial.port is required for serial devices")
			}
		case ProtocolMesh:
			if d.Mesh == nil || d.Mesh.Port == "" {
				errs = append(errs, prefix+".mesh.port is required for mesh devices")
			}
		case ProtocolNet:
			if d.Net == nil || d.Net.URI == "" {
				errs = append(errs, prefix+".net.uri is required for net devices")
			}
		default:
			errs = append(errs, fmt.Sprintf("%s.protocol %q must be serial, mesh or net", prefix, d.Protocol))
		}
	}

	return errs
}

// Location resolves the site timezone used for recurrence arithmetic.
// "Local" and "" both mean the host's local zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Site.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Site.Timezone)
	}
}

// HasMeshDevices reports whether any configured device uses the mesh protocol.
func (c *Config) HasMeshDevices() bool {
	for _, d := range c.Hub.Devices {
		if d.Protocol == ProtocolMesh {
			return true
		}
	}
	return false
}
