package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendCouchDB = "couchdb"
	BackendSQLite  = "sqlite"
)

// envPrefix prefixes every environment variable override.
const envPrefix = "STATESTORE_"

// minJWTSecretLength matches auth.MinSecretLength.
const minJWTSecretLength = 16

// Config is the root configuration structure for the state store.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	CouchDB  CouchDBConfig  `yaml:"couchdb"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StorageConfig selects the document store backend.
type StorageConfig struct {
	// Backend is "couchdb" or "sqlite".
	Backend string `yaml:"backend"`
}

// CouchDBConfig contains the CouchDB connection parameters.
//
// Username and Password are optional; null or empty means not configured.
type CouchDBConfig struct {
	Database string  `yaml:"database"`
	Host     string  `yaml:"host"`
	Port     int     `yaml:"port"`
	Username *string `yaml:"username"`
	Password *string `yaml:"password"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// SQLiteConfig contains the embedded document store settings.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains reconnection backoff settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// InfluxDBConfig contains InfluxDB connection settings for lookup telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig controls bearer token checks on state endpoints.
// An empty secret disables authentication.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STATESTORE_SECTION_KEY
// For example: STATESTORE_COUCHDB_HOST, STATESTORE_SQLITE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML data, then applies environment
// overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendCouchDB,
		},
		CouchDB: CouchDBConfig{
			Database: "state_storage",
			Host:     "127.0.0.1",
			Port:     5984,
			Timeout:  10,
		},
		SQLite: SQLiteConfig{
			Path:        "./data/statestore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "statestore",
			},
			QoS:         1,
			TopicPrefix: "statestore",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "statestore",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Storage
	if v := getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}

	// CouchDB
	if v := getenv("COUCHDB_DATABASE"); v != "" {
		cfg.CouchDB.Database = v
	}
	if v := getenv("COUCHDB_HOST"); v != "" {
		cfg.CouchDB.Host = v
	}
	if v := getenv("COUCHDB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCOUCHDB_PORT: %w", envPrefix, err)
		}
		cfg.CouchDB.Port = port
	}
	if v, ok := os.LookupEnv(envPrefix + "COUCHDB_USERNAME"); ok {
		cfg.CouchDB.Username = &v
	}
	if v, ok := os.LookupEnv(envPrefix + "COUCHDB_PASSWORD"); ok {
		cfg.CouchDB.Password = &v
	}

	// SQLite
	if v := getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}

	// MQTT
	if v := getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := getenv("API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := getenv("API_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// InfluxDB
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

func getenv(key string) string {
	return os.Getenv(envPrefix + key)
}

// normalise maps empty credentials to "not configured".
func (c *Config) normalise() {
	if c.CouchDB.Username != nil && *c.CouchDB.Username == "" {
		c.CouchDB.Username = nil
	}
	if c.CouchDB.Password != nil && *c.CouchDB.Password == "" {
		c.CouchDB.Password = nil
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Storage validation
	switch c.Storage.Backend {
	case BackendCouchDB:
		if c.CouchDB.Host == "" {
			errs = append(errs, "couchdb.host is required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, "sqlite.path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be %q or %q", BackendCouchDB, BackendSQLite))
	}

	// CouchDB validation
	if c.CouchDB.Database == "" {
		errs = append(errs, "couchdb.database is required")
	}
	if c.CouchDB.Port < 1 || c.CouchDB.Port > 65535 {
		errs = append(errs, "couchdb.port must be between 1 and 65535")
	}
	if c.CouchDB.Timeout < 0 {
		errs = append(errs, "couchdb.timeout must not be negative")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if strings.ContainsAny(c.MQTT.TopicPrefix, "+#") || c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and contain no wildcards")
		}
		if c.MQTT.Reconnect.InitialDelay < 0 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
			errs = append(errs, "mqtt.reconnect delays must be non-negative and max_delay >= initial_delay")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if s := c.API.Auth.JWTSecret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CouchDBTimeout returns the CouchDB request timeout as a Duration.
func (c *Config) CouchDBTimeout() time.Duration {
	return time.Duration(c.CouchDB.Timeout) * time.Second
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
