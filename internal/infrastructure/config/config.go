package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearthview Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Stream     StreamConfig     `yaml:"stream"`
	Cache      CacheConfig      `yaml:"cache"`
	Categories []CategoryConfig `yaml:"categories"`
	Cameras    []CameraConfig   `yaml:"cameras"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	History    HistoryConfig    `yaml:"history"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// ControllerConfig contains connection settings for the remote smart-home
// controller's MCP endpoint.
type ControllerConfig struct {
	// BaseURL is the root URL of the controller (e.g. "http://controller.local:8787").
	// The SSE stream is opened at BaseURL + StreamPath; request POSTs go to the
	// endpoint path announced over the stream.
	BaseURL string `yaml:"base_url"`

	// StreamPath is the path of the SSE event stream. Default: "/sse".
	StreamPath string `yaml:"stream_path"`

	// Token is the bearer token attached to the stream GET and all request POSTs.
	// Always set via HEARTHVIEW_CONTROLLER_TOKEN in production.
	Token string `yaml:"token"`

	// RequestTimeout is the per-request deadline in seconds. Default: 10.
	RequestTimeout int `yaml:"request_timeout"`

	// EndpointGrace is how long to wait for the endpoint announcement after
	// the stream opens, in seconds. Default: 2.
	EndpointGrace int `yaml:"endpoint_grace"`
}

// StreamConfig contains reconnection and health monitoring settings for the
// long-lived event stream.
type StreamConfig struct {
	// BackoffInitial is the first retry delay in seconds. Default: 1.
	BackoffInitial int `yaml:"backoff_initial"`

	// BackoffMax caps the exponential retry delay, in seconds. Default: 30.
	BackoffMax int `yaml:"backoff_max"`

	// MaxAttempts is the number of consecutive failed connects before the
	// client backs off to the long cooldown. Default: 10.
	MaxAttempts int `yaml:"max_attempts"`

	// Cooldown is the long retry delay used after MaxAttempts failures,
	// in seconds. Default: 300.
	Cooldown int `yaml:"cooldown"`

	// WatchdogInterval is how often the staleness watchdog runs, in seconds.
	// Default: 30.
	WatchdogInterval int `yaml:"watchdog_interval"`

	// StalenessThreshold is the maximum stream inactivity age before the
	// watchdog forces a reconnect, in seconds. Default: 60.
	StalenessThreshold int `yaml:"staleness_threshold"`
}

// CacheConfig contains device cache polling settings.
type CacheConfig struct {
	// PollIntervalMs is the fixed delay between snapshot polls in
	// milliseconds. Default: 500.
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// CategoryConfig defines one dashboard category of the relevance filter.
// An entity belongs to a category when its domain is listed in Domains, or
// its device_class attribute is listed in DeviceClasses. Categories select
// by domain and device class, never by device name.
type CategoryConfig struct {
	Name          string   `yaml:"name"`
	Domains       []string `yaml:"domains"`
	DeviceClasses []string `yaml:"device_classes"`
}

// CameraConfig defines a camera whose stream is reverse-proxied by the API.
type CameraConfig struct {
	// Name is the URL-safe identifier used in /camera/{name}/stream.
	Name string `yaml:"name"`

	// StreamURL is the upstream MJPEG/HTTP stream URL.
	StreamURL string `yaml:"stream_url"`

	// Token is an optional bearer token injected into upstream requests.
	Token string `yaml:"token,omitempty"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// HistoryConfig contains state-history recorder settings.
// The recorder persists observed entity state transitions to SQLite so the
// dashboard can show recent activity. The live cache itself is memory-only.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// MaxEntries bounds the table size; the oldest rows past this count are
	// pruned opportunistically. Default: 10000.
	MaxEntries int `yaml:"max_entries"`
}

// MQTTConfig contains settings for the optional MQTT event publisher.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
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

// InfluxDBConfig contains settings for the optional poll-metrics writer.
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
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Operator OperatorConfig `yaml:"operator"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// OperatorConfig contains the single-operator login credentials.
// PasswordHash is an argon2id encoded hash, never a plaintext password.
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARTHVIEW_SECTION_KEY
// For example: HEARTHVIEW_CONTROLLER_TOKEN, HEARTHVIEW_API_HOST
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			StreamPath:     "/sse",
			RequestTimeout: 10,
			EndpointGrace:  2,
		},
		Stream: StreamConfig{
			BackoffInitial:     1,
			BackoffMax:         30,
			MaxAttempts:        10,
			Cooldown:           300,
			WatchdogInterval:   30,
			StalenessThreshold: 60,
		},
		Cache: CacheConfig{
			PollIntervalMs: 500,
		},
		Categories: DefaultCategories(),
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
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
		History: HistoryConfig{
			Enabled:     false,
			Path:        "./data/hearthview.db",
			WALMode:     true,
			BusyTimeout: 5,
			MaxEntries:  10000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hearthview-core",
			},
			QoS: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
			Operator: OperatorConfig{
				Username: "operator",
			},
		},
	}
}

// DefaultCategories returns the built-in dashboard categories.
// Deployments normally override these in config.yaml; the defaults cover the
// common dashboard groups.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{
			Name:          "security",
			Domains:       []string{"alarm_control_panel", "binary_sensor"},
			DeviceClasses: []string{"motion", "door", "window", "smoke"},
		},
		{
			Name:    "lights",
			Domains: []string{"light", "switch"},
		},
		{
			Name:          "climate",
			Domains:       []string{"climate", "fan", "sensor"},
			DeviceClasses: []string{"temperature", "humidity"},
		},
		{
			Name:    "media",
			Domains: []string{"media_player"},
		},
		{
			Name:          "doors",
			Domains:       []string{"lock", "cover"},
			DeviceClasses: []string{"garage", "gate"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARTHVIEW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Controller
	if v := os.Getenv("HEARTHVIEW_CONTROLLER_URL"); v != "" {
		cfg.Controller.BaseURL = v
	}
	if v := os.Getenv("HEARTHVIEW_CONTROLLER_TOKEN"); v != "" {
		cfg.Controller.Token = v
	}

	// API
	if v := os.Getenv("HEARTHVIEW_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// History database
	if v := os.Getenv("HEARTHVIEW_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// MQTT
	if v := os.Getenv("HEARTHVIEW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARTHVIEW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARTHVIEW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HEARTHVIEW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("HEARTHVIEW_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HEARTHVIEW_OPERATOR_PASSWORD_HASH"); v != "" {
		cfg.Security.Operator.PasswordHash = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Controller validation
	if c.Controller.BaseURL == "" {
		errs = append(errs, "controller.base_url is required (set HEARTHVIEW_CONTROLLER_URL environment variable)")
	}
	if c.Controller.Token == "" {
		errs = append(errs, "controller.token is required (set HEARTHVIEW_CONTROLLER_TOKEN environment variable)")
	}
	if c.Controller.RequestTimeout < 1 {
		errs = append(errs, "controller.request_timeout must be at least 1 second")
	}

	// Stream validation
	if c.Stream.BackoffInitial < 1 {
		errs = append(errs, "stream.backoff_initial must be at least 1 second")
	}
	if c.Stream.BackoffMax < c.Stream.BackoffInitial {
		errs = append(errs, "stream.backoff_max must be >= stream.backoff_initial")
	}
	if c.Stream.MaxAttempts < 1 {
		errs = append(errs, "stream.max_attempts must be at least 1")
	}

	// Cache validation
	const minPollIntervalMs = 100
	if c.Cache.PollIntervalMs < minPollIntervalMs {
		errs = append(errs, "cache.poll_interval_ms must be at least 100")
	}

	// Category validation
	for i, cat := range c.Categories {
		if cat.Name == "" {
			errs = append(errs, fmt.Sprintf("categories[%d].name is required", i))
		}
		if len(cat.Domains) == 0 && len(cat.DeviceClasses) == 0 {
			errs = append(errs, fmt.Sprintf("categories[%d] must list domains or device_classes", i))
		}
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED.
	// The API issues tokens that authorise physical device commands; a weak
	// secret would let an attacker forge tokens and operate locks and alarms.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HEARTHVIEW_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the per-request deadline as a Duration.
func (c *ControllerConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetEndpointGrace returns the endpoint discovery grace window as a Duration.
func (c *ControllerConfig) GetEndpointGrace() time.Duration {
	return time.Duration(c.EndpointGrace) * time.Second
}

// GetBackoffInitial returns the initial reconnect delay as a Duration.
func (s *StreamConfig) GetBackoffInitial() time.Duration {
	return time.Duration(s.BackoffInitial) * time.Second
}

// GetBackoffMax returns the reconnect delay ceiling as a Duration.
func (s *StreamConfig) GetBackoffMax() time.Duration {
	return time.Duration(s.BackoffMax) * time.Second
}

// GetCooldown returns the post-exhaustion cooldown as a Duration.
func (s *StreamConfig) GetCooldown() time.Duration {
	return time.Duration(s.Cooldown) * time.Second
}

// GetWatchdogInterval returns the watchdog tick interval as a Duration.
func (s *StreamConfig) GetWatchdogInterval() time.Duration {
	return time.Duration(s.WatchdogInterval) * time.Second
}

// GetStalenessThreshold returns the stream inactivity limit as a Duration.
func (s *StreamConfig) GetStalenessThreshold() time.Duration {
	return time.Duration(s.StalenessThreshold) * time.Second
}

// GetPollInterval returns the cache poll interval as a Duration.
func (c *CacheConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
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
