// Package config loads the client and peer-server settings from YAML. Every
// value has a default equal to the protocol's historical constants, so an
// empty file (or no file) yields the classic exchange against port 11000.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyberinferno/eofclient/framing"
	"github.com/cyberinferno/eofclient/logger"
)

// Defaults of the classic exchange.
const (
	DefaultPort              = 11000
	DefaultReceiveBufferSize = 256
	DefaultWaitTimeout       = 5 * time.Second
	DefaultStartupDelay      = 3 * time.Second
)

// DefaultMessages are the logical messages sent by a default exchange. They are
// framed with the terminator on the wire.
var DefaultMessages = []string{"This is a test", "Test 2", "Test 3"}

// Config holds the client exchange and peer server settings. Terminator frames
// every message in both directions: client sends, peer replies and the
// client's reassembly.
type Config struct {
	Endpoint          EndpointConfig `yaml:"endpoint"`
	Messages          []string       `yaml:"messages"`
	Terminator        string         `yaml:"terminator"`
	WaitTimeout       Duration       `yaml:"wait_timeout"`
	DialTimeout       Duration       `yaml:"dial_timeout"`
	ReceiveBufferSize int            `yaml:"receive_buffer_size"`
	StartupDelay      Duration       `yaml:"startup_delay"`
	Log               LogConfig      `yaml:"log"`
	Resolver          ResolverConfig `yaml:"resolver"`
	Server            ServerConfig   `yaml:"server"`
}

// EndpointConfig locates the peer the client connects to.
type EndpointConfig struct {
	Host string `yaml:"host"` // empty: this machine's own address
	Port int    `yaml:"port"`
}

// LogConfig maps onto logger.Options.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console/json
	Dir    string `yaml:"dir"`
}

// ResolverConfig selects how the endpoint host is resolved and cached.
type ResolverConfig struct {
	Cache string      `yaml:"cache"` // none/memory/redis
	TTL   Duration    `yaml:"ttl"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig is used when ResolverConfig.Cache is "redis".
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ServerConfig drives the peer server in cmd/eofserver.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ExpectMessages int    `yaml:"expect_messages"`
	Reply          string `yaml:"reply"`
}

// Duration is a time.Duration read from strings such as "5s" or "250ms".
type Duration struct{ time.Duration }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the configuration of the classic exchange.
func Default() *Config {
	return &Config{
		Endpoint:          EndpointConfig{Port: DefaultPort},
		Messages:          append([]string(nil), DefaultMessages...),
		Terminator:        framing.Terminator,
		WaitTimeout:       Duration{DefaultWaitTimeout},
		DialTimeout:       Duration{DefaultWaitTimeout},
		ReceiveBufferSize: DefaultReceiveBufferSize,
		StartupDelay:      Duration{DefaultStartupDelay},
		Log:               LogConfig{Level: "info", Format: "console"},
		Resolver: ResolverConfig{
			Cache: "none",
			TTL:   Duration{time.Minute},
			Redis: RedisConfig{Addr: "localhost:6379", KeyPrefix: "eofclient:resolve:"},
		},
		Server: ServerConfig{
			Addr:           fmt.Sprintf(":%d", DefaultPort),
			ExpectMessages: len(DefaultMessages),
			Reply:          "This is the server response",
		},
	}
}

// Load reads path and overlays it on Default. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every setting that cannot drive an exchange.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint.Port <= 0 || c.Endpoint.Port > 65535 {
		errs = append(errs, fmt.Errorf("endpoint.port %d out of range", c.Endpoint.Port))
	}
	if len(c.Messages) == 0 {
		errs = append(errs, errors.New("messages must not be empty"))
	}
	if c.Terminator == "" {
		errs = append(errs, errors.New("terminator must not be empty"))
	}
	for i, m := range c.Messages {
		if strings.Contains(m, c.Terminator) && c.Terminator != "" {
			errs = append(errs, fmt.Errorf("messages[%d] contains the terminator", i))
		}
	}
	if c.WaitTimeout.Duration <= 0 {
		errs = append(errs, errors.New("wait_timeout must be positive"))
	}
	if c.DialTimeout.Duration < 0 {
		errs = append(errs, errors.New("dial_timeout must not be negative"))
	}
	if c.ReceiveBufferSize < 1 {
		errs = append(errs, errors.New("receive_buffer_size must be at least 1"))
	}
	if c.StartupDelay.Duration < 0 {
		errs = append(errs, errors.New("startup_delay must not be negative"))
	}
	switch c.Resolver.Cache {
	case "", "none", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("resolver.cache %q unknown", c.Resolver.Cache))
	}
	if c.Terminator != "" && strings.Contains(c.Server.Reply, c.Terminator) {
		errs = append(errs, errors.New("server.reply contains the terminator"))
	}
	if c.Server.ExpectMessages < 1 {
		errs = append(errs, errors.New("server.expect_messages must be at least 1"))
	}

	return errors.Join(errs...)
}

// LoggerOptions maps the log section onto logger.Options for service.
func (c *Config) LoggerOptions(service string) logger.Options {
	return logger.Options{
		Service: service,
		Level:   c.Log.Level,
		Format:  c.Log.Format,
		Dir:     c.Log.Dir,
	}
}
