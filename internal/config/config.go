// Package config loads the YAML-shaped static configuration: listener
// bindings, TLS material, the upstream host table, storage roots, and the
// manifest index's database settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// API holds listener configuration.
type API struct {
	Hostname     string `yaml:"hostname"`
	Port         string `yaml:"port"`
	Address      string `yaml:"address"`
	AddressIPv6  string `yaml:"address_ipv6"`
	PortIPv6     string `yaml:"port_ipv6"`
	TLSCert      string `yaml:"tls_cert"`
	TLSKey       string `yaml:"tls_key"`
}

// Upstream is one entry of the static host → {scheme, registry_hostport}
// table. Host is the inbound Host-header key; Registry + Schema build the
// outbound base URL.
type Upstream struct {
	Host     string `yaml:"host"`
	Registry string `yaml:"registry"`
	Port     string `yaml:"port"`
	Schema   string `yaml:"schema"`
}

// Mirror configures the optional off-path blob replication target.
// Supplemental to the core spec; left zero-valued to disable.
type Mirror struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// Storage configures the content-addressed blob tree root and its optional
// mirror.
type Storage struct {
	Folder string `yaml:"folder"`
	Mirror Mirror `yaml:"mirror"`
}

// DB configures the manifest index's backing store.
type DB struct {
	URI            string `yaml:"uri"`
	MaxConnections int    `yaml:"max_connections"`
}

// Log configures ambient logging. Supplemental: not part of the
// distilled spec, sourced from YAML the same way the teacher's
// LOG_LEVEL env var was, via parseLogLevel.
type Log struct {
	Level string `yaml:"level"`
}

// Config is the top-level, validated configuration value.
type Config struct {
	API     API      `yaml:"api"`
	Upstreams []Upstream `yaml:"upstreams"`
	Storage Storage  `yaml:"storage"`
	DB      DB       `yaml:"db"`
	Log     Log      `yaml:"log"`
}

// LoadFile reads and parses a YAML config file at path, filling defaults
// and validating required fields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a validated Config. Exposed separately from
// LoadFile so tests can exercise parsing without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == "" {
		c.API.Port = "8080"
	}
	if c.DB.MaxConnections == 0 {
		c.DB.MaxConnections = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.API.Hostname) == "" {
		return fmt.Errorf("config: api.hostname is required")
	}
	if c.Storage.Folder == "" {
		return fmt.Errorf("config: storage.folder is required")
	}
	for _, u := range c.Upstreams {
		if u.Host == "" {
			return fmt.Errorf("config: upstreams[].host must not be empty")
		}
	}
	return nil
}

// UsesTLS reports whether both certificate and key are configured.
func (c *Config) UsesTLS() bool {
	return c.API.TLSCert != "" && c.API.TLSKey != ""
}

// UsesMirror reports whether the optional S3 blob mirror is configured.
func (c *Config) UsesMirror() bool {
	return c.Storage.Mirror.Bucket != ""
}

// UpstreamTable builds the exact-match host → Upstream lookup used by the
// proxy to resolve a client's Host header.
func (c *Config) UpstreamTable() map[string]Upstream {
	table := make(map[string]Upstream, len(c.Upstreams))
	for _, u := range c.Upstreams {
		table[u.Host] = u
	}
	return table
}

// ParseLogLevel maps a config string to an slog.Level, defaulting to Info
// for an unrecognized value — matching the teacher's own parseLogLevel,
// now sourced from YAML instead of an environment variable.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
