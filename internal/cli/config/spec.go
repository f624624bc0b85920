package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kubedash/kubedash-go/internal/storage"
	"github.com/kubedash/kubedash-go/internal/telemetry/tracer"
)

// Storage engines.
const (
	EngineBadger = "badger"
	EngineMemory = "memory"
)

// CLIConfig is the configuration for kubedash-cli.
type CLIConfig struct {
	// Server is the backend base URL used when no profile is active.
	Server string `koanf:"server" json:"server" yaml:"server"`
	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" json:"output" yaml:"output"`
	// Profile is the active connection profile.
	Profile string `koanf:"profile" json:"profile,omitempty" yaml:"profile,omitempty"`
	// Mock serves every request from the built-in fixture backend.
	Mock bool `koanf:"mock" json:"mock,omitempty" yaml:"mock,omitempty"`

	API     APIConfig     `koanf:"api" json:"api" yaml:"api"`
	Storage StorageConfig `koanf:"storage" json:"storage" yaml:"storage"`
	Auth    AuthConfig    `koanf:"auth" json:"auth" yaml:"auth"`
	Log     LogConfig     `koanf:"log" json:"log" yaml:"log"`
	Tracing tracer.Config `koanf:"tracing" json:"tracing" yaml:"tracing"`

	// Profiles are the saved connections, by name.
	Profiles map[string]Profile `koanf:"profiles" json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// APIConfig configures the request layer.
type APIConfig struct {
	Timeout  Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
	CacheTTL Duration `koanf:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`
	// RateLimit is the client-side limit in requests per second; 0 disables it.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `koanf:"burst" json:"burst" yaml:"burst"`
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile   string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	Insecure bool   `koanf:"insecure" json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	Dir    string `koanf:"dir" json:"dir" yaml:"dir"`
	Prefix string `koanf:"prefix" json:"prefix" yaml:"prefix"`
	// Passphrase enables at-rest encryption when set.
	Passphrase string `koanf:"passphrase" json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	// Engine is badger or memory.
	Engine string `koanf:"engine" json:"engine" yaml:"engine"`
}

// AuthConfig configures the session timers.
type AuthConfig struct {
	RefreshLead     Duration `koanf:"refresh_lead" json:"refresh_lead" yaml:"refresh_lead"`
	RefreshFallback Duration `koanf:"refresh_fallback" json:"refresh_fallback" yaml:"refresh_fallback"`
	SessionInterval Duration `koanf:"session_interval" json:"session_interval" yaml:"session_interval"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level   string `koanf:"level" json:"level" yaml:"level"`
	Format  string `koanf:"format" json:"format" yaml:"format"`
	Backend string `koanf:"backend" json:"backend" yaml:"backend"`
}

// Profile is a saved backend connection.
type Profile struct {
	Server string `koanf:"server" json:"server" yaml:"server"`
	Tenant string `koanf:"tenant" json:"tenant,omitempty" yaml:"tenant,omitempty"`
}

// Duration is a time.Duration written as "30s" in YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://localhost:8000/api",
		Output: "table",
		API: APIConfig{
			Timeout:   Duration(30 * time.Second),
			CacheTTL:  Duration(30 * time.Second),
			RateLimit: 20,
			Burst:     10,
		},
		Storage: StorageConfig{
			Dir:    DefaultDataDir(),
			Prefix: storage.DefaultPrefix,
			Engine: EngineBadger,
		},
		Auth: AuthConfig{
			RefreshLead:     Duration(5 * time.Minute),
			RefreshFallback: Duration(55 * time.Minute),
			SessionInterval: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level:   "warn",
			Format:  "text",
			Backend: "slog",
		},
		Tracing: tracer.Config{
			ServiceName: "kubedash-cli",
			SampleRatio: 1,
		},
		Profiles: make(map[string]Profile),
	}
}

// Validate checks the settings that would otherwise fail late.
func (c *CLIConfig) Validate() error {
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q (want table, json or yaml)", c.Output)
	}
	switch c.Storage.Engine {
	case EngineBadger, EngineMemory:
	default:
		return fmt.Errorf("invalid storage engine %q (want badger or memory)", c.Storage.Engine)
	}
	if !c.Mock {
		if err := ValidateServer(c.ServerURL()); err != nil {
			return err
		}
	}
	if c.API.Timeout < 0 || c.API.CacheTTL < 0 {
		return fmt.Errorf("api timeout and cache_ttl must not be negative")
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		return fmt.Errorf("api rate_limit and burst must not be negative")
	}
	if c.Profile != "" {
		if _, ok := c.Profiles[c.Profile]; !ok {
			return fmt.Errorf("active profile %q does not exist", c.Profile)
		}
	}
	return nil
}

// ServerURL returns the active profile's server, or Server.
func (c *CLIConfig) ServerURL() string {
	if p, ok := c.Profiles[c.Profile]; ok && p.Server != "" {
		return p.Server
	}
	return c.Server
}

// Redacted returns a copy safe to print.
func (c *CLIConfig) Redacted() *CLIConfig {
	cp := *c
	if cp.Storage.Passphrase != "" {
		cp.Storage.Passphrase = "********"
	}
	cp.Profiles = make(map[string]Profile, len(c.Profiles))
	for k, v := range c.Profiles {
		cp.Profiles[k] = v
	}
	return &cp
}

// ValidateServer checks that s is an absolute http(s) URL.
func ValidateServer(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", s, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q: want http(s)://host[:port][/path]", s)
	}
	return nil
}
