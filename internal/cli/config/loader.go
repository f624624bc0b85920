package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kubedash/kubedash-go/internal/infra/confloader"
)

// DefaultDir returns ~/.kubedash.
func DefaultDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".kubedash")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "cli.yaml")
}

// DefaultDataDir returns the default storage directory.
func DefaultDataDir() string {
	return filepath.Join(DefaultDir(), "data")
}

// Load builds the configuration from defaults, the YAML file at path, a
// .env file in the working directory, KUBEDASH_* environment variables
// and finally flags, each overriding the previous. flags holds dotted
// keys such as "storage.dir". A missing file is not an error.
func Load(path string, flags map[string]any) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithDotEnv(".env"),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := l.Override(flags, cfg); err != nil {
		return nil, fmt.Errorf("apply flags: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return cfg, nil
}

// Save writes cfg as YAML with mode 0600, creating the directory.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var setters = map[string]func(c *CLIConfig, v string) error{
	"server":                func(c *CLIConfig, v string) error { c.Server = v; return nil },
	"output":                func(c *CLIConfig, v string) error { c.Output = v; return nil },
	"mock":                  func(c *CLIConfig, v string) error { return setBool(&c.Mock, v) },
	"api.timeout":           func(c *CLIConfig, v string) error { return setDuration(&c.API.Timeout, v) },
	"api.cache_ttl":         func(c *CLIConfig, v string) error { return setDuration(&c.API.CacheTTL, v) },
	"api.rate_limit":        func(c *CLIConfig, v string) error { return setFloat(&c.API.RateLimit, v) },
	"api.burst":             func(c *CLIConfig, v string) error { return setInt(&c.API.Burst, v) },
	"api.ca_file":           func(c *CLIConfig, v string) error { c.API.CAFile = v; return nil },
	"api.insecure":          func(c *CLIConfig, v string) error { return setBool(&c.API.Insecure, v) },
	"storage.dir":           func(c *CLIConfig, v string) error { c.Storage.Dir = v; return nil },
	"storage.prefix":        func(c *CLIConfig, v string) error { c.Storage.Prefix = v; return nil },
	"storage.passphrase":    func(c *CLIConfig, v string) error { c.Storage.Passphrase = v; return nil },
	"storage.engine":        func(c *CLIConfig, v string) error { c.Storage.Engine = v; return nil },
	"auth.refresh_lead":     func(c *CLIConfig, v string) error { return setDuration(&c.Auth.RefreshLead, v) },
	"auth.refresh_fallback": func(c *CLIConfig, v string) error { return setDuration(&c.Auth.RefreshFallback, v) },
	"auth.session_interval": func(c *CLIConfig, v string) error { return setDuration(&c.Auth.SessionInterval, v) },
	"log.level":             func(c *CLIConfig, v string) error { c.Log.Level = v; return nil },
	"log.format":            func(c *CLIConfig, v string) error { c.Log.Format = v; return nil },
	"log.backend":           func(c *CLIConfig, v string) error { c.Log.Backend = v; return nil },
	"tracing.endpoint":      func(c *CLIConfig, v string) error { c.Tracing.Endpoint = v; return nil },
	"tracing.service_name":  func(c *CLIConfig, v string) error { c.Tracing.ServiceName = v; return nil },
	"tracing.sample_ratio":  func(c *CLIConfig, v string) error { return setFloat(&c.Tracing.SampleRatio, v) },
}

// Keys returns the keys accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Set assigns a single dotted key from its string form and validates
// the result. On error c is left unchanged.
func (c *CLIConfig) Set(key, value string) error {
	set, ok := setters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *c
	if err := set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setDuration(dst *Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = Duration(d)
	return nil
}
