package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "KUBEDASH_"

// Loader merges configuration sources into one koanf tree and decodes
// it into a struct using koanf tags.
type Loader struct {
	k      *koanf.Koanf
	prefix string
	file   string
	dotenv string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.prefix = prefix }
}

// WithConfigFile names the YAML file to read. It may be missing.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.file = path }
}

// WithDotEnv names a .env file whose prefixed variables are read like
// environment variables. It may be missing.
func WithDotEnv(path string) Option {
	return func(l *Loader) { l.dotenv = path }
}

// NewLoader returns a loader with no sources read yet.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), prefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the YAML file, the .env file and the environment, later
// sources overriding earlier ones, and decodes the result over target.
// Fields of target absent from every source keep their value.
func (l *Loader) Load(target any) error {
	steps := []struct {
		what string
		fn   func() error
	}{
		{"config file", l.readFile},
		{"dotenv", l.readDotEnv},
		{"environment", l.readEnv},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("load %s: %w", s.what, err)
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Override merges dotted keys such as "api.timeout" on top of what Load
// read and decodes the result over target again.
func (l *Loader) Override(values map[string]any, target any) error {
	if len(values) == 0 {
		return nil
	}
	if err := l.k.Load(mapProvider(values), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("decode overrides: %w", err)
	}
	return nil
}

// String returns the merged value at a dotted key, or "".
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Exists reports whether any source set key.
func (l *Loader) Exists(key string) bool {
	return l.k.Exists(key)
}

func (l *Loader) readFile() error {
	if l.file == "" {
		return nil
	}
	err := l.k.Load(file.Provider(l.file), yaml.Parser())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// readDotEnv leaves the process environment untouched.
func (l *Loader) readDotEnv() error {
	if l.dotenv == "" {
		return nil
	}
	vars, err := godotenv.Read(l.dotenv)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	values := make(map[string]any, len(vars))
	for k, v := range vars {
		if strings.HasPrefix(k, l.prefix) {
			values[l.envKey(k)] = v
		}
	}
	return l.k.Load(mapProvider(values), nil)
}

func (l *Loader) readEnv() error {
	return l.k.Load(env.Provider(l.prefix, ".", l.envKey), nil)
}

// envKey maps KUBEDASH_STORAGE_DIR to storage.dir and
// KUBEDASH_API_CACHE_TTL to api.cache_ttl: only the first underscore
// after the prefix separates sections.
func (l *Loader) envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, l.prefix))
	section, rest, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + rest
}
