package connection

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kubedash/kubedash-go/internal/cli/config"
)

// Errors returned by Manager.
var (
	ErrProfileNotFound = errors.New("connection profile not found")
	ErrInvalidName     = errors.New("invalid profile name")
)

// Connection is a resolved backend connection.
type Connection struct {
	Name   string `json:"name" yaml:"name"`
	Server string `json:"server" yaml:"server"`
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	Active bool   `json:"active" yaml:"active"`
}

// Manager manages the saved connection profiles of a CLI config and
// persists every change.
type Manager struct {
	mu   sync.Mutex
	cfg  *config.CLIConfig
	path string
	save func(*config.CLIConfig, string) error
}

// NewManager creates a manager over cfg, saved to path.
func NewManager(cfg *config.CLIConfig, path string) *Manager {
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]config.Profile)
	}
	return &Manager{cfg: cfg, path: path, save: config.Save}
}

// Connect makes server the active backend. With a name the server is
// saved as a profile and the profile becomes active; without one the
// default server is replaced and no profile is active.
func (m *Manager) Connect(name, server string) (Connection, error) {
	server = NormalizeServer(server)
	if err := config.ValidateServer(server); err != nil {
		return Connection{}, err
	}
	if name != "" && !validName(name) {
		return Connection{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevProfile, prevServer := m.cfg.Profile, m.cfg.Server
	var prev *config.Profile
	if p, ok := m.cfg.Profiles[name]; ok {
		prev = &p
	}

	if name == "" {
		m.cfg.Server = server
		m.cfg.Profile = ""
	} else {
		p := m.cfg.Profiles[name]
		p.Server = server
		m.cfg.Profiles[name] = p
		m.cfg.Profile = name
	}

	if err := m.save(m.cfg, m.path); err != nil {
		m.cfg.Profile, m.cfg.Server = prevProfile, prevServer
		if name != "" {
			if prev != nil {
				m.cfg.Profiles[name] = *prev
			} else {
				delete(m.cfg.Profiles, name)
			}
		}
		return Connection{}, err
	}
	return m.currentLocked(), nil
}

// Use activates a saved profile.
func (m *Manager) Use(name string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cfg.Profiles[name]; !ok {
		return Connection{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	prev := m.cfg.Profile
	m.cfg.Profile = name
	if err := m.save(m.cfg, m.path); err != nil {
		m.cfg.Profile = prev
		return Connection{}, err
	}
	return m.currentLocked(), nil
}

// Disconnect deactivates the active profile. The profile stays saved.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Profile == "" {
		return nil
	}
	prev := m.cfg.Profile
	m.cfg.Profile = ""
	if err := m.save(m.cfg, m.path); err != nil {
		m.cfg.Profile = prev
		return err
	}
	return nil
}

// Remove deletes a saved profile, deactivating it if active.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.cfg.Profiles[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	prev := m.cfg.Profile
	delete(m.cfg.Profiles, name)
	if prev == name {
		m.cfg.Profile = ""
	}
	if err := m.save(m.cfg, m.path); err != nil {
		m.cfg.Profiles[name] = p
		m.cfg.Profile = prev
		return err
	}
	return nil
}

// SetTenant records the tenant last used with the active profile.
func (m *Manager) SetTenant(tenant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.cfg.Profiles[m.cfg.Profile]
	if !ok || p.Tenant == tenant {
		return nil
	}
	prev := p.Tenant
	p.Tenant = tenant
	m.cfg.Profiles[m.cfg.Profile] = p
	if err := m.save(m.cfg, m.path); err != nil {
		p.Tenant = prev
		m.cfg.Profiles[m.cfg.Profile] = p
		return err
	}
	return nil
}

// Current returns the active connection.
func (m *Manager) Current() Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *Manager) currentLocked() Connection {
	if p, ok := m.cfg.Profiles[m.cfg.Profile]; ok {
		return Connection{Name: m.cfg.Profile, Server: p.Server, Tenant: p.Tenant, Active: true}
	}
	return Connection{Server: m.cfg.Server}
}

// Profiles returns the saved profiles sorted by name.
func (m *Manager) Profiles() []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Connection, 0, len(m.cfg.Profiles))
	for name, p := range m.cfg.Profiles {
		out = append(out, Connection{
			Name:   name,
			Server: p.Server,
			Tenant: p.Tenant,
			Active: name == m.cfg.Profile,
		})
	}
	slices.SortFunc(out, func(a, b Connection) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// IsConnected reports whether a profile is active.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cfg.Profiles[m.cfg.Profile]
	return ok
}

func validName(name string) bool {
	if len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
