package domain

// Storage keys used by the services. The storage prefix is applied on top.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyTenant      = "tenant"
	KeyPreferences = "preferences"
	KeyLastCommand = "last_command"
)

// Theme is the display theme preference.
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Preferences are the per-user display settings persisted in storage.
type Preferences struct {
	Theme           Theme `json:"theme" yaml:"theme"`
	AutoRefresh     bool  `json:"autoRefresh" yaml:"autoRefresh"`
	RefreshInterval int   `json:"refreshInterval" yaml:"refreshInterval"` // milliseconds
	Notifications   bool  `json:"notifications" yaml:"notifications"`
	CompactView     bool  `json:"compactView" yaml:"compactView"`
}

// DefaultPreferences returns the preferences applied before the user
// changes anything.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:           ThemeAuto,
		AutoRefresh:     true,
		RefreshInterval: 5000,
		Notifications:   true,
		CompactView:     false,
	}
}
