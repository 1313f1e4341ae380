package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Database DatabaseSettings `json:"database"`
	Metadata MetadataSettings `json:"metadata"`
	Auth     AuthSettings     `json:"auth"`
	List     ListSettings     `json:"list"`
	Cache    CacheSettings    `json:"cache"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseSettings defines where the sqlite database lives.
type DatabaseSettings struct {
	Path string `json:"path"`
}

type MetadataSettings struct {
	// TMDBAccessToken is the TMDB v4 read access token sent as a bearer header.
	TMDBAccessToken string `json:"tmdbAccessToken"`
	Language        string `json:"language"`
}

// AuthSettings controls session token signing and lifetime.
type AuthSettings struct {
	JWTSecret       string `json:"jwtSecret"`
	SessionTTLHours int    `json:"sessionTtlHours"`
	InviteTTLHours  int    `json:"inviteTtlHours"`
}

// ListMode selects the shared-list or per-user revision of the data model.
// The two revisions are explicit deployment-time configurations, not runtime
// variation.
type ListMode string

const (
	// ListModeShared keeps one list for everyone; only admins may mark items
	// complete.
	ListModeShared ListMode = "shared"
	// ListModePersonal scopes items to their owner; only the owner may mark
	// or remove their items.
	ListModePersonal ListMode = "personal"
)

type ListSettings struct {
	Mode ListMode `json:"mode"`
}

type CacheSettings struct {
	Directory string `json:"directory"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 8484},
		Database: DatabaseSettings{Path: filepath.Join("data", "cinelist.db")},
		Metadata: MetadataSettings{Language: "en-US"},
		Auth:     AuthSettings{SessionTTLHours: 24 * 7, InviteTTLHours: 72},
		List:     ListSettings{Mode: ListModeShared},
		Cache:    CacheSettings{Directory: "cache"},
		Log: LogConfig{
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
		},
	}
}

// Manager loads and persists Settings at a fixed path.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Load reads settings from disk, creating the file with defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	if s.List.Mode != ListModePersonal {
		s.List.Mode = ListModeShared
	}
	if s.Auth.SessionTTLHours <= 0 {
		s.Auth.SessionTTLHours = DefaultSettings().Auth.SessionTTLHours
	}
	if s.Auth.InviteTTLHours <= 0 {
		s.Auth.InviteTTLHours = DefaultSettings().Auth.InviteTTLHours
	}

	return s, nil
}

// Save writes settings to disk, creating parent directories as needed.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, m.path)
}
