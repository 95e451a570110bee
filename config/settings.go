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
	Guide    GuideSettings    `json:"guide"`
	Relays   RelaySettings    `json:"relays"`
	Sources  SourcesSettings  `json:"sources"`
	Database DatabaseSettings `json:"database"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// GuideSettings controls background guide refresh behavior.
type GuideSettings struct {
	Enabled              bool `json:"enabled"`
	RefreshIntervalHours int  `json:"refreshIntervalHours"`
	BatchSize            int  `json:"batchSize"`
	BatchPauseMillis     int  `json:"batchPauseMillis"`
	StaleAfterDays       int  `json:"staleAfterDays"`
	MinFuturePrograms    int  `json:"minFuturePrograms"` // below this, a schedule counts as running out
}

// RelaySettings configures the rotating relay pool used to reach upstream sites.
type RelaySettings struct {
	Endpoints      []string `json:"endpoints"` // URL templates with a %s slot for the escaped target URL
	TimeoutSeconds int      `json:"timeoutSeconds"`
	MaxPasses      int      `json:"maxPasses"`
	MinBodyBytes   int      `json:"minBodyBytes"`
	UserAgent      string   `json:"userAgent"`
}

// SourcesSettings points at the external channel mapping table and the
// upstream URL templates for the two guide providers.
type SourcesSettings struct {
	MappingFile          string `json:"mappingFile"`
	PrimaryURLTemplate   string `json:"primaryUrlTemplate"`   // %s slot for the channel's primary code
	SecondaryURLTemplate string `json:"secondaryUrlTemplate"` // %s slot for the channel's secondary slug
}

// DatabaseSettings defines durable cache storage configuration.
type DatabaseSettings struct {
	Path        string `json:"path"`        // sqlite database file
	FallbackDir string `json:"fallbackDir"` // file-per-key store used when sqlite is unavailable
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7878},
		Guide: GuideSettings{
			Enabled:              true,
			RefreshIntervalHours: 6,
			BatchSize:            3,
			BatchPauseMillis:     1500,
			StaleAfterDays:       30,
			MinFuturePrograms:    5,
		},
		Relays: RelaySettings{
			Endpoints:      []string{},
			TimeoutSeconds: 15,
			MaxPasses:      4,
			MinBodyBytes:   500,
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		Sources: SourcesSettings{
			MappingFile: "cache/channels.json",
		},
		Database: DatabaseSettings{
			Path:        "cache/guide.db",
			FallbackDir: "cache/kv",
		},
		Log: LogConfig{
			File:       "cache/logs/backend.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
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
	dec := json.NewDecoder(f)
	if err := dec.Decode(&s); err != nil {
		return Settings{}, err
	}

	// Clamp values a hand-edited config could break.
	if s.Guide.BatchSize < 1 {
		s.Guide.BatchSize = 1
	}
	if s.Guide.RefreshIntervalHours < 1 {
		s.Guide.RefreshIntervalHours = 6
	}
	if s.Relays.MaxPasses < 1 {
		s.Relays.MaxPasses = 1
	}
	if s.Relays.TimeoutSeconds < 1 {
		s.Relays.TimeoutSeconds = 15
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
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
	if err := f.Sync(); err != nil {
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
