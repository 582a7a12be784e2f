package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

// Config is the switcher configuration. Geometry values are in surface
// pixels; the renderer consumes them verbatim.
type Config struct {
	OverlayWidth    int `json:"overlay_width" yaml:"overlay_width" mapstructure:"overlay_width"`
	ItemHeight      int `json:"item_height" yaml:"item_height" mapstructure:"item_height"`
	Padding         int `json:"padding" yaml:"padding" mapstructure:"padding"`
	MaxVisibleItems int `json:"max_visible_items" yaml:"max_visible_items" mapstructure:"max_visible_items"`

	// ChordToleranceMs bounds the focus-lost-after-Alt-press window that is
	// still interpreted as an Alt-driven chord rather than a real focus loss.
	ChordToleranceMs int `json:"chord_tolerance_ms" yaml:"chord_tolerance_ms" mapstructure:"chord_tolerance_ms"`

	LogLevel  string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty bool   `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
}

// Manager loads the configuration and keeps it current across file edits.
type Manager struct {
	v          *viper.Viper
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a configuration manager. With an empty configFile the
// default search location $XDG_CONFIG_HOME/hyprswitcher/config.yaml is used;
// a missing file is not an error and yields the defaults.
func NewManager(configFile string) (*Manager, error) {
	log := logger.WithComponent("config")

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := defaultConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			log.Info().Msg("no config file found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	m := &Manager{v: v, configPath: v.ConfigFileUsed()}
	if err := m.reload(); err != nil {
		return nil, err
	}

	log.Info().
		Str("path", m.configPath).
		Str("log_level", m.Get().LogLevel).
		Msg("config loaded")
	return m, nil
}

// Watch reloads the config whenever the file changes on disk. Safe to call
// when no config file exists; it is then a no-op.
func (m *Manager) Watch() {
	if m.configPath == "" {
		return
	}
	log := logger.WithComponent("config")
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("config reload failed, keeping previous config")
			return
		}
		log.Info().Str("path", e.Name).Msg("config reloaded")
	})
	m.v.WatchConfig()
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// ConfigPath returns the path of the loaded config file, or "" when running
// on defaults.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

func (m *Manager) reload() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.OverlayWidth <= 0 {
		cfg.OverlayWidth = defaultOverlayWidth
	}
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = defaultItemHeight
	}
	if cfg.Padding < 0 {
		cfg.Padding = defaultPadding
	}
	if cfg.ChordToleranceMs <= 0 {
		cfg.ChordToleranceMs = defaultChordToleranceMs
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OverlayWidth:     defaultOverlayWidth,
		ItemHeight:       defaultItemHeight,
		Padding:          defaultPadding,
		MaxVisibleItems:  defaultMaxVisibleItems,
		ChordToleranceMs: defaultChordToleranceMs,
		LogLevel:         "info",
		LogPretty:        false,
	}
}

const (
	defaultOverlayWidth     = 600
	defaultItemHeight       = 40
	defaultPadding          = 10
	defaultMaxVisibleItems  = 10
	defaultChordToleranceMs = 500
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("overlay_width", defaultOverlayWidth)
	v.SetDefault("item_height", defaultItemHeight)
	v.SetDefault("padding", defaultPadding)
	v.SetDefault("max_visible_items", defaultMaxVisibleItems)
	v.SetDefault("chord_tolerance_ms", defaultChordToleranceMs)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

func defaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hyprswitcher"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "hyprswitcher"), nil
}
