// Package configstore loads and persists the flat clawtypes.ConfigSnapshot
// that every other component reads at the start of an operation.
package configstore

import (
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/clawgate/clawgate/internal/clawtypes"
)

const configTOMLFileName = "config.toml"

const defaultFusionThreshold = 2

// defaultChatBundleID is Claude Desktop's macOS bundle identifier, the
// only chat application the ChatSurface adapter currently targets.
const defaultChatBundleID = "com.anthropic.claudefordesktop"

// ConfigStore owns the on-disk config.toml under a config directory and
// the in-memory snapshot every component reads via Current.
type ConfigStore struct {
	dir string

	mu      sync.RWMutex
	current clawtypes.ConfigSnapshot
}

// NewConfigStore returns a store rooted at dir. Call LoadOrInit before
// using Current or Save.
func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) path() string {
	return filepath.Join(s.dir, configTOMLFileName)
}

// LoadOrInit reads config.toml, migrating the legacy autonomous allow-list
// into Pane.SessionModes on the way in, or writes out defaults if no file
// exists yet. The resulting snapshot is cached for Current.
func (s *ConfigStore) LoadOrInit() (clawtypes.ConfigSnapshot, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return clawtypes.ConfigSnapshot{}, err
	}

	path := s.path()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		var cfg clawtypes.ConfigSnapshot
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return clawtypes.ConfigSnapshot{}, err
		}
		cfg = normalize(migrateLegacyAllowList(cfg))
		s.setCurrent(cfg)
		return cfg, nil
	case os.IsNotExist(err):
		cfg := normalize(clawtypes.ConfigSnapshot{})
		if err := writeTOMLAtomically(path, cfg); err != nil {
			return clawtypes.ConfigSnapshot{}, err
		}
		s.setCurrent(cfg)
		return cfg, nil
	default:
		return clawtypes.ConfigSnapshot{}, err
	}
}

// Save normalizes and persists cfg, and updates the cached snapshot.
func (s *ConfigStore) Save(cfg clawtypes.ConfigSnapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	cfg = normalize(cfg)
	if err := writeTOMLAtomically(s.path(), cfg); err != nil {
		return err
	}
	s.setCurrent(cfg)
	return nil
}

// Current returns a deep copy of the last loaded or saved snapshot.
func (s *ConfigStore) Current() clawtypes.ConfigSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *ConfigStore) setCurrent(cfg clawtypes.ConfigSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cfg.Clone()
}

// reload re-reads config.toml from disk and replaces Current, without
// migrating the legacy allow-list again (a hand-edited file moving a
// project back into the list is treated as deliberate, not legacy debt).
// Used by the fsnotify watch in watch.go.
func (s *ConfigStore) reload() error {
	b, err := os.ReadFile(s.path())
	if err != nil {
		return err
	}
	var cfg clawtypes.ConfigSnapshot
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return err
	}
	s.setCurrent(normalize(cfg))
	return nil
}

// migrateLegacyAllowList moves each LegacyAutonomousAllowList entry into
// Pane.SessionModes under every known session type, keyed by project name,
// with mode autonomous, then clears the legacy field.
func migrateLegacyAllowList(cfg clawtypes.ConfigSnapshot) clawtypes.ConfigSnapshot {
	if len(cfg.LegacyAutonomousAllowList) == 0 {
		return cfg
	}
	if cfg.Pane.SessionModes == nil {
		cfg.Pane.SessionModes = make(map[string]clawtypes.SessionMode)
	}
	for _, project := range cfg.LegacyAutonomousAllowList {
		for _, sessionType := range []clawtypes.SessionType{
			clawtypes.SessionTypeClaudeCode,
			clawtypes.SessionTypeCodex,
		} {
			key := clawtypes.SessionModeMapKey(sessionType, project)
			if _, exists := cfg.Pane.SessionModes[key]; !exists {
				cfg.Pane.SessionModes[key] = clawtypes.SessionModeAutonomous
			}
		}
	}
	cfg.LegacyAutonomousAllowList = nil
	return cfg
}

func normalize(cfg clawtypes.ConfigSnapshot) clawtypes.ConfigSnapshot {
	if cfg.Pane.SessionModes == nil {
		cfg.Pane.SessionModes = make(map[string]clawtypes.SessionMode)
	}
	if cfg.Chat.DetectionMode == "" {
		cfg.Chat.DetectionMode = clawtypes.DetectionModeFusion
	}
	if cfg.Chat.FusionThreshold <= 0 {
		cfg.Chat.FusionThreshold = defaultFusionThreshold
	}
	if cfg.Chat.BundleID == "" {
		cfg.Chat.BundleID = defaultChatBundleID
	}
	if cfg.NodeRole == "" {
		cfg.NodeRole = clawtypes.NodeRoleStandalone
	}
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
