package clawtypes

import "time"

// DetectionMode selects whether InboundDetector fuses signals or emits
// from the first non-empty one.
type DetectionMode string

const (
	DetectionModeLegacy DetectionMode = "legacy"
	DetectionModeFusion DetectionMode = "fusion"
)

// SessionMode is the policy per (sessionType, project) controlling reads,
// writes, and auto-answers for a pane.
type SessionMode string

const (
	SessionModeIgnore     SessionMode = "ignore"
	SessionModeObserve    SessionMode = "observe"
	SessionModeAuto       SessionMode = "auto"
	SessionModeAutonomous SessionMode = "autonomous"
)

// NodeRole distinguishes a standalone node from a federation server/client.
type NodeRole string

const (
	NodeRoleStandalone NodeRole = "standalone"
	NodeRoleServer     NodeRole = "server"
	NodeRoleClient     NodeRole = "client"
)

// SessionType is the kind of coding agent attached to a pane.
type SessionType string

const (
	SessionTypeClaudeCode SessionType = "claude_code"
	SessionTypeCodex      SessionType = "codex"
)

// SessionModeKey identifies one (sessionType, project) pair in the mode map.
type SessionModeKey struct {
	SessionType SessionType `json:"session_type"`
	Project     string      `json:"project"`
}

// ChatSignalFlags gates which InboundDetector signals run.
type ChatSignalFlags struct {
	Structural   bool `json:"structural" toml:"structural"`
	PixelHash    bool `json:"pixel_hash" toml:"pixel_hash"`
	Notification bool `json:"notification" toml:"notification"`
}

// ChatConfig is the ChatSurface/InboundDetector portion of the snapshot.
type ChatConfig struct {
	Enabled             bool            `json:"enabled" toml:"enabled"`
	BundleID            string          `json:"bundle_id" toml:"bundle_id"`
	DefaultConversation string          `json:"default_conversation_hint" toml:"default_conversation_hint"`
	PollInterval        time.Duration   `json:"poll_interval" toml:"poll_interval"`
	DetectionMode       DetectionMode   `json:"detection_mode" toml:"detection_mode"`
	FusionThreshold     int             `json:"fusion_threshold" toml:"fusion_threshold"`
	Signals             ChatSignalFlags `json:"signals" toml:"signals"`
}

// PaneConfig is the PaneSurface portion of the snapshot.
type PaneConfig struct {
	Enabled      bool                            `json:"enabled" toml:"enabled"`
	StatusBarURL string                          `json:"status_bar_url" toml:"status_bar_url"`
	SessionModes map[string]SessionMode          `json:"session_modes" toml:"session_modes"`
}

// FederationConfig configures the single-peer WebSocket federation link.
type FederationConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	URL     string `json:"url" toml:"url"`
	Token   string `json:"token" toml:"token"`
}

// ConfigSnapshot is the flat, atomically-replaced configuration record
// every component reads at the start of an operation.
type ConfigSnapshot struct {
	DebugLogging   bool             `json:"debug_logging" toml:"debug_logging"`
	Chat           ChatConfig       `json:"chat" toml:"chat"`
	Pane           PaneConfig       `json:"pane" toml:"pane"`
	NodeRole       NodeRole         `json:"node_role" toml:"node_role"`
	RemoteAccess   bool             `json:"remote_access" toml:"remote_access"`
	RemoteToken    string           `json:"remote_token" toml:"remote_token"`
	Federation     FederationConfig `json:"federation" toml:"federation"`

	// LegacyAutonomousAllowList is migrated on load into Pane.SessionModes
	// with mode "autonomous", then cleared. See ConfigStore.LoadOrInit.
	LegacyAutonomousAllowList []string `json:"legacy_autonomous_allow_list,omitempty" toml:"legacy_autonomous_allow_list,omitempty"`
}

// Clone returns a deep copy suitable for copy-on-read snapshot semantics.
func (c ConfigSnapshot) Clone() ConfigSnapshot {
	out := c
	out.Pane.SessionModes = make(map[string]SessionMode, len(c.Pane.SessionModes))
	for k, v := range c.Pane.SessionModes {
		out.Pane.SessionModes[k] = v
	}
	out.LegacyAutonomousAllowList = append([]string(nil), c.LegacyAutonomousAllowList...)
	return out
}

// SessionModeMapKey builds the flat map key used in PaneConfig.SessionModes.
func SessionModeMapKey(sessionType SessionType, project string) string {
	return string(sessionType) + "/" + project
}
