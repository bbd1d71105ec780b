package runtime

import (
	"github.com/clawgate/clawgate/internal/clawtypes"
	"github.com/clawgate/clawgate/internal/configstore"
)

// configModeLookup bridges configstore.ConfigStore to
// panesurface.ModeLookup, defaulting an unset (sessionType, project)
// pair to ignore per spec.md §4.6.
type configModeLookup struct {
	config *configstore.ConfigStore
}

func (m configModeLookup) SessionMode(sessionType clawtypes.SessionType, project string) clawtypes.SessionMode {
	modes := m.config.Current().Pane.SessionModes
	if mode, ok := modes[clawtypes.SessionModeMapKey(sessionType, project)]; ok {
		return mode
	}
	return clawtypes.SessionModeIgnore
}
