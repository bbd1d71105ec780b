package runtime

import (
	"testing"

	"github.com/clawgate/clawgate/internal/configstore"
)

func newTestConfigStore(t *testing.T, dir string) *configstore.ConfigStore {
	t.Helper()
	store := configstore.NewConfigStore(dir)
	if _, err := store.LoadOrInit(); err != nil {
		t.Fatalf("LoadOrInit: %v", err)
	}
	return store
}
