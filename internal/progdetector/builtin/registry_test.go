package builtin_test

import (
	"testing"

	"github.com/clawgate/clawgate/internal/progdetector"
	_ "github.com/clawgate/clawgate/internal/progdetector/builtin"
)

func TestBuiltinDetectorsRegistered(t *testing.T) {
	for _, id := range []string{"codex", "claude_code"} {
		if _, ok := progdetector.ProgramDetectorRegistry.Get(id); !ok {
			t.Fatalf("expected builtin detector %q registered", id)
		}
	}
}
