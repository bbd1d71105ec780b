// Package builtin imports every built-in progdetector.Detector for its
// side-effecting init() registration. Import with a blank identifier:
//
//	import _ "github.com/clawgate/clawgate/internal/progdetector/builtin"
package builtin

import (
	_ "github.com/clawgate/clawgate/internal/progdetector/claudecode"
	_ "github.com/clawgate/clawgate/internal/progdetector/codex"
)
