//go:build !darwin

package axhost

import (
	"errors"

	"github.com/clawgate/clawgate/internal/chatsurface"
)

// Host is the non-darwin stub: every call fails with
// ax_permission_missing since no accessibility surface exists to drive.
type Host struct{}

var errNoAccessibilitySurface = errors.New("ax_permission_missing: no accessibility surface on this platform")

func New() (*Host, error) {
	return &Host{}, nil
}

func (h *Host) IsTrusted() bool { return false }

func (h *Host) IsRunning(bundleID string) (int, bool) { return 0, false }

func (h *Host) Launch(bundleID string) error { return errNoAccessibilitySurface }

func (h *Host) Activate(pid int) error { return errNoAccessibilitySurface }

func (h *Host) FocusedWindow(pid int) (chatsurface.WindowHandle, bool, error) {
	return chatsurface.WindowHandle{}, false, errNoAccessibilitySurface
}

func (h *Host) ScanTree(win chatsurface.WindowHandle, maxDepth, maxNodes int) ([]chatsurface.Node, error) {
	return nil, errNoAccessibilitySurface
}

func (h *Host) SetValue(n chatsurface.Node, text string) error { return errNoAccessibilitySurface }

func (h *Host) PressAction(n chatsurface.Node, action string) error { return errNoAccessibilitySurface }

func (h *Host) PostKey(pid int, keyCode int) error { return errNoAccessibilitySurface }
