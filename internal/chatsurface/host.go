package chatsurface

// WindowHandle identifies one window of the target process, as resolved
// by Host.FocusedWindow.
type WindowHandle struct {
	PID    int
	Title  string
	Width  float64
	Height float64
}

// Host is the platform primitive seam chatsurface.Surface drives. The
// axhost package provides the darwin implementation (purego against
// ApplicationServices.framework) and a stub for every other GOOS that
// fails every call with ax_permission_missing.
type Host interface {
	// IsTrusted reports whether the process holds accessibility trust.
	IsTrusted() bool
	// IsRunning reports the target application's pid, if running.
	IsRunning(bundleID string) (pid int, ok bool)
	// Launch starts the target application by OS bundle identifier.
	Launch(bundleID string) error
	// FocusedWindow returns the frontmost window of pid, or the first
	// window of the process if none is focused.
	FocusedWindow(pid int) (WindowHandle, bool, error)
	// Activate brings the process's windows to the foreground.
	Activate(pid int) error
	// ScanTree walks win's descendants to maxDepth / maxNodes and
	// returns them flattened with window-relative fractional frames.
	ScanTree(win WindowHandle, maxDepth, maxNodes int) ([]Node, error)
	// SetValue sets n's value attribute to text.
	SetValue(n Node, text string) error
	// PressAction invokes the named AX action on n (e.g. "AXPress").
	PressAction(n Node, action string) error
	// PostKey posts a single keystroke to pid's process identity.
	PostKey(pid int, keyCode int) error
}

// KeyCodeEnter is the macOS virtual key code for Return (kVK_Return),
// passed unchanged to Host.PostKey.
const KeyCodeEnter = 36
